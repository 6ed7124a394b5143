/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

// Unsubscribe stops a live query. It is idempotent and may be called from
// inside the query's own callback.
type Unsubscribe func()

// Coordinator multiplexes live queries onto transport subscriptions.
// Queries over the same set of keys share one state_subscribeStorage
// subscription; the last consumer to leave closes it.
type Coordinator struct {
	transport transport.Transport
	logger    *zap.Logger

	mu     sync.Mutex
	subs   map[string]*liveSubscription
	nextID uint64
}

type consumer struct {
	id     uint64
	plan   *Plan
	fn     func([]any)
	closed atomic.Bool
	primed bool // guarded by liveSubscription.emitMu
}

type liveSubscription struct {
	setKey string
	keys   []storagemodels.StorageKey
	opened chan struct{}
	err    error // set before opened is closed

	// emitMu orders emissions. It is never taken while the Coordinator mu is held.
	emitMu sync.Mutex

	mu        sync.Mutex
	handle    transport.SubscriptionID
	hasHandle bool
	closed    bool
	ready     bool
	values    map[string][]byte
	consumers map[uint64]*consumer
}

// NewCoordinator creates a Coordinator. A nil logger disables logging.
func NewCoordinator(t transport.Transport, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		transport: t,
		logger:    logger,
		subs:      make(map[string]*liveSubscription),
	}
}

// Subscribe opens a live query over calls. fn first receives the full result
// tuple once the node has sent its snapshot, then the full tuple again after
// every change. Slots whose bytes cannot be decoded hold an *Undecodable.
//
// fn may run before Subscribe returns. Calls to fn are sequential. fn must not
// open another query over the same key set synchronously.
func (c *Coordinator) Subscribe(ctx context.Context, calls []Call, fn func([]any)) (Unsubscribe, error) {
	if fn == nil {
		return nil, errors.NewValidationError("fn", "callback is required")
	}
	if len(calls) == 0 {
		fn([]any{})
		return func() {}, nil
	}
	plan, err := NewPlan(calls)
	if err != nil {
		return nil, err
	}
	setKey := plan.setKey()

	c.mu.Lock()
	c.nextID++
	cons := &consumer{id: c.nextID, plan: plan, fn: fn}
	sub, exists := c.subs[setKey]
	if !exists {
		sub = &liveSubscription{
			setKey:    setKey,
			keys:      plan.sortedUnique(),
			opened:    make(chan struct{}),
			consumers: make(map[uint64]*consumer),
		}
		c.subs[setKey] = sub
	}
	sub.mu.Lock()
	sub.consumers[cons.id] = cons
	sub.mu.Unlock()
	c.mu.Unlock()

	if !exists {
		c.open(ctx, sub)
	} else {
		select {
		case <-sub.opened:
		case <-ctx.Done():
			c.detach(sub, cons)
			return nil, ctx.Err()
		}
	}
	if sub.err != nil {
		c.detach(sub, cons)
		return nil, sub.err
	}

	c.prime(sub, cons)
	return func() { c.detach(sub, cons) }, nil
}

// Active returns the number of open transport subscriptions.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Coordinator) open(ctx context.Context, sub *liveSubscription) {
	hexKeys := make([]string, len(sub.keys))
	for i, key := range sub.keys {
		hexKeys[i] = key.Hex()
	}

	id, err := c.transport.Subscribe(ctx, transport.MethodSubscribeStorage, []any{hexKeys}, c.notify(sub))
	if err != nil {
		c.mu.Lock()
		if c.subs[sub.setKey] == sub {
			delete(c.subs, sub.setKey)
		}
		c.mu.Unlock()

		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()

		c.logger.Warn("Failed to open storage subscription", zap.Int("keys", len(sub.keys)), zap.Error(err))
		sub.err = err
		close(sub.opened)
		return
	}

	sub.mu.Lock()
	sub.handle = id
	sub.hasHandle = true
	abandoned := sub.closed
	sub.mu.Unlock()
	close(sub.opened)

	c.logger.Debug("Opened storage subscription", zap.String("subscription", string(id)), zap.Int("keys", len(sub.keys)))
	if abandoned {
		c.release(id)
	}
}

// detach removes a consumer and closes the transport subscription when it was the last one.
func (c *Coordinator) detach(sub *liveSubscription, cons *consumer) {
	if !cons.closed.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	sub.mu.Lock()
	delete(sub.consumers, cons.id)
	last := len(sub.consumers) == 0 && !sub.closed
	if last {
		sub.closed = true
		sub.values = nil
		if c.subs[sub.setKey] == sub {
			delete(c.subs, sub.setKey)
		}
	}
	id, hasHandle := sub.handle, sub.hasHandle
	sub.mu.Unlock()
	c.mu.Unlock()

	if last && hasHandle {
		c.release(id)
	}
}

func (c *Coordinator) release(id transport.SubscriptionID) {
	if err := c.transport.Unsubscribe(context.Background(), id); err != nil {
		c.logger.Warn("Failed to close storage subscription", zap.String("subscription", string(id)), zap.Error(err))
		return
	}
	c.logger.Debug("Closed storage subscription", zap.String("subscription", string(id)))
}

func (c *Coordinator) notify(sub *liveSubscription) transport.NotifyFunc {
	return func(raw json.RawMessage) {
		var set storagemodels.StorageChangeSet
		if err := json.Unmarshal(raw, &set); err != nil {
			c.logger.Warn("Dropping malformed storage notification", zap.Error(err))
			return
		}

		sub.emitMu.Lock()
		defer sub.emitMu.Unlock()

		values, consumers, ok := sub.apply(set)
		if !ok {
			return
		}
		cache := make(map[decodeKey]any)
		for _, cons := range consumers {
			c.emit(cons, values, cache)
		}
	}
}

// prime sends the current snapshot to a consumer that joined an existing subscription.
func (c *Coordinator) prime(sub *liveSubscription, cons *consumer) {
	sub.emitMu.Lock()
	defer sub.emitMu.Unlock()
	if cons.primed {
		return
	}

	sub.mu.Lock()
	if !sub.ready || sub.closed {
		sub.mu.Unlock()
		return
	}
	values := sub.snapshot()
	sub.mu.Unlock()

	c.emit(cons, values, make(map[decodeKey]any))
}

type decodeKey struct {
	key   string
	entry *storagemodels.EntryDescriptor
}

// emit builds the full tuple of cons from values and delivers it. Callers hold emitMu.
func (c *Coordinator) emit(cons *consumer, values map[string][]byte, cache map[decodeKey]any) {
	if cons.closed.Load() {
		return
	}
	tuple := make([]any, cons.plan.Len())
	for i, key := range cons.plan.keys {
		entry := cons.plan.calls[i].Entry
		dk := decodeKey{key: key.Hex(), entry: entry.desc}
		if v, ok := cache[dk]; ok {
			tuple[i] = v
			continue
		}
		raw := values[dk.key]
		v, err := entry.decode(key, raw)
		if err != nil {
			c.logger.Warn("Failed to decode live storage value",
				zap.String("entry", entry.Name()),
				zap.String("key", dk.key),
				zap.Error(err))
			v = &Undecodable{Key: key, Raw: raw, Err: err}
		}
		cache[dk] = v
		tuple[i] = v
	}
	cons.fn(tuple)
	cons.primed = true
}

// apply merges a change set. The first notification is a full snapshot: keys it
// omits are absent. Later notifications carry only changed keys. It returns a
// copy of the merged values and the consumers to notify.
func (s *liveSubscription) apply(set storagemodels.StorageChangeSet) (map[string][]byte, []*consumer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, false
	}

	if !s.ready {
		s.values = make(map[string][]byte, len(s.keys))
		for _, key := range s.keys {
			s.values[key.Hex()] = nil
		}
		s.ready = true
	}
	for _, change := range set.Changes {
		hexKey := change.Key.Hex()
		if _, watched := s.values[hexKey]; watched {
			s.values[hexKey] = change.Value
		}
	}

	consumers := make([]*consumer, 0, len(s.consumers))
	for _, cons := range s.consumers {
		consumers = append(consumers, cons)
	}
	sort.Slice(consumers, func(i, j int) bool { return consumers[i].id < consumers[j].id })
	return s.snapshot(), consumers, true
}

// snapshot copies the merged values. Callers hold mu.
func (s *liveSubscription) snapshot() map[string][]byte {
	values := make(map[string][]byte, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return values
}
