/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory node implementing transport.Transport for testing
package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/keys"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

// Transport is an in-memory node. Storage is keyed by hex key.
type Transport struct {
	mu           sync.Mutex
	state        map[string][]byte
	blocks       map[storagemodels.Hash]map[string][]byte
	calls        map[string]int
	sendErrors   map[string]error
	sendFunc     func(ctx context.Context, method string, params []any) (json.RawMessage, error)
	subscribeErr error
	positional   bool
	noSizeMethod bool
	manual       bool
	nextID       int
	subs         map[transport.SubscriptionID]*subscription
	unsubscribed []transport.SubscriptionID
}

type subscription struct {
	keys   []string
	notify transport.NotifyFunc
	mu     sync.Mutex
}

var _ transport.Transport = (*Transport)(nil)

// New creates a new mock Transport
func New() *Transport {
	return &Transport{
		state:      make(map[string][]byte),
		blocks:     make(map[storagemodels.Hash]map[string][]byte),
		calls:      make(map[string]int),
		sendErrors: make(map[string]error),
		subs:       make(map[transport.SubscriptionID]*subscription),
	}
}

// WithSendError makes every call of method fail with err
func (m *Transport) WithSendError(method string, err error) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErrors[method] = err
	return m
}

// WithSendFunc replaces the built-in node for Send calls
func (m *Transport) WithSendFunc(f func(ctx context.Context, method string, params []any) (json.RawMessage, error)) *Transport {
	m.sendFunc = f
	return m
}

// WithSubscribeError makes Subscribe fail with err
func (m *Transport) WithSubscribeError(err error) *Transport {
	m.subscribeErr = err
	return m
}

// WithPositionalResults answers state_queryStorageAt with a bare array of values
// in request order instead of change sets.
func (m *Transport) WithPositionalResults() *Transport {
	m.positional = true
	return m
}

// WithoutStorageSize answers state_getStorageSize with a method-not-found error
func (m *Transport) WithoutStorageSize() *Transport {
	m.noSizeMethod = true
	return m
}

// WithManualSnapshots stops Subscribe from delivering the initial snapshot.
// Use SendSnapshot to deliver it.
func (m *Transport) WithManualSnapshots() *Transport {
	m.manual = true
	return m
}

// Set stores value under key without notifying subscribers. A nil value removes the key.
func (m *Transport) Set(key storagemodels.StorageKey, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	setValue(m.state, key.Hex(), value)
}

// SetAt stores value under key in the state of block.
func (m *Transport) SetAt(block storagemodels.Hash, key storagemodels.StorageKey, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.blocks[block]
	if !ok {
		state = make(map[string][]byte)
		m.blocks[block] = state
	}
	setValue(state, key.Hex(), value)
}

func setValue(state map[string][]byte, key string, value []byte) {
	if value == nil {
		delete(state, key)
		return
	}
	state[key] = append([]byte{}, value...)
}

// Update applies changes and notifies every subscription watching a changed key.
// Each subscription receives only the changes for its own keys.
func (m *Transport) Update(changes ...storagemodels.StorageChange) {
	m.mu.Lock()
	for _, change := range changes {
		setValue(m.state, change.Key.Hex(), change.Value)
	}
	type delivery struct {
		sub *subscription
		set storagemodels.StorageChangeSet
	}
	var deliveries []delivery
	for _, id := range m.sortedSubscriptions() {
		sub := m.subs[id]
		set := storagemodels.StorageChangeSet{}
		for _, change := range changes {
			if sub.watches(change.Key.Hex()) {
				set.Changes = append(set.Changes, change)
			}
		}
		if len(set.Changes) > 0 {
			deliveries = append(deliveries, delivery{sub: sub, set: set})
		}
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		raw, _ := json.Marshal(d.set)
		d.sub.deliver(raw)
	}
}

// SendSnapshot delivers the current values of every watched key to subscription id.
func (m *Transport) SendSnapshot(id transport.SubscriptionID) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if !ok {
		m.mu.Unlock()
		return errors.NewNotFoundError("subscription", string(id))
	}
	raw, err := m.snapshotLocked(sub.keys)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	sub.deliver(raw)
	return nil
}

// Notify delivers a raw notification payload to subscription id.
func (m *Transport) Notify(id transport.SubscriptionID, raw json.RawMessage) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	m.mu.Unlock()
	if !ok {
		return errors.NewNotFoundError("subscription", string(id))
	}
	sub.deliver(raw)
	return nil
}

// Calls returns the number of times method was sent or subscribed
func (m *Transport) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of calls across all methods
func (m *Transport) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Subscriptions returns the ids of open subscriptions in creation order
func (m *Transport) Subscriptions() []transport.SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedSubscriptions()
}

// Unsubscribed returns the ids closed through Unsubscribe, in order
func (m *Transport) Unsubscribed() []transport.SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.SubscriptionID(nil), m.unsubscribed...)
}

// Send implements transport.Transport.
func (m *Transport) Send(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls[method]++
	sendErr := m.sendErrors[method]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sendErr != nil {
		return nil, sendErr
	}
	if m.sendFunc != nil {
		return m.sendFunc(ctx, method, params)
	}

	args, err := transport.DecodeParams(params)
	if err != nil {
		return nil, errors.NewTransportError(method, -32602, err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch method {
	case transport.MethodGetStorage:
		return m.getStorage(method, args)
	case transport.MethodGetStorageSize:
		if m.noSizeMethod {
			return nil, errors.NewTransportError(method, errors.CodeMethodNotFound, "Method not found")
		}
		return m.getStorageSize(method, args)
	case transport.MethodGetStorageHash:
		return m.getStorageHash(method, args)
	case transport.MethodGetKeysPaged:
		return m.getKeysPaged(method, args)
	case transport.MethodQueryStorageAt:
		return m.queryStorageAt(method, args)
	default:
		return nil, errors.NewTransportError(method, errors.CodeMethodNotFound, "Method not found")
	}
}

// Subscribe implements transport.Transport. Only state_subscribeStorage is served.
func (m *Transport) Subscribe(ctx context.Context, method string, params []any, notify transport.NotifyFunc) (transport.SubscriptionID, error) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.subscribeErr != nil {
		return "", m.subscribeErr
	}
	if method != transport.MethodSubscribeStorage {
		return "", errors.NewTransportError(method, errors.CodeMethodNotFound, "Method not found")
	}
	args, err := transport.DecodeParams(params)
	if err != nil || len(args) != 1 {
		return "", errors.NewTransportError(method, -32602, "expected a list of keys")
	}
	var watched []string
	if err := json.Unmarshal(args[0], &watched); err != nil {
		return "", errors.NewTransportError(method, -32602, err.Error())
	}

	m.mu.Lock()
	m.nextID++
	id := transport.SubscriptionID(fmt.Sprintf("sub-%04d", m.nextID))
	sub := &subscription{keys: normalize(watched), notify: notify}
	m.subs[id] = sub
	var initial json.RawMessage
	if !m.manual {
		initial, err = m.snapshotLocked(sub.keys)
	}
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	if initial != nil {
		sub.deliver(initial)
	}
	return id, nil
}

// Unsubscribe implements transport.Transport.
func (m *Transport) Unsubscribe(ctx context.Context, id transport.SubscriptionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[transport.MethodUnsubscribeStorage]++
	if _, ok := m.subs[id]; !ok {
		return errors.NewTransportError(transport.MethodUnsubscribeStorage, -32602, "unknown subscription "+string(id))
	}
	delete(m.subs, id)
	m.unsubscribed = append(m.unsubscribed, id)
	return nil
}

func (m *Transport) sortedSubscriptions() []transport.SubscriptionID {
	ids := make([]transport.SubscriptionID, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Transport) snapshotLocked(watched []string) (json.RawMessage, error) {
	set := storagemodels.StorageChangeSet{}
	for _, key := range watched {
		k, err := storagemodels.ParseStorageKey(key)
		if err != nil {
			return nil, err
		}
		set.Changes = append(set.Changes, storagemodels.StorageChange{Key: k, Value: m.state[key]})
	}
	return json.Marshal(set)
}

func (m *Transport) stateAt(method string, args []json.RawMessage, index int) (map[string][]byte, error) {
	if len(args) <= index || string(args[index]) == "null" {
		return m.state, nil
	}
	var block storagemodels.Hash
	if err := json.Unmarshal(args[index], &block); err != nil {
		return nil, errors.NewTransportError(method, -32602, err.Error())
	}
	state, ok := m.blocks[block]
	if !ok {
		return nil, errors.NewTransportError(method, 4003, "unknown block "+block.Hex())
	}
	return state, nil
}

func (m *Transport) keyArg(method string, args []json.RawMessage) (string, error) {
	if len(args) == 0 {
		return "", errors.NewTransportError(method, -32602, "missing key")
	}
	var key storagemodels.StorageKey
	if err := json.Unmarshal(args[0], &key); err != nil {
		return "", errors.NewTransportError(method, -32602, err.Error())
	}
	return key.Hex(), nil
}

func (m *Transport) getStorage(method string, args []json.RawMessage) (json.RawMessage, error) {
	key, err := m.keyArg(method, args)
	if err != nil {
		return nil, err
	}
	state, err := m.stateAt(method, args, 1)
	if err != nil {
		return nil, err
	}
	value, ok := state[key]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(storagemodels.StorageKey(value))
}

func (m *Transport) getStorageSize(method string, args []json.RawMessage) (json.RawMessage, error) {
	key, err := m.keyArg(method, args)
	if err != nil {
		return nil, err
	}
	state, err := m.stateAt(method, args, 1)
	if err != nil {
		return nil, err
	}
	value, ok := state[key]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(len(value))
}

func (m *Transport) getStorageHash(method string, args []json.RawMessage) (json.RawMessage, error) {
	key, err := m.keyArg(method, args)
	if err != nil {
		return nil, err
	}
	state, err := m.stateAt(method, args, 1)
	if err != nil {
		return nil, err
	}
	value, ok := state[key]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(keys.Blake2_256(value))
}

func (m *Transport) getKeysPaged(method string, args []json.RawMessage) (json.RawMessage, error) {
	if len(args) < 2 {
		return nil, errors.NewTransportError(method, -32602, "expected prefix and count")
	}
	var prefix storagemodels.StorageKey
	var count uint
	if err := json.Unmarshal(args[0], &prefix); err != nil {
		return nil, errors.NewTransportError(method, -32602, err.Error())
	}
	if err := json.Unmarshal(args[1], &count); err != nil {
		return nil, errors.NewTransportError(method, -32602, err.Error())
	}
	var start storagemodels.StorageKey
	if len(args) > 2 && string(args[2]) != "null" {
		if err := json.Unmarshal(args[2], &start); err != nil {
			return nil, errors.NewTransportError(method, -32602, err.Error())
		}
	}
	state, err := m.stateAt(method, args, 3)
	if err != nil {
		return nil, err
	}

	var matched []storagemodels.StorageKey
	for hexKey := range state {
		key, _ := storagemodels.ParseStorageKey(hexKey)
		if key.HasPrefix(prefix) && bytes.Compare(key, start) > 0 {
			matched = append(matched, key)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return bytes.Compare(matched[i], matched[j]) < 0 })
	if uint(len(matched)) > count {
		matched = matched[:count]
	}
	if matched == nil {
		matched = []storagemodels.StorageKey{}
	}
	return json.Marshal(matched)
}

func (m *Transport) queryStorageAt(method string, args []json.RawMessage) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.NewTransportError(method, -32602, "missing keys")
	}
	var requested []storagemodels.StorageKey
	if err := json.Unmarshal(args[0], &requested); err != nil {
		return nil, errors.NewTransportError(method, -32602, err.Error())
	}
	state, err := m.stateAt(method, args, 1)
	if err != nil {
		return nil, err
	}

	if m.positional {
		values := make([]*storagemodels.StorageKey, len(requested))
		for i, key := range requested {
			if value, ok := state[key.Hex()]; ok {
				v := storagemodels.StorageKey(value)
				values[i] = &v
			}
		}
		return json.Marshal(values)
	}

	set := storagemodels.StorageChangeSet{}
	for _, key := range requested {
		set.Changes = append(set.Changes, storagemodels.StorageChange{Key: key, Value: state[key.Hex()]})
	}
	return json.Marshal([]storagemodels.StorageChangeSet{set})
}

func (s *subscription) watches(key string) bool {
	i := sort.SearchStrings(s.keys, key)
	return i < len(s.keys) && s.keys[i] == key
}

// deliver calls notify sequentially for this subscription.
func (s *subscription) deliver(raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify(raw)
}

func normalize(watched []string) []string {
	out := make([]string, 0, len(watched))
	for _, key := range watched {
		out = append(out, strings.ToLower(key))
	}
	sort.Strings(out)
	return out
}
