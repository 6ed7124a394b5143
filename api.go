/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package chainquery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/suparena/chainquery/codec"
	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/query"
	"github.com/suparena/chainquery/registry"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

// API is the query surface of one node connection: an accessor per storage
// entry plus batch queries across entries. It is safe for concurrent use.
type API struct {
	mu      sync.RWMutex
	surface *query.Surface

	transport transport.Transport
	codec     codec.Codec
	live      *query.Coordinator
	once      *query.Once
	opts      []storagemodels.QueryOption
	logger    *zap.Logger
}

// New decorates md into a query surface served by t.
func New(t transport.Transport, c codec.Codec, md *registry.Metadata, opts ...storagemodels.QueryOption) (*API, error) {
	if t == nil {
		return nil, errors.NewValidationError("transport", "transport is required")
	}
	if c == nil {
		return nil, errors.NewValidationError("codec", "codec is required")
	}
	if md == nil {
		return nil, errors.NewValidationError("metadata", "metadata is required")
	}

	options := storagemodels.ApplyQueryOptions(opts...)
	a := &API{
		transport: t,
		codec:     c,
		live:      query.NewCoordinator(t, options.Logger),
		once:      query.NewOnce(t, options.Logger),
		opts:      opts,
		logger:    options.Logger,
	}
	a.surface = a.decorate(md)
	return a, nil
}

func (a *API) decorate(md *registry.Metadata) *query.Surface {
	surface := query.Decorate(md, a.transport, a.codec, a.live, a.opts...)
	a.logger.Info("Decorated storage entries",
		zap.Uint32("runtimeVersion", md.Version()),
		zap.Int("modules", len(md.Modules())),
		zap.Int("entries", len(md.All())))
	return surface
}

func (a *API) current() *query.Surface {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.surface
}

// Reload replaces the surface after the node published new metadata.
// Entries obtained before the reload keep their old descriptors; look them up again.
// Live queries already open are unaffected.
func (a *API) Reload(md *registry.Metadata) error {
	if md == nil {
		return errors.NewValidationError("metadata", "metadata is required")
	}
	surface := a.decorate(md)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.surface = surface
	return nil
}

// Metadata returns the metadata of the current surface.
func (a *API) Metadata() *registry.Metadata {
	return a.current().Metadata()
}

// Modules returns the module names of the current surface in lower camel case.
func (a *API) Modules() []string {
	return a.current().Modules()
}

// Query returns the accessor of module.method, e.g. Query("system", "account").
func (a *API) Query(module, method string) (*query.Entry, error) {
	return a.current().Entry(module, method)
}

// Module returns the accessors of a module.
func (a *API) Module(module string) ([]*query.Entry, error) {
	return a.current().Module(module)
}

// Find returns the accessor owning a raw storage key.
func (a *API) Find(key storagemodels.StorageKey) (*query.Entry, bool) {
	return a.current().Find(key)
}

// QueryOnce reads a batch of calls at the current block. The result holds one
// value per call, in call order.
func (a *API) QueryOnce(ctx context.Context, calls []query.Call) ([]any, error) {
	return a.once.Query(ctx, calls)
}

// QueryOnceAt reads a batch of calls at block at.
func (a *API) QueryOnceAt(ctx context.Context, at storagemodels.BlockRef, calls []query.Call) ([]any, error) {
	return a.once.QueryAt(ctx, at, calls)
}

// QueryMulti opens a live query over a batch of calls. fn receives the full
// result tuple on the first snapshot and after every change.
func (a *API) QueryMulti(ctx context.Context, calls []query.Call, fn func([]any)) (query.Unsubscribe, error) {
	return a.live.Subscribe(ctx, calls, fn)
}

// Watch is QueryMulti delivered on a channel. The channel is closed and the
// live query released when ctx is done. bufferSize below 1 is raised to 1.
func (a *API) Watch(ctx context.Context, calls []query.Call, bufferSize int) (<-chan []any, error) {
	if bufferSize < 1 {
		bufferSize = 1
	}
	ch := make(chan []any, bufferSize)

	var mu sync.Mutex
	closed := false
	unsub, err := a.live.Subscribe(ctx, calls, func(values []any) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- values:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsub()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch, nil
}
