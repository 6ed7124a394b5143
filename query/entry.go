/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/suparena/chainquery/codec"
	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/keys"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

// Entry is the accessor of one storage entry. It builds keys, reads and
// iterates values, and opens live queries through the shared Coordinator.
// An Entry is safe for concurrent use.
type Entry struct {
	desc      *storagemodels.EntryDescriptor
	builder   *keys.Builder
	codec     codec.Codec
	transport transport.Transport
	live      *Coordinator
	options   storagemodels.QueryOptions
	logger    *zap.Logger
}

// NewEntry creates the accessor of d. live may be nil, in which case Subscribe fails.
// Descriptors that fail d.Validate surface a validation error on first use.
func NewEntry(d *storagemodels.EntryDescriptor, t transport.Transport, c codec.Codec, live *Coordinator, opts ...storagemodels.QueryOption) *Entry {
	options := storagemodels.ApplyQueryOptions(opts...)
	return &Entry{
		desc:      d,
		builder:   keys.NewBuilder(c),
		codec:     c,
		transport: t,
		live:      live,
		options:   options,
		logger:    options.Logger.With(zap.String("entry", d.Name())),
	}
}

// Descriptor returns the descriptor the accessor was built from.
func (e *Entry) Descriptor() *storagemodels.EntryDescriptor {
	return e.desc
}

// Name returns "Module.Method".
func (e *Entry) Name() string {
	return e.desc.Name()
}

// StorageKey computes the key for args. Fewer args than the entry has hashers yield a prefix.
func (e *Entry) StorageKey(args ...any) (storagemodels.StorageKey, error) {
	return e.builder.Key(e.desc, args...)
}

// Key returns the hex form of StorageKey.
func (e *Entry) Key(args ...any) (string, error) {
	key, err := e.StorageKey(args...)
	if err != nil {
		return "", err
	}
	return key.Hex(), nil
}

// KeyPrefix returns the hex iteration prefix for the leading args.
func (e *Entry) KeyPrefix(leading ...any) (string, error) {
	prefix, err := e.builder.Prefix(e.desc, leading...)
	if err != nil {
		return "", err
	}
	return prefix.Hex(), nil
}

// Is reports whether key belongs to this entry.
func (e *Entry) Is(key storagemodels.StorageKey) bool {
	return keys.Matches(e.desc, key)
}

// With binds args into a Call for batch queries.
func (e *Entry) With(args ...any) Call {
	return Call{Entry: e, Args: args}
}

// valueKey computes the full key of a value read; every hasher needs an argument.
func (e *Entry) valueKey(args []any) (storagemodels.StorageKey, error) {
	if len(args) < len(e.desc.Hashers) {
		return nil, errors.NewValidationError("args",
			fmt.Sprintf("%s needs %d argument(s) to address a value, got %d", e.desc.Name(), len(e.desc.Hashers), len(args)))
	}
	return e.builder.Key(e.desc, args...)
}

func (e *Entry) decode(key storagemodels.StorageKey, raw []byte) (any, error) {
	return decodeValue(e.codec, e.desc, key, raw)
}

// Get reads the value for args at the current block.
func (e *Entry) Get(ctx context.Context, args ...any) (any, error) {
	return e.At(ctx, storagemodels.Current, args...)
}

// At reads the value for args at block at. Absent keys yield nil for Optional
// entries and the decoded fallback for Default entries.
func (e *Entry) At(ctx context.Context, at storagemodels.BlockRef, args ...any) (any, error) {
	key, err := e.valueKey(args)
	if err != nil {
		return nil, err
	}
	raw, err := e.readRaw(ctx, key, at)
	if err != nil {
		return nil, err
	}
	return e.decode(key, raw)
}

func (e *Entry) readRaw(ctx context.Context, key storagemodels.StorageKey, at storagemodels.BlockRef) ([]byte, error) {
	result, err := e.transport.Send(ctx, transport.MethodGetStorage, at.AppendParam([]any{key.Hex()})...)
	if err != nil {
		return nil, errors.WithKey(key.Hex(), err)
	}
	raw, err := parseOptionalBytes(transport.MethodGetStorage, result)
	if err != nil {
		return nil, errors.WithKey(key.Hex(), err)
	}
	return raw, nil
}

// Size returns the byte length of the stored value at the current block. See SizeAt.
func (e *Entry) Size(ctx context.Context, args ...any) (uint64, error) {
	return e.SizeAt(ctx, storagemodels.Current, args...)
}

// SizeAt returns the byte length of the stored value, 0 when absent.
// Nodes without state_getStorageSize are served by reading the value.
func (e *Entry) SizeAt(ctx context.Context, at storagemodels.BlockRef, args ...any) (uint64, error) {
	key, err := e.valueKey(args)
	if err != nil {
		return 0, err
	}
	result, err := e.transport.Send(ctx, transport.MethodGetStorageSize, at.AppendParam([]any{key.Hex()})...)
	if errors.IsMethodNotFound(err) {
		e.logger.Debug("Storage size not served, reading value", zap.String("key", key.Hex()))
		raw, err := e.readRaw(ctx, key, at)
		if err != nil {
			return 0, err
		}
		return uint64(len(raw)), nil
	}
	if err != nil {
		return 0, errors.WithKey(key.Hex(), err)
	}

	var size *uint64
	if err := json.Unmarshal(result, &size); err != nil {
		return 0, errors.WithKey(key.Hex(),
			errors.NewTransportError(transport.MethodGetStorageSize, 0, "unrecognised result: "+err.Error()))
	}
	if size == nil {
		return 0, nil
	}
	return *size, nil
}

// Hash returns the blake2-256 hash of the stored value at the current block. See HashAt.
func (e *Entry) Hash(ctx context.Context, args ...any) (storagemodels.Hash, error) {
	return e.HashAt(ctx, storagemodels.Current, args...)
}

// HashAt returns the hash of the stored value. The zero Hash means the key is absent.
func (e *Entry) HashAt(ctx context.Context, at storagemodels.BlockRef, args ...any) (storagemodels.Hash, error) {
	key, err := e.valueKey(args)
	if err != nil {
		return storagemodels.Hash{}, err
	}
	result, err := e.transport.Send(ctx, transport.MethodGetStorageHash, at.AppendParam([]any{key.Hex()})...)
	if err != nil {
		return storagemodels.Hash{}, errors.WithKey(key.Hex(), err)
	}
	var hash *storagemodels.Hash
	if err := json.Unmarshal(result, &hash); err != nil {
		return storagemodels.Hash{}, errors.WithKey(key.Hex(),
			errors.NewTransportError(transport.MethodGetStorageHash, 0, "unrecognised result: "+err.Error()))
	}
	if hash == nil {
		return storagemodels.Hash{}, nil
	}
	return *hash, nil
}

// Multi reads several values of this entry in one round trip. argsList[i] holds
// the arguments of result i.
func (e *Entry) Multi(ctx context.Context, argsList [][]any) ([]any, error) {
	return e.MultiAt(ctx, storagemodels.Current, argsList)
}

// MultiAt is Multi pinned to a block.
func (e *Entry) MultiAt(ctx context.Context, at storagemodels.BlockRef, argsList [][]any) ([]any, error) {
	calls := make([]Call, len(argsList))
	for i, args := range argsList {
		calls[i] = e.With(args...)
	}
	return NewOnce(e.transport, e.logger).QueryAt(ctx, at, calls)
}

// Subscribe opens a live query on the value for args. fn receives the current
// value first, then the new value on every change.
func (e *Entry) Subscribe(ctx context.Context, fn func(any), args ...any) (Unsubscribe, error) {
	if e.live == nil {
		return nil, errors.NewValidationError("live", "entry has no live query coordinator")
	}
	return e.live.Subscribe(ctx, []Call{e.With(args...)}, func(values []any) {
		fn(values[0])
	})
}

// SubscribeMulti opens one live query over several values of this entry.
func (e *Entry) SubscribeMulti(ctx context.Context, argsList [][]any, fn func([]any)) (Unsubscribe, error) {
	if e.live == nil {
		return nil, errors.NewValidationError("live", "entry has no live query coordinator")
	}
	calls := make([]Call, len(argsList))
	for i, args := range argsList {
		calls[i] = e.With(args...)
	}
	return e.live.Subscribe(ctx, calls, fn)
}
