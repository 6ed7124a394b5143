/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

func (e *Entry) requireIterable() error {
	if !e.desc.IsIterable() {
		return errors.NewNotIterableError(e.desc.Module, e.desc.Method)
	}
	return nil
}

// KeysPaged returns at most opts.PageSize keys under the prefix of opts.Args,
// starting after opts.StartKey.
func (e *Entry) KeysPaged(ctx context.Context, opts storagemodels.PaginationOptions) ([]storagemodels.StorageKey, error) {
	if err := e.requireIterable(); err != nil {
		return nil, err
	}
	if opts.PageSize == 0 {
		return nil, errors.NewValidationError("PageSize", "must be greater than zero")
	}
	prefix, err := e.builder.Prefix(e.desc, opts.Args...)
	if err != nil {
		return nil, err
	}
	var start any
	if len(opts.StartKey) > 0 {
		start = opts.StartKey.Hex()
	}

	params := opts.At.AppendParam([]any{prefix.Hex(), opts.PageSize, start})
	result, err := e.transport.Send(ctx, transport.MethodGetKeysPaged, params...)
	if err != nil {
		return nil, errors.WithKey(prefix.Hex(), err)
	}
	var page []storagemodels.StorageKey
	if err := json.Unmarshal(result, &page); err != nil {
		return nil, errors.WithKey(prefix.Hex(),
			errors.NewTransportError(transport.MethodGetKeysPaged, 0, "unrecognised result: "+err.Error()))
	}
	if uint(len(page)) > opts.PageSize {
		page = page[:opts.PageSize]
	}
	return page, nil
}

// EntriesPaged returns the keys of KeysPaged with their decoded values.
func (e *Entry) EntriesPaged(ctx context.Context, opts storagemodels.PaginationOptions) ([]storagemodels.KeyValue, error) {
	page, err := e.KeysPaged(ctx, opts)
	if err != nil {
		return nil, err
	}
	return e.values(ctx, page, opts.At)
}

// Keys returns every key under the prefix of the leading args at the current block.
func (e *Entry) Keys(ctx context.Context, leading ...any) ([]storagemodels.StorageKey, error) {
	return e.KeysAt(ctx, storagemodels.Current, leading...)
}

// KeysAt pages through every key under the prefix of the leading args.
// The configured progress handler is called after each page.
func (e *Entry) KeysAt(ctx context.Context, at storagemodels.BlockRef, leading ...any) ([]storagemodels.StorageKey, error) {
	pageSize := e.options.IterationPageSize
	progress := storagemodels.IterationProgress{StartTime: time.Now()}

	var all []storagemodels.StorageKey
	var start storagemodels.StorageKey
	for {
		page, err := e.KeysPaged(ctx, storagemodels.PaginationOptions{
			PageSize: pageSize,
			StartKey: start,
			Args:     leading,
			At:       at,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		progress.PagesProcessed++
		progress.KeysFetched += int64(len(page))
		if len(page) > 0 {
			progress.LastKey = page[len(page)-1]
		}
		if elapsed := time.Since(progress.StartTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(progress.KeysFetched) / elapsed
		}
		if e.options.ProgressHandler != nil {
			e.options.ProgressHandler(progress)
		}

		if uint(len(page)) < pageSize {
			break
		}
		start = page[len(page)-1]
	}

	e.logger.Debug("Iterated storage keys",
		zap.Int64("keys", progress.KeysFetched),
		zap.Int("pages", progress.PagesProcessed),
		zap.Stringer("at", at))
	return all, nil
}

// Entries returns every (key, value) pair under the prefix of the leading args.
func (e *Entry) Entries(ctx context.Context, leading ...any) ([]storagemodels.KeyValue, error) {
	return e.EntriesAt(ctx, storagemodels.Current, leading...)
}

// EntriesAt is Entries pinned to a block. Values are read in chunks of the iteration page size.
func (e *Entry) EntriesAt(ctx context.Context, at storagemodels.BlockRef, leading ...any) ([]storagemodels.KeyValue, error) {
	all, err := e.KeysAt(ctx, at, leading...)
	if err != nil {
		return nil, err
	}
	entries := make([]storagemodels.KeyValue, 0, len(all))
	chunk := int(e.options.IterationPageSize)
	for offset := 0; offset < len(all); offset += chunk {
		end := offset + chunk
		if end > len(all) {
			end = len(all)
		}
		values, err := e.values(ctx, all[offset:end], at)
		if err != nil {
			return nil, err
		}
		entries = append(entries, values...)
	}
	return entries, nil
}

func (e *Entry) values(ctx context.Context, keys []storagemodels.StorageKey, at storagemodels.BlockRef) ([]storagemodels.KeyValue, error) {
	if len(keys) == 0 {
		return []storagemodels.KeyValue{}, nil
	}
	raw, err := readValues(ctx, e.transport, keys, at)
	if err != nil {
		return nil, err
	}
	entries := make([]storagemodels.KeyValue, len(keys))
	for i, key := range keys {
		v, err := e.decode(key, raw[i])
		if err != nil {
			return nil, err
		}
		entries[i] = storagemodels.KeyValue{Key: key, Value: v}
	}
	return entries, nil
}
