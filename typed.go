/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package chainquery

import (
	"context"
	"fmt"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/query"
	"github.com/suparena/chainquery/storagemodels"
)

// As converts a decoded value to T. nil (an absent Optional value) yields the zero T.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if u, ok := v.(*query.Undecodable); ok {
		return zero, u.Err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.NewValidationError("type", fmt.Sprintf("value is %T, not %T", v, zero))
	}
	return typed, nil
}

// Get reads e for args at the current block as T.
func Get[T any](ctx context.Context, e *query.Entry, args ...any) (T, error) {
	return GetAt[T](ctx, e, storagemodels.Current, args...)
}

// GetAt reads e for args at block at as T.
func GetAt[T any](ctx context.Context, e *query.Entry, at storagemodels.BlockRef, args ...any) (T, error) {
	v, err := e.At(ctx, at, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v)
}

// Multi reads several values of e as T in one round trip.
func Multi[T any](ctx context.Context, e *query.Entry, argsList [][]any) ([]T, error) {
	values, err := e.Multi(ctx, argsList)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(values))
	for i, v := range values {
		if out[i], err = As[T](v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Subscribe opens a live query on e for args. fn receives a decode error in
// place of a value when the stored bytes cannot be decoded as T.
func Subscribe[T any](ctx context.Context, e *query.Entry, fn func(T, error), args ...any) (query.Unsubscribe, error) {
	return e.Subscribe(ctx, func(v any) {
		fn(As[T](v))
	}, args...)
}
