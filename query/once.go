/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

// Once reads a batch of calls with a single state_queryStorageAt round trip.
// Concurrent calls are independent; identical batches are not coalesced.
type Once struct {
	transport transport.Transport
	logger    *zap.Logger
}

// NewOnce creates a Once executor. A nil logger disables logging.
func NewOnce(t transport.Transport, logger *zap.Logger) *Once {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Once{transport: t, logger: logger}
}

// Query reads calls at the current block. See QueryAt.
func (o *Once) Query(ctx context.Context, calls []Call) ([]any, error) {
	return o.QueryAt(ctx, storagemodels.Current, calls)
}

// QueryAt returns one value per call, in call order. Duplicate keys are fetched once.
// An empty batch returns an empty result without touching the transport.
// Any decode failure fails the whole batch with a *errors.DecodeError.
func (o *Once) QueryAt(ctx context.Context, at storagemodels.BlockRef, calls []Call) ([]any, error) {
	if len(calls) == 0 {
		return []any{}, nil
	}
	plan, err := NewPlan(calls)
	if err != nil {
		return nil, err
	}

	unique := plan.Unique()
	raw, err := readValues(ctx, o.transport, unique, at)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("Read storage batch",
		zap.Int("calls", plan.Len()),
		zap.Int("keys", len(unique)),
		zap.Stringer("at", at))

	decoded := make([]any, len(unique))
	for i, key := range unique {
		v, err := plan.owners[i].decode(key, raw[i])
		if err != nil {
			return nil, err
		}
		decoded[i] = v
	}
	return plan.Expand(decoded), nil
}
