/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/suparena/chainquery/storagemodels"
)

// PutSnapshot mirrors changes into the partition of at. Present values are
// written, absent ones deleted, so replaying a node's change sets keeps the
// table in step with chain state.
func (t *Transport) PutSnapshot(ctx context.Context, at storagemodels.BlockRef, changes []storagemodels.StorageChange) error {
	part := partition(at)
	blockHash := ""
	if hash, pinned := at.Hash(); pinned {
		blockHash = hash.Hex()
	}

	// a batch may not touch one key twice; the last change wins
	latest := make(map[string]int, len(changes))
	order := make([]string, 0, len(changes))
	for i, change := range changes {
		sk := change.Key.Hex()
		if _, seen := latest[sk]; !seen {
			order = append(order, sk)
		}
		latest[sk] = i
	}

	requests := make([]types.WriteRequest, 0, len(order))
	for _, sk := range order {
		change := changes[latest[sk]]
		if !change.Present() {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: snapshotKey(part, sk)},
			})
			continue
		}
		av, err := attributevalue.MarshalMap(storagemodels.NewSnapshotItem(part, change.Key, change.Value, blockHash))
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot item %s: %w", sk, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	for lo := 0; lo < len(requests); lo += batchWriteLimit {
		if err := t.batchWrite(ctx, requests[lo:min(lo+batchWriteLimit, len(requests))]); err != nil {
			return err
		}
	}
	t.options.Logger.Info("Wrote storage snapshot",
		zap.String("partition", part), zap.Int("changes", len(requests)))
	return nil
}

func (t *Transport) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{t.tableName: requests}
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt > t.options.MaxRetries {
			return fmt.Errorf("BatchWriteItem left %d requests unprocessed after %d retries",
				len(pending[t.tableName]), t.options.MaxRetries)
		}
		if attempt > 0 {
			if err := backoff(ctx, t.options, attempt-1); err != nil {
				return err
			}
		}

		out, err := withRetry(ctx, t.options, "BatchWriteItem", func() (*sdk.BatchWriteItemOutput, error) {
			return t.client.BatchWriteItem(ctx, &sdk.BatchWriteItemInput{RequestItems: pending})
		})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
	}
	return nil
}
