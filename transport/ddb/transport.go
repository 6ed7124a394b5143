/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/keys"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

const (
	codeInvalidParams = -32602
	codeBackend       = -32000
)

// Transport serves the read side of the storage RPC surface from a table of
// mirrored snapshots. Items live under PK "BLOCK#<hash>" (or "BLOCK#LATEST")
// with the hex storage key as SK, so prefix iteration is a range query.
//
// Subscriptions are not served: Subscribe fails with a method-not-found
// TransportError.
type Transport struct {
	client    API
	tableName string
	options   Options
}

var _ transport.Transport = (*Transport)(nil)

// New returns a Transport reading tableName through client.
func New(client API, tableName string, opts ...Option) *Transport {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Transport{client: client, tableName: tableName, options: options}
}

// Send implements transport.Transport for the read methods.
func (t *Transport) Send(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	args, err := transport.DecodeParams(params)
	if err != nil {
		return nil, invalidParams(method, err)
	}

	var result any
	switch method {
	case transport.MethodGetStorage, transport.MethodGetStorageSize, transport.MethodGetStorageHash:
		result, err = t.readValue(ctx, method, args)
	case transport.MethodGetKeysPaged:
		result, err = t.keysPaged(ctx, method, args)
	case transport.MethodQueryStorageAt:
		result, err = t.queryStorageAt(ctx, method, args)
	default:
		return nil, errors.NewTransportError(method, errors.CodeMethodNotFound, "Method not found")
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// Subscribe always fails; snapshot tables carry no change feed.
func (t *Transport) Subscribe(_ context.Context, method string, _ []any, _ transport.NotifyFunc) (transport.SubscriptionID, error) {
	return "", errors.NewTransportError(method, errors.CodeMethodNotFound, "subscriptions are not served from snapshot tables")
}

// Unsubscribe always fails; no subscription can exist.
func (t *Transport) Unsubscribe(_ context.Context, id transport.SubscriptionID) error {
	return errors.NewTransportError(transport.MethodUnsubscribeStorage, errors.CodeMethodNotFound, "unknown subscription "+string(id))
}

func (t *Transport) readValue(ctx context.Context, method string, args []json.RawMessage) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, invalidParams(method, fmt.Errorf("expected key and optional block, got %d params", len(args)))
	}
	var key storagemodels.StorageKey
	if err := json.Unmarshal(args[0], &key); err != nil {
		return nil, invalidParams(method, err)
	}
	at, err := parseBlock(args, 1)
	if err != nil {
		return nil, invalidParams(method, err)
	}

	value, found, err := t.getValue(ctx, partition(at), key)
	if err != nil {
		return nil, failure(method, err)
	}
	if !found {
		return nil, nil
	}
	switch method {
	case transport.MethodGetStorageSize:
		return uint64(len(value)), nil
	case transport.MethodGetStorageHash:
		return keys.Blake2_256(value), nil
	default:
		return hexutil.Bytes(value), nil
	}
}

func (t *Transport) keysPaged(ctx context.Context, method string, args []json.RawMessage) (any, error) {
	if len(args) < 2 || len(args) > 4 {
		return nil, invalidParams(method, fmt.Errorf("expected prefix, count, start key and optional block, got %d params", len(args)))
	}
	var prefix storagemodels.StorageKey
	if err := json.Unmarshal(args[0], &prefix); err != nil {
		return nil, invalidParams(method, err)
	}
	var count uint
	if err := json.Unmarshal(args[1], &count); err != nil {
		return nil, invalidParams(method, err)
	}
	var start storagemodels.StorageKey
	if len(args) > 2 && !isNull(args[2]) {
		if err := json.Unmarshal(args[2], &start); err != nil {
			return nil, invalidParams(method, err)
		}
	}
	at, err := parseBlock(args, 3)
	if err != nil {
		return nil, invalidParams(method, err)
	}

	found, err := t.scanKeys(ctx, partition(at), prefix, count, start)
	if err != nil {
		return nil, failure(method, err)
	}
	return found, nil
}

func (t *Transport) queryStorageAt(ctx context.Context, method string, args []json.RawMessage) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, invalidParams(method, fmt.Errorf("expected keys and optional block, got %d params", len(args)))
	}
	var requested []storagemodels.StorageKey
	if err := json.Unmarshal(args[0], &requested); err != nil {
		return nil, invalidParams(method, err)
	}
	at, err := parseBlock(args, 1)
	if err != nil {
		return nil, invalidParams(method, err)
	}

	values, err := t.batchValues(ctx, partition(at), requested)
	if err != nil {
		return nil, failure(method, err)
	}
	set := storagemodels.StorageChangeSet{Changes: make([]storagemodels.StorageChange, 0, len(requested))}
	if hash, pinned := at.Hash(); pinned {
		set.Block = hash
	}
	for _, key := range requested {
		set.Changes = append(set.Changes, storagemodels.StorageChange{Key: key, Value: values[key.Hex()]})
	}
	return []storagemodels.StorageChangeSet{set}, nil
}

func (t *Transport) getValue(ctx context.Context, partition string, key storagemodels.StorageKey) ([]byte, bool, error) {
	out, err := withRetry(ctx, t.options, "GetItem", func() (*sdk.GetItemOutput, error) {
		return t.client.GetItem(ctx, &sdk.GetItemInput{
			TableName: aws.String(t.tableName),
			Key:       snapshotKey(partition, key.Hex()),
		})
	})
	if err != nil {
		return nil, false, err
	}
	if out.Item == nil {
		return nil, false, nil
	}
	item, value, err := decodeItem(out.Item)
	if err != nil {
		return nil, false, fmt.Errorf("item %s: %w", item.SK, err)
	}
	return value, true, nil
}

// scanKeys pages through the keys under prefix in ascending order, starting
// after start, until count keys are collected or the partition runs out.
func (t *Transport) scanKeys(ctx context.Context, partition string, prefix storagemodels.StorageKey, count uint, start storagemodels.StorageKey) ([]storagemodels.StorageKey, error) {
	found := make([]storagemodels.StorageKey, 0, min(count, queryPageLimit))
	if count == 0 {
		return found, nil
	}

	// Hex keys share one case, so every extension of the prefix sorts below prefix+"g".
	lower, upper, after := prefix.Hex(), prefix.Hex()+"g", ""
	if start != nil {
		after = start.Hex()
		if after > lower {
			lower = after
		}
	}
	if lower > upper {
		return found, nil
	}

	input := &sdk.QueryInput{
		TableName:              aws.String(t.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :lower AND :upper"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: partition},
			":lower": &types.AttributeValueMemberS{Value: lower},
			":upper": &types.AttributeValueMemberS{Value: upper},
		},
		ProjectionExpression: aws.String("SK"),
		Limit:                aws.Int32(int32(min(count, queryPageLimit-1) + 1)),
	}
	for {
		out, err := withRetry(ctx, t.options, "Query", func() (*sdk.QueryOutput, error) {
			return t.client.Query(ctx, input)
		})
		if err != nil {
			return nil, err
		}
		for _, av := range out.Items {
			var item storagemodels.SnapshotItem
			if err := attributevalue.UnmarshalMap(av, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item: %w", err)
			}
			if item.SK == after {
				continue
			}
			key, err := storagemodels.ParseStorageKey(item.SK)
			if err != nil {
				return nil, err
			}
			found = append(found, key)
			if uint(len(found)) == count {
				return found, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return found, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// batchValues reads the requested keys with concurrent BatchGetItem calls.
// Absent keys have no entry in the result.
func (t *Transport) batchValues(ctx context.Context, partition string, requested []storagemodels.StorageKey) (map[string][]byte, error) {
	unique := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, key := range requested {
		sk := key.Hex()
		if _, dup := seen[sk]; dup {
			continue
		}
		seen[sk] = struct{}{}
		unique = append(unique, sk)
	}

	var mu sync.Mutex
	values := make(map[string][]byte, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(unique); lo += batchGetLimit {
		chunk := unique[lo:min(lo+batchGetLimit, len(unique))]
		g.Go(func() error {
			found, err := t.batchGet(gctx, partition, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for sk, value := range found {
				values[sk] = value
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

func (t *Transport) batchGet(ctx context.Context, partition string, chunk []string) (map[string][]byte, error) {
	request := make([]map[string]types.AttributeValue, len(chunk))
	for i, sk := range chunk {
		request[i] = snapshotKey(partition, sk)
	}
	pending := map[string]types.KeysAndAttributes{t.tableName: {Keys: request}}

	found := make(map[string][]byte, len(chunk))
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt > t.options.MaxRetries {
			return nil, fmt.Errorf("BatchGetItem left %d keys unprocessed after %d retries",
				len(pending[t.tableName].Keys), t.options.MaxRetries)
		}
		if attempt > 0 {
			t.options.Logger.Debug("Retrying unprocessed keys",
				zap.Int("keys", len(pending[t.tableName].Keys)), zap.Int("attempt", attempt))
			if err := backoff(ctx, t.options, attempt-1); err != nil {
				return nil, err
			}
		}

		out, err := withRetry(ctx, t.options, "BatchGetItem", func() (*sdk.BatchGetItemOutput, error) {
			return t.client.BatchGetItem(ctx, &sdk.BatchGetItemInput{RequestItems: pending})
		})
		if err != nil {
			return nil, err
		}
		for _, av := range out.Responses[t.tableName] {
			item, value, err := decodeItem(av)
			if err != nil {
				return nil, fmt.Errorf("item %s: %w", item.SK, err)
			}
			found[item.SK] = value
		}
		pending = out.UnprocessedKeys
	}
	return found, nil
}

func decodeItem(av map[string]types.AttributeValue) (storagemodels.SnapshotItem, []byte, error) {
	var item storagemodels.SnapshotItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return item, nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	value, err := hexutil.Decode(item.Value)
	if err != nil {
		return item, nil, fmt.Errorf("invalid value: %w", err)
	}
	return item, value, nil
}

func parseBlock(args []json.RawMessage, i int) (storagemodels.BlockRef, error) {
	if len(args) <= i || isNull(args[i]) {
		return storagemodels.Current, nil
	}
	var hash storagemodels.Hash
	if err := json.Unmarshal(args[i], &hash); err != nil {
		return storagemodels.Current, err
	}
	return storagemodels.At(hash), nil
}

func partition(at storagemodels.BlockRef) string {
	hash, pinned := at.Hash()
	if !pinned {
		return storagemodels.BlockPartition("")
	}
	return storagemodels.BlockPartition(hash.Hex())
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func invalidParams(method string, err error) error {
	return errors.NewTransportError(method, codeInvalidParams, "invalid params: "+err.Error())
}

// failure reports backend errors as transport errors. Context errors pass through.
func failure(method string, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.NewTransportError(method, codeBackend, err.Error())
}
