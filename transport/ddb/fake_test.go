/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const testTable = "chain-snapshots"

// fakeDynamo is an in-memory table understanding the expressions the
// Transport issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]map[string]types.AttributeValue
	calls map[string]int

	// throttle fails that many GetItem calls with a throughput error.
	throttle int
	// unprocessed makes that many BatchGetItem calls defer half their keys.
	unprocessed int
	batchSizes  []int
	limits      []int32
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		items: make(map[string]map[string]map[string]types.AttributeValue),
		calls: make(map[string]int),
	}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDynamo) size(pk string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items[pk])
}

func (f *fakeDynamo) get(key map[string]types.AttributeValue) map[string]types.AttributeValue {
	return f.items[str(key["PK"])][str(key["SK"])]
}

func (f *fakeDynamo) GetItem(_ context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetItem"]++
	if f.throttle > 0 {
		f.throttle--
		return nil, &types.ProvisionedThroughputExceededException{Message: new(string)}
	}
	if *in.TableName != testTable {
		return nil, &types.ResourceNotFoundException{}
	}
	return &sdk.GetItemOutput{Item: f.get(in.Key)}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Query"]++
	if *in.KeyConditionExpression != "PK = :pk AND SK BETWEEN :lower AND :upper" {
		return nil, fmt.Errorf("unsupported key condition %q", *in.KeyConditionExpression)
	}
	if in.Limit != nil {
		if *in.Limit < 1 {
			return nil, fmt.Errorf("ValidationException: limit must be at least 1, got %d", *in.Limit)
		}
		f.limits = append(f.limits, *in.Limit)
	}
	values := in.ExpressionAttributeValues
	part := f.items[str(values[":pk"])]
	lower, upper := str(values[":lower"]), str(values[":upper"])
	after := ""
	if in.ExclusiveStartKey != nil {
		after = str(in.ExclusiveStartKey["SK"])
	}

	var sks []string
	for sk := range part {
		if sk >= lower && sk <= upper && (after == "" || sk > after) {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)

	out := &sdk.QueryOutput{}
	limit := len(sks)
	if in.Limit != nil && int(*in.Limit) < limit {
		limit = int(*in.Limit)
	}
	for _, sk := range sks[:limit] {
		out.Items = append(out.Items, map[string]types.AttributeValue{
			"PK": part[sk]["PK"],
			"SK": part[sk]["SK"],
		})
	}
	if limit < len(sks) {
		last := out.Items[len(out.Items)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	return out, nil
}

func (f *fakeDynamo) BatchGetItem(_ context.Context, in *sdk.BatchGetItemInput, _ ...func(*sdk.Options)) (*sdk.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["BatchGetItem"]++
	requested := in.RequestItems[testTable].Keys
	if len(requested) > 100 {
		return nil, fmt.Errorf("too many keys: %d", len(requested))
	}
	f.batchSizes = append(f.batchSizes, len(requested))

	out := &sdk.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	served := requested
	if f.unprocessed > 0 && len(requested) > 1 {
		f.unprocessed--
		half := len(requested) / 2
		served = requested[:half]
		out.UnprocessedKeys = map[string]types.KeysAndAttributes{testTable: {Keys: requested[half:]}}
	}
	for _, key := range served {
		if item := f.get(key); item != nil {
			out.Responses[testTable] = append(out.Responses[testTable], item)
		}
	}
	return out, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *sdk.BatchWriteItemInput, _ ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["BatchWriteItem"]++
	requests := in.RequestItems[testTable]
	if len(requests) > 25 {
		return nil, fmt.Errorf("too many requests: %d", len(requests))
	}
	for _, req := range requests {
		switch {
		case req.PutRequest != nil:
			item := req.PutRequest.Item
			pk := str(item["PK"])
			if f.items[pk] == nil {
				f.items[pk] = make(map[string]map[string]types.AttributeValue)
			}
			f.items[pk][str(item["SK"])] = item
		case req.DeleteRequest != nil:
			delete(f.items[str(req.DeleteRequest.Key["PK"])], str(req.DeleteRequest.Key["SK"]))
		}
	}
	return &sdk.BatchWriteItemOutput{}, nil
}
