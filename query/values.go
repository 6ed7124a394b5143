/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/suparena/chainquery/codec"
	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

// Undecodable occupies the slot of a live query result whose stored bytes
// could not be decoded. The other slots of the same emission are unaffected.
type Undecodable struct {
	Key storagemodels.StorageKey
	Raw []byte
	Err error
}

func (u *Undecodable) String() string {
	return fmt.Sprintf("undecodable value at %s: %v", u.Key.Hex(), u.Err)
}

// decodeValue decodes raw as the value type of d. A nil raw means the key is absent.
func decodeValue(c codec.Codec, d *storagemodels.EntryDescriptor, key storagemodels.StorageKey, raw []byte) (any, error) {
	if raw == nil {
		return emptyValue(c, d, key)
	}
	v, err := c.Decode(d.Value, raw)
	if err != nil {
		return nil, errors.NewDecodeError(key.Hex(), string(d.Value), err)
	}
	return v, nil
}

// emptyValue is the value of an absent key: nil for Optional entries,
// the decoded fallback for Default entries.
func emptyValue(c codec.Codec, d *storagemodels.EntryDescriptor, key storagemodels.StorageKey) (any, error) {
	if d.Modifier == storagemodels.Optional || d.Fallback == nil {
		return nil, nil
	}
	v, err := c.Decode(d.Value, d.Fallback)
	if err != nil {
		return nil, errors.NewDecodeError(key.Hex(), string(d.Value), fmt.Errorf("fallback: %w", err))
	}
	return v, nil
}

// readValues fetches keys in one state_queryStorageAt call. The result is
// positional; nil marks an absent key. Transport errors are returned unmodified.
func readValues(ctx context.Context, t transport.Transport, keys []storagemodels.StorageKey, at storagemodels.BlockRef) ([][]byte, error) {
	hexKeys := make([]string, len(keys))
	for i, key := range keys {
		hexKeys[i] = key.Hex()
	}
	raw, err := t.Send(ctx, transport.MethodQueryStorageAt, at.AppendParam([]any{hexKeys})...)
	if err != nil {
		return nil, err
	}
	return parseValues(raw, keys)
}

// parseValues accepts both result shapes nodes produce: a list of change sets
// ([{"block": .., "changes": [[key, value], ..]}]) or a bare list of values in request order.
func parseValues(raw json.RawMessage, keys []storagemodels.StorageKey) ([][]byte, error) {
	values := make([][]byte, len(keys))

	var sets []storagemodels.StorageChangeSet
	if err := json.Unmarshal(raw, &sets); err == nil {
		byKey := make(map[string][]byte)
		for _, set := range sets {
			for _, change := range set.Changes {
				byKey[change.Key.Hex()] = change.Value
			}
		}
		for i, key := range keys {
			values[i] = byKey[key.Hex()]
		}
		return values, nil
	}

	var positional []*hexutil.Bytes
	if err := json.Unmarshal(raw, &positional); err != nil {
		return nil, errors.NewTransportError(transport.MethodQueryStorageAt, 0, "unrecognised result: "+err.Error())
	}
	if len(positional) != len(keys) {
		return nil, errors.NewTransportError(transport.MethodQueryStorageAt, 0,
			fmt.Sprintf("expected %d values, got %d", len(keys), len(positional)))
	}
	for i, v := range positional {
		if v == nil {
			continue
		}
		values[i] = append([]byte{}, *v...)
	}
	return values, nil
}

// parseOptionalBytes decodes a "0x.." or null RPC result.
func parseOptionalBytes(method string, raw json.RawMessage) ([]byte, error) {
	var v *hexutil.Bytes
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.NewTransportError(method, 0, "unrecognised result: "+err.Error())
	}
	if v == nil {
		return nil, nil
	}
	return append([]byte{}, *v...), nil
}
