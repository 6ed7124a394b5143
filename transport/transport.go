/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package transport

import (
	"context"
	"encoding/json"
	"strings"
)

// RPC methods the query engine issues.
const (
	MethodGetStorage         = "state_getStorage"
	MethodGetStorageSize     = "state_getStorageSize"
	MethodGetStorageHash     = "state_getStorageHash"
	MethodGetKeysPaged       = "state_getKeysPaged"
	MethodQueryStorageAt     = "state_queryStorageAt"
	MethodSubscribeStorage   = "state_subscribeStorage"
	MethodUnsubscribeStorage = "state_unsubscribeStorage"
)

// SubscriptionID identifies a live subscription on the transport.
type SubscriptionID string

// NotifyFunc receives the raw result of each subscription notification.
// Calls for one subscription are sequential and follow arrival order.
type NotifyFunc func(result json.RawMessage)

type Transport interface {
	Send(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// Subscribe opens a subscription. notify may be called before Subscribe returns.
	Subscribe(ctx context.Context, method string, params []any, notify NotifyFunc) (SubscriptionID, error)

	Unsubscribe(ctx context.Context, id SubscriptionID) error
}

// UnsubscribeMethod derives the unsubscribe method of a subscribe method,
// e.g. state_subscribeStorage -> state_unsubscribeStorage.
func UnsubscribeMethod(method string) string {
	return strings.Replace(method, "_subscribe", "_unsubscribe", 1)
}

// DecodeParams round-trips params through JSON, giving in-process
// implementations the same view of the arguments a socket would carry.
func DecodeParams(params []any) ([]json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}
