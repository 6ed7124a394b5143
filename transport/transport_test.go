/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package transport

import "testing"

func TestUnsubscribeMethod(t *testing.T) {
	tests := map[string]string{
		MethodSubscribeStorage:          MethodUnsubscribeStorage,
		"chain_subscribeNewHeads":       "chain_unsubscribeNewHeads",
		"state_subscribeRuntimeVersion": "state_unsubscribeRuntimeVersion",
	}
	for in, want := range tests {
		if got := UnsubscribeMethod(in); got != want {
			t.Errorf("UnsubscribeMethod(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeParams(t *testing.T) {
	args, err := DecodeParams([]any{"0x01", uint(5), nil, []string{"0x02"}})
	if err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	want := []string{`"0x01"`, `5`, `null`, `["0x02"]`}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d", len(want), len(args))
	}
	for i, w := range want {
		if string(args[i]) != w {
			t.Errorf("arg %d = %s, want %s", i, args[i], w)
		}
	}

	if _, err := DecodeParams([]any{make(chan int)}); err == nil {
		t.Error("expected an error for an unencodable param")
	}
}
