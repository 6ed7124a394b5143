/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("entry", "system.account")

	expected := `entry with key "system.account" not found`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}

	if !IsNotFound(err) {
		t.Error("IsNotFound should return true for NotFoundError")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "with field",
			field:    "pageSize",
			message:  "must be positive",
			expected: `validation failed for field "pageSize": must be positive`,
		},
		{
			name:     "without field",
			field:    "",
			message:  "missing entry",
			expected: "validation failed: missing entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message)

			if err.Error() != tt.expected {
				t.Errorf("Expected error message %q, got %q", tt.expected, err.Error())
			}

			if !IsValidationError(err) {
				t.Error("IsValidationError should return true for ValidationError")
			}
		})
	}
}

func TestArityError(t *testing.T) {
	err := NewArityError("system", "account", 2, 1)

	expected := "system.account takes at most 1 argument(s), got 2"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
	if !IsArity(err) {
		t.Error("IsArity should return true for ArityError")
	}
}

func TestNotIterableError(t *testing.T) {
	err := NewNotIterableError("balances", "totalIssuance")
	if !IsNotIterable(err) {
		t.Error("IsNotIterable should return true for NotIterableError")
	}
	if IsArity(err) {
		t.Error("NotIterableError should not match ErrArity")
	}
}

func TestCodecErrorsUnwrap(t *testing.T) {
	cause := errors.New("short buffer")

	enc := NewEncodingError("AccountId32", 0, cause)
	if !IsEncoding(enc) || !errors.Is(enc, cause) {
		t.Errorf("EncodingError should match ErrEncoding and its cause: %v", enc)
	}

	dec := NewDecodeError("0x26aa", "u128", cause)
	if !IsDecode(dec) || !errors.Is(dec, cause) {
		t.Errorf("DecodeError should match ErrDecode and its cause: %v", dec)
	}

	var de *DecodeError
	if !errors.As(fmt.Errorf("query: %w", dec), &de) || de.Key != "0x26aa" {
		t.Error("DecodeError should be reachable through wrapping")
	}
}

func TestTransportError(t *testing.T) {
	err := NewTransportError("state_getStorageSize", CodeMethodNotFound, "Method not found")
	if !IsTransport(err) {
		t.Error("TransportError should match ErrTransport")
	}
	if !IsMethodNotFound(err) {
		t.Error("code -32601 should match ErrMethodNotFound")
	}

	other := NewTransportError("state_getStorage", -32000, "boom")
	if IsMethodNotFound(other) {
		t.Error("only -32601 should match ErrMethodNotFound")
	}
	if other.Error() != "state_getStorage: -32000: boom" {
		t.Errorf("unexpected message %q", other.Error())
	}
}

func TestKeyError(t *testing.T) {
	if WithKey("0x00", nil) != nil {
		t.Fatal("WithKey should keep nil errors nil")
	}

	cause := NewTransportError("state_getStorage", 0, "connection closed")
	err := WithKey("0xabcd", cause)
	if !errors.Is(err, cause) {
		t.Error("KeyError should unwrap to the original error")
	}
	if err.Error() != "key 0xabcd: state_getStorage: connection closed" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestErrorWrapping(t *testing.T) {
	original := NewNotFoundError("module", "staking")
	wrapped := fmt.Errorf("lookup failed: %w", original)

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should work with wrapped errors")
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrArity,
		ErrNotIterable,
		ErrEncoding,
		ErrDecode,
		ErrTransport,
		ErrMethodNotFound,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v matches %v", err1, err2)
			}
		}
	}
}
