/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a module or storage entry is not part of the decorated surface
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrArity is returned when an entry is called with more arguments than it has hashers
	ErrArity = errors.New("too many arguments")

	// ErrNotIterable is returned when keys/entries are requested for a plain entry
	ErrNotIterable = errors.New("entry is not iterable")

	// ErrEncoding is returned when a key argument cannot be encoded
	ErrEncoding = errors.New("encoding failed")

	// ErrDecode is returned when a stored value cannot be decoded
	ErrDecode = errors.New("decode failed")

	// ErrTransport is returned for failures reported by the node or the connection
	ErrTransport = errors.New("transport error")

	// ErrMethodNotFound is returned when the transport does not serve an RPC method
	ErrMethodNotFound = errors.New("rpc method not found")
)

// CodeMethodNotFound is the JSON-RPC error code for an unknown method.
const CodeMethodNotFound = -32601

// NotFoundError represents an error when a module or entry is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ArityError is raised when more arguments are supplied than the entry has hashers
type ArityError struct {
	Module string
	Method string
	Got    int
	Max    int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s.%s takes at most %d argument(s), got %d", e.Module, e.Method, e.Max, e.Got)
}

func (e *ArityError) Is(target error) bool {
	return target == ErrArity
}

// NotIterableError is raised when iteration is requested on an entry without map keys
type NotIterableError struct {
	Module string
	Method string
}

func (e *NotIterableError) Error() string {
	return fmt.Sprintf("%s.%s is not a map and cannot be iterated", e.Module, e.Method)
}

func (e *NotIterableError) Is(target error) bool {
	return target == ErrNotIterable
}

// EncodingError wraps a codec failure while encoding the key argument at Index
type EncodingError struct {
	TypeRef string
	Index   int
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("unable to encode argument %d as %s: %v", e.Index, e.TypeRef, e.Err)
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// DecodeError wraps a codec failure for the value stored under Key
type DecodeError struct {
	Key     string
	TypeRef string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode %s at key %s: %v", e.TypeRef, e.Key, e.Err)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TransportError represents a failure reported by the node (a JSON-RPC error object)
// or by the connection carrying the call.
type TransportError struct {
	Method  string
	Code    int
	Message string
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

func (e *TransportError) Is(target error) bool {
	if target == ErrMethodNotFound {
		return e.Code == CodeMethodNotFound
	}
	return target == ErrTransport
}

// KeyError tags an error with the storage key that was being read.
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key %s: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(kind, key string) error {
	return &NotFoundError{Type: kind, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewArityError creates a new ArityError
func NewArityError(module, method string, got, max int) error {
	return &ArityError{Module: module, Method: method, Got: got, Max: max}
}

// NewNotIterableError creates a new NotIterableError
func NewNotIterableError(module, method string) error {
	return &NotIterableError{Module: module, Method: method}
}

// NewEncodingError creates a new EncodingError
func NewEncodingError(typeRef string, index int, err error) error {
	return &EncodingError{TypeRef: typeRef, Index: index, Err: err}
}

// NewDecodeError creates a new DecodeError
func NewDecodeError(key, typeRef string, err error) error {
	return &DecodeError{Key: key, TypeRef: typeRef, Err: err}
}

// NewTransportError creates a new TransportError
func NewTransportError(method string, code int, message string) error {
	return &TransportError{Method: method, Code: code, Message: message}
}

// WithKey tags err with the storage key it concerns. A nil err stays nil.
func WithKey(key string, err error) error {
	if err == nil {
		return nil
	}
	return &KeyError{Key: key, Err: err}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsArity checks if an error is an arity error
func IsArity(err error) bool {
	return errors.Is(err, ErrArity)
}

// IsNotIterable checks if an error is a not-iterable error
func IsNotIterable(err error) bool {
	return errors.Is(err, ErrNotIterable)
}

// IsEncoding checks if an error is an encoding error
func IsEncoding(err error) bool {
	return errors.Is(err, ErrEncoding)
}

// IsDecode checks if an error is a decode error
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

// IsTransport checks if an error came from the transport
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsMethodNotFound checks if the transport rejected the RPC method as unknown
func IsMethodNotFound(err error) bool {
	return errors.Is(err, ErrMethodNotFound)
}
