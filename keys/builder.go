/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package keys

import (
	"fmt"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/storagemodels"
)

// prefixLen is the length of twox128(module) ++ twox128(method).
const prefixLen = 32

// Encoder turns a typed value into its canonical bytes.
type Encoder interface {
	Encode(typeRef storagemodels.TypeRef, value any) ([]byte, error)
}

// EntryPrefix returns twox128(module) ++ twox128(method).
func EntryPrefix(module, method string) storagemodels.StorageKey {
	key := make([]byte, 0, prefixLen)
	key = append(key, twox([]byte(module), 2)...)
	key = append(key, twox([]byte(method), 2)...)
	return key
}

// Build computes the storage key of d for already encoded arguments.
// Fewer arguments than hashers yield an iteration prefix.
func Build(d *storagemodels.EntryDescriptor, encoded [][]byte) (storagemodels.StorageKey, error) {
	if len(encoded) > len(d.Hashers) {
		return nil, errors.NewArityError(d.Module, d.Method, len(encoded), len(d.Hashers))
	}
	key := EntryPrefix(d.Module, d.Method)
	for i, arg := range encoded {
		part, err := Hash(d.Hashers[i], arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", d.Name(), i, err)
		}
		key = append(key, part...)
	}
	return key, nil
}

// Prefix computes the iteration prefix for the leading encoded arguments.
// It is Build with the partial argument list, kept separate to name intent at call sites.
func Prefix(d *storagemodels.EntryDescriptor, leading [][]byte) (storagemodels.StorageKey, error) {
	return Build(d, leading)
}

// Matches reports whether key belongs to the entry described by d.
func Matches(d *storagemodels.EntryDescriptor, key storagemodels.StorageKey) bool {
	if len(key) < prefixLen {
		return false
	}
	if !d.IsIterable() && len(key) != prefixLen {
		return false
	}
	return key.HasPrefix(EntryPrefix(d.Module, d.Method))
}

// Builder encodes typed arguments with a codec before hashing them into keys.
type Builder struct {
	enc Encoder
}

// NewBuilder returns a Builder using enc for argument encoding.
func NewBuilder(enc Encoder) *Builder {
	return &Builder{enc: enc}
}

// Encode encodes args against the key types of d.
func (b *Builder) Encode(d *storagemodels.EntryDescriptor, args []any) ([][]byte, error) {
	if len(args) > len(d.Hashers) {
		return nil, errors.NewArityError(d.Module, d.Method, len(args), len(d.Hashers))
	}
	if len(d.KeyTypes) < len(args) {
		return nil, errors.NewValidationError("KeyTypes",
			fmt.Sprintf("%s.%s declares %d key types for %d hashers", d.Module, d.Method, len(d.KeyTypes), len(d.Hashers)))
	}
	encoded := make([][]byte, len(args))
	for i, arg := range args {
		typeRef := d.KeyTypes[i]
		data, err := b.enc.Encode(typeRef, arg)
		if err != nil {
			return nil, errors.NewEncodingError(string(typeRef), i, err)
		}
		encoded[i] = data
	}
	return encoded, nil
}

// Key computes the storage key of d for typed args.
func (b *Builder) Key(d *storagemodels.EntryDescriptor, args ...any) (storagemodels.StorageKey, error) {
	encoded, err := b.Encode(d, args)
	if err != nil {
		return nil, err
	}
	return Build(d, encoded)
}

// Prefix computes the iteration prefix of d for typed leading args.
func (b *Builder) Prefix(d *storagemodels.EntryDescriptor, leading ...any) (storagemodels.StorageKey, error) {
	encoded, err := b.Encode(d, leading)
	if err != nil {
		return nil, err
	}
	return Prefix(d, encoded)
}
