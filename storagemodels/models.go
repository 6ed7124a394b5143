/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TypeRef names a type known to the codec service (for example "u128" or "AccountInfo").
type TypeRef string

// HasherKind selects how an encoded key argument is folded into a storage key.
type HasherKind int

const (
	Identity HasherKind = iota
	Twox64Concat
	Twox128
	Twox256
	Blake2_128
	Blake2_128Concat
	Blake2_256
)

var hasherNames = map[HasherKind]string{
	Identity:         "Identity",
	Twox64Concat:     "Twox64Concat",
	Twox128:          "Twox128",
	Twox256:          "Twox256",
	Blake2_128:       "Blake2_128",
	Blake2_128Concat: "Blake2_128Concat",
	Blake2_256:       "Blake2_256",
}

func (h HasherKind) String() string {
	if name, ok := hasherNames[h]; ok {
		return name
	}
	return fmt.Sprintf("HasherKind(%d)", int(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h HasherKind) MarshalText() ([]byte, error) {
	if _, ok := hasherNames[h]; !ok {
		return nil, fmt.Errorf("unknown hasher %d", int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText accepts the metadata spelling of a hasher, case-insensitively.
func (h *HasherKind) UnmarshalText(text []byte) error {
	name := strings.TrimSpace(string(text))
	for kind, known := range hasherNames {
		if strings.EqualFold(known, name) {
			*h = kind
			return nil
		}
	}
	return fmt.Errorf("unknown hasher %q", name)
}

// IsConcat reports whether the hasher appends the raw encoded argument after its digest.
func (h HasherKind) IsConcat() bool {
	return h == Identity || h == Twox64Concat || h == Blake2_128Concat
}

// Modifier tells how an absent value is represented.
type Modifier int

const (
	// Optional entries decode an absent value to nil.
	Optional Modifier = iota
	// Default entries decode an absent value from the entry's fallback bytes.
	Default
)

func (m Modifier) String() string {
	if m == Default {
		return "Default"
	}
	return "Optional"
}

// MarshalText implements encoding.TextMarshaler.
func (m Modifier) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Modifier) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "optional":
		*m = Optional
	case "default":
		*m = Default
	default:
		return fmt.Errorf("unknown modifier %q", string(text))
	}
	return nil
}

// EntryDescriptor is the metadata description of one storage entry.
// Descriptors are never mutated after construction and are shared by every accessor built from them.
type EntryDescriptor struct {
	// Module is the pallet name, e.g. "System".
	Module string
	// Method is the storage item name, e.g. "Account".
	Method string
	// Hashers holds one hasher per map key, outermost first. Empty for plain values.
	Hashers []HasherKind
	// KeyTypes holds the codec type of each map key, aligned with Hashers.
	KeyTypes []TypeRef
	// Value is the codec type of the stored value.
	Value TypeRef
	// Modifier controls the empty representation.
	Modifier Modifier
	// Fallback is the encoded default used by Default entries when a key is absent.
	Fallback []byte
	// Docs is the documentation carried by the metadata.
	Docs string
}

// IsIterable reports whether the entry is a map whose keys can be enumerated.
func (d *EntryDescriptor) IsIterable() bool {
	return len(d.Hashers) > 0
}

// Name returns "module.method".
func (d *EntryDescriptor) Name() string {
	return d.Module + "." + d.Method
}

// Validate checks the structural consistency of the descriptor.
func (d *EntryDescriptor) Validate() error {
	if strings.TrimSpace(d.Module) == "" {
		return fmt.Errorf("descriptor: module is required")
	}
	if strings.TrimSpace(d.Method) == "" {
		return fmt.Errorf("descriptor %s: method is required", d.Module)
	}
	if len(d.KeyTypes) != len(d.Hashers) {
		return fmt.Errorf("descriptor %s: %d hashers but %d key types", d.Name(), len(d.Hashers), len(d.KeyTypes))
	}
	if d.Value == "" {
		return fmt.Errorf("descriptor %s: value type is required", d.Name())
	}
	for i, h := range d.Hashers {
		if _, ok := hasherNames[h]; !ok {
			return fmt.Errorf("descriptor %s: unknown hasher %d at position %d", d.Name(), int(h), i)
		}
	}
	return nil
}

// StorageKey is a raw storage key.
type StorageKey []byte

// Hex returns the 0x-prefixed hex form used on the wire.
func (k StorageKey) Hex() string {
	return hexutil.Encode(k)
}

func (k StorageKey) String() string {
	return k.Hex()
}

// HasPrefix reports whether k starts with prefix.
func (k StorageKey) HasPrefix(prefix StorageKey) bool {
	return bytes.HasPrefix(k, prefix)
}

// MarshalText implements encoding.TextMarshaler.
func (k StorageKey) MarshalText() ([]byte, error) {
	return hexutil.Bytes(k).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StorageKey) UnmarshalText(text []byte) error {
	return (*hexutil.Bytes)(k).UnmarshalText(text)
}

// ParseStorageKey parses a 0x-prefixed hex key.
func ParseStorageKey(s string) (StorageKey, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid storage key %q: %w", s, err)
	}
	return StorageKey(b), nil
}

// Hash is a 32-byte block or content hash.
type Hash [32]byte

// Hex returns the 0x-prefixed hex form.
func (h Hash) Hex() string {
	return hexutil.Encode(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether all bytes are zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	var b hexutil.Bytes
	if err := b.UnmarshalText(text); err != nil {
		return err
	}
	if len(b) != len(h) {
		return fmt.Errorf("hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return nil
}

// ParseHash parses a 0x-prefixed 32-byte hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return h, nil
}

// BlockRef pins a query to a block. The zero value means the current best block.
type BlockRef struct {
	hash   Hash
	pinned bool
}

// Current is the reference to the node's current state.
var Current = BlockRef{}

// At returns a reference pinned to the given block hash.
func At(hash Hash) BlockRef {
	return BlockRef{hash: hash, pinned: true}
}

// IsCurrent reports whether the reference is unpinned.
func (b BlockRef) IsCurrent() bool {
	return !b.pinned
}

// Hash returns the pinned block hash and whether one is set.
func (b BlockRef) Hash() (Hash, bool) {
	return b.hash, b.pinned
}

// AppendParam appends the block hash to RPC params when the reference is pinned.
func (b BlockRef) AppendParam(params []any) []any {
	if !b.pinned {
		return params
	}
	return append(params, b.hash.Hex())
}

func (b BlockRef) String() string {
	if !b.pinned {
		return "current"
	}
	return b.hash.Hex()
}

// PaginationOptions bounds a keysPaged/entriesPaged call.
type PaginationOptions struct {
	// PageSize is the maximum number of keys returned.
	PageSize uint
	// StartKey is exclusive: the page begins after it. To continue, pass the last key of the previous page.
	StartKey StorageKey
	// Args are the leading map keys narrowing the iteration prefix.
	Args []any
	// At pins the page to a block.
	At BlockRef
}

// KeyValue is one (key, decoded value) pair returned by entries iteration.
type KeyValue struct {
	Key   StorageKey
	Value any
}
