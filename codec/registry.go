package codec

import (
	"fmt"
	"sync"

	"github.com/suparena/chainquery/storagemodels"
)

// Codec encodes and decodes values given a type reference.
type Codec interface {
	Encode(typeRef storagemodels.TypeRef, value any) ([]byte, error)
	Decode(typeRef storagemodels.TypeRef, data []byte) (any, error)
}

// EncodeFunc encodes a value into its canonical bytes.
type EncodeFunc func(value any) ([]byte, error)

// DecodeFunc decodes raw bytes into a value.
type DecodeFunc func(data []byte) (any, error)

type codecFuncs struct {
	encode EncodeFunc
	decode DecodeFunc
}

// Registry holds the mapping from a type reference (like "u128" or "AccountInfo") to its codec functions.
// It implements Codec.
type Registry struct {
	mu    sync.RWMutex
	types map[storagemodels.TypeRef]codecFuncs
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[storagemodels.TypeRef]codecFuncs)}
}

// RegisterType registers codec functions for a type reference.
// If a type is already registered under the reference, it panics to prevent accidental overrides.
// Either function may be nil for types that are only read or only used as keys.
func (r *Registry) RegisterType(typeRef storagemodels.TypeRef, enc EncodeFunc, dec DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[typeRef]; exists {
		panic(fmt.Sprintf("codec registry: type %q already registered", typeRef))
	}
	r.types[typeRef] = codecFuncs{encode: enc, decode: dec}
}

// Alias registers typeRef with the functions already registered for target.
func (r *Registry) Alias(typeRef, target storagemodels.TypeRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fns, ok := r.types[target]
	if !ok {
		return fmt.Errorf("codec registry: no type registered for %q", target)
	}
	if _, exists := r.types[typeRef]; exists {
		return fmt.Errorf("codec registry: type %q already registered", typeRef)
	}
	r.types[typeRef] = fns
	return nil
}

// Has reports whether typeRef is registered.
func (r *Registry) Has(typeRef storagemodels.TypeRef) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[typeRef]
	return ok
}

func (r *Registry) lookup(typeRef storagemodels.TypeRef) (codecFuncs, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fns, ok := r.types[typeRef]
	if !ok {
		return codecFuncs{}, fmt.Errorf("codec registry: no type registered for %q", typeRef)
	}
	return fns, nil
}

// Encode implements Codec.
func (r *Registry) Encode(typeRef storagemodels.TypeRef, value any) ([]byte, error) {
	fns, err := r.lookup(typeRef)
	if err != nil {
		return nil, err
	}
	if fns.encode == nil {
		return nil, fmt.Errorf("codec registry: type %q cannot be encoded", typeRef)
	}
	return fns.encode(value)
}

// Decode implements Codec.
func (r *Registry) Decode(typeRef storagemodels.TypeRef, data []byte) (any, error) {
	fns, err := r.lookup(typeRef)
	if err != nil {
		return nil, err
	}
	if fns.decode == nil {
		return nil, fmt.Errorf("codec registry: type %q cannot be decoded", typeRef)
	}
	return fns.decode(data)
}
