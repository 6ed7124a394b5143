/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"github.com/suparena/chainquery/codec"
	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/registry"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

// Surface is the decorated query surface: one Entry per storage entry in the metadata.
// It is immutable; new metadata means a new Surface.
type Surface struct {
	metadata *registry.Metadata
	entries  map[*storagemodels.EntryDescriptor]*Entry
}

// Decorate builds an Entry for every descriptor of md.
func Decorate(md *registry.Metadata, t transport.Transport, c codec.Codec, live *Coordinator, opts ...storagemodels.QueryOption) *Surface {
	s := &Surface{
		metadata: md,
		entries:  make(map[*storagemodels.EntryDescriptor]*Entry),
	}
	for _, d := range md.All() {
		s.entries[d] = NewEntry(d, t, c, live, opts...)
	}
	return s
}

// Metadata returns the metadata the surface was built from.
func (s *Surface) Metadata() *registry.Metadata {
	return s.metadata
}

// Modules returns module names in lower camel case.
func (s *Surface) Modules() []string {
	return s.metadata.Modules()
}

// Entry returns the accessor of module.method.
func (s *Surface) Entry(module, method string) (*Entry, error) {
	d, ok := s.metadata.Lookup(module, method)
	if !ok {
		return nil, errors.NewNotFoundError("storage entry", module+"."+method)
	}
	return s.entries[d], nil
}

// Module returns the accessors of a module in declaration order.
func (s *Surface) Module(module string) ([]*Entry, error) {
	descriptors := s.metadata.Entries(module)
	if len(descriptors) == 0 {
		return nil, errors.NewNotFoundError("module", module)
	}
	entries := make([]*Entry, len(descriptors))
	for i, d := range descriptors {
		entries[i] = s.entries[d]
	}
	return entries, nil
}

// Find returns the accessor owning key, if any.
func (s *Surface) Find(key storagemodels.StorageKey) (*Entry, bool) {
	for _, d := range s.metadata.All() {
		if e := s.entries[d]; e.Is(key) {
			return e, true
		}
	}
	return nil, false
}
