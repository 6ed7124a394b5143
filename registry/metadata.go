/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"github.com/suparena/chainquery/storagemodels"
)

// Metadata holds the storage entry descriptors published by a node, grouped by module.
// It is immutable once built; a new runtime version means a new Metadata.
type Metadata struct {
	version uint32
	modules []string
	entries map[string][]*storagemodels.EntryDescriptor
	index   map[string]*storagemodels.EntryDescriptor
}

// New validates descriptors and indexes copies of them. Module order follows first appearance.
func New(version uint32, descriptors []storagemodels.EntryDescriptor) (*Metadata, error) {
	m := &Metadata{
		version: version,
		entries: make(map[string][]*storagemodels.EntryDescriptor),
		index:   make(map[string]*storagemodels.EntryDescriptor, len(descriptors)),
	}
	for i := range descriptors {
		d := descriptors[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		d.Hashers = slices.Clone(d.Hashers)
		d.KeyTypes = slices.Clone(d.KeyTypes)
		// An explicit empty fallback stays non-nil; nil means none was declared.
		d.Fallback = bytes.Clone(d.Fallback)

		name := indexName(d.Module, d.Method)
		if _, exists := m.index[name]; exists {
			return nil, fmt.Errorf("metadata: entry %s declared twice", d.Name())
		}
		module := lowerFirst(d.Module)
		if _, seen := m.entries[module]; !seen {
			m.modules = append(m.modules, module)
		}
		m.entries[module] = append(m.entries[module], &d)
		m.index[name] = &d
	}
	return m, nil
}

// Version returns the runtime version the metadata was published for.
func (m *Metadata) Version() uint32 {
	return m.version
}

// Modules returns module names in lower camel case, in declaration order.
func (m *Metadata) Modules() []string {
	return append([]string(nil), m.modules...)
}

// Entries returns the descriptors of a module in declaration order.
func (m *Metadata) Entries(module string) []*storagemodels.EntryDescriptor {
	return append([]*storagemodels.EntryDescriptor(nil), m.entries[lowerFirst(module)]...)
}

// All returns every descriptor, grouped by module.
func (m *Metadata) All() []*storagemodels.EntryDescriptor {
	all := make([]*storagemodels.EntryDescriptor, 0, len(m.index))
	for _, module := range m.modules {
		all = append(all, m.entries[module]...)
	}
	return all
}

// Lookup finds an entry. Names match regardless of the case of their first letter,
// so "System"/"Account" and "system"/"account" resolve to the same entry.
func (m *Metadata) Lookup(module, method string) (*storagemodels.EntryDescriptor, bool) {
	d, ok := m.index[indexName(module, method)]
	return d, ok
}

// Names returns the sorted "module.method" names of all entries.
func (m *Metadata) Names() []string {
	names := make([]string, 0, len(m.index))
	for name := range m.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func indexName(module, method string) string {
	return lowerFirst(module) + "." + lowerFirst(method)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// document is the YAML form of a metadata file.
type document struct {
	Version uint32 `yaml:"version"`
	Modules []struct {
		Name    string `yaml:"name"`
		Storage []struct {
			Name     string                     `yaml:"name"`
			Hashers  []storagemodels.HasherKind `yaml:"hashers"`
			Keys     []storagemodels.TypeRef    `yaml:"keys"`
			Value    storagemodels.TypeRef      `yaml:"value"`
			Modifier storagemodels.Modifier     `yaml:"modifier"`
			Fallback string                     `yaml:"fallback"`
			Docs     string                     `yaml:"docs"`
		} `yaml:"storage"`
	} `yaml:"modules"`
}

// Load parses a YAML metadata document:
//
//	version: 1002000
//	modules:
//	  - name: System
//	    storage:
//	      - name: Account
//	        hashers: [Blake2_128Concat]
//	        keys: [AccountId32]
//	        value: AccountInfo
//	        modifier: Default
//	        fallback: "0x0000"
func Load(r io.Reader) (*Metadata, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("metadata: decode yaml: %w", err)
	}

	var descriptors []storagemodels.EntryDescriptor
	for _, module := range doc.Modules {
		for _, entry := range module.Storage {
			d := storagemodels.EntryDescriptor{
				Module:   module.Name,
				Method:   entry.Name,
				Hashers:  entry.Hashers,
				KeyTypes: entry.Keys,
				Value:    entry.Value,
				Modifier: entry.Modifier,
				Docs:     strings.TrimSpace(entry.Docs),
			}
			if entry.Fallback != "" {
				fallback, err := hexutil.Decode(entry.Fallback)
				if err != nil {
					return nil, fmt.Errorf("metadata: %s.%s fallback: %w", module.Name, entry.Name, err)
				}
				d.Fallback = fallback
			}
			descriptors = append(descriptors, d)
		}
	}
	return New(doc.Version, descriptors)
}

// LoadFile reads a YAML metadata document from path.
func LoadFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	defer f.Close()
	return Load(f)
}
