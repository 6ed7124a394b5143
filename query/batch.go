/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"sort"
	"strings"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/storagemodels"
)

// Call is one element of a batch: an entry and its arguments.
type Call struct {
	Entry *Entry
	Args  []any
}

// Plan resolves a batch of calls to storage keys. Keys holds one key per call
// in call order; Unique holds each distinct key once, in first-seen order.
type Plan struct {
	calls  []Call
	keys   []storagemodels.StorageKey
	unique []storagemodels.StorageKey
	owners []*Entry
	slots  []int
}

// NewPlan computes the key of every call. Errors only come from key construction.
func NewPlan(calls []Call) (*Plan, error) {
	p := &Plan{
		calls: append([]Call(nil), calls...),
		keys:  make([]storagemodels.StorageKey, len(calls)),
		slots: make([]int, len(calls)),
	}
	seen := make(map[string]int, len(calls))
	for i, call := range calls {
		if call.Entry == nil {
			return nil, errors.NewValidationError("calls", "call has no entry")
		}
		key, err := call.Entry.valueKey(call.Args)
		if err != nil {
			return nil, err
		}
		p.keys[i] = key

		slot, ok := seen[key.Hex()]
		if !ok {
			slot = len(p.unique)
			seen[key.Hex()] = slot
			p.unique = append(p.unique, key)
			p.owners = append(p.owners, call.Entry)
		}
		p.slots[i] = slot
	}
	return p, nil
}

// Len returns the number of calls.
func (p *Plan) Len() int {
	return len(p.calls)
}

// Keys returns the key of each call, in call order.
func (p *Plan) Keys() []storagemodels.StorageKey {
	return append([]storagemodels.StorageKey(nil), p.keys...)
}

// Unique returns the distinct keys in first-seen order.
func (p *Plan) Unique() []storagemodels.StorageKey {
	return append([]storagemodels.StorageKey(nil), p.unique...)
}

// Slot returns the index into Unique of call i.
func (p *Plan) Slot(i int) int {
	return p.slots[i]
}

// Expand fans values indexed like Unique out to call order.
func (p *Plan) Expand(values []any) []any {
	out := make([]any, len(p.slots))
	for i, slot := range p.slots {
		out[i] = values[slot]
	}
	return out
}

// sortedUnique returns the distinct keys in byte order.
func (p *Plan) sortedUnique() []storagemodels.StorageKey {
	sorted := p.Unique()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Hex() < sorted[j].Hex() })
	return sorted
}

// setKey identifies the key set of the plan regardless of call order or repetition.
func (p *Plan) setKey() string {
	sorted := p.sortedUnique()
	parts := make([]string, len(sorted))
	for i, key := range sorted {
		parts[i] = key.Hex()
	}
	return strings.Join(parts, ",")
}
