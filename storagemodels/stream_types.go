package storagemodels

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// StorageChange is a single key in a change set. Value is nil when the key is absent.
type StorageChange struct {
	Key   StorageKey
	Value []byte
}

// Present reports whether the key holds a value.
func (c StorageChange) Present() bool {
	return c.Value != nil
}

// StorageChangeSet is the payload of state_queryStorageAt results and
// state_subscribeStorage notifications.
type StorageChangeSet struct {
	Block   Hash
	Changes []StorageChange
}

type wireChangeSet struct {
	Block   *Hash               `json:"block"`
	Changes [][2]*hexutil.Bytes `json:"changes"`
}

// UnmarshalJSON decodes {"block": "0x..", "changes": [["0xkey", "0xvalue" | null], ...]}.
func (c *StorageChangeSet) UnmarshalJSON(data []byte) error {
	var w wireChangeSet
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Block = Hash{}
	if w.Block != nil {
		c.Block = *w.Block
	}
	c.Changes = make([]StorageChange, 0, len(w.Changes))
	for i, pair := range w.Changes {
		if pair[0] == nil {
			return fmt.Errorf("change %d: missing key", i)
		}
		change := StorageChange{Key: StorageKey(*pair[0])}
		if pair[1] != nil {
			change.Value = []byte(*pair[1])
			if change.Value == nil {
				change.Value = []byte{}
			}
		}
		c.Changes = append(c.Changes, change)
	}
	return nil
}

// MarshalJSON encodes the node wire shape.
func (c StorageChangeSet) MarshalJSON() ([]byte, error) {
	w := wireChangeSet{Changes: make([][2]*hexutil.Bytes, 0, len(c.Changes))}
	if !c.Block.IsZero() {
		block := c.Block
		w.Block = &block
	}
	for _, change := range c.Changes {
		key := hexutil.Bytes(change.Key)
		pair := [2]*hexutil.Bytes{&key, nil}
		if change.Value != nil {
			value := hexutil.Bytes(change.Value)
			pair[1] = &value
		}
		w.Changes = append(w.Changes, pair)
	}
	return json.Marshal(w)
}

// IterationProgress reports progress of a full keys/entries iteration.
type IterationProgress struct {
	KeysFetched    int64      // Total keys returned so far
	PagesProcessed int        // Pages fetched so far
	LastKey        StorageKey // Last key of the most recent page
	StartTime      time.Time  // When the iteration started
	CurrentRate    float64    // Keys per second
}

// QueryOptions configures accessors and the live coordinator
type QueryOptions struct {
	IterationPageSize uint                    // Keys per state_getKeysPaged call during full iteration (default: 1000)
	Logger            *zap.Logger             // Structured logger (default: no-op)
	ProgressHandler   func(IterationProgress) // Optional progress callback for full iteration
}

// QueryOption is a functional option for configuring queries
type QueryOption func(*QueryOptions)

// DefaultQueryOptions returns default query options
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		IterationPageSize: 1000,
		Logger:            zap.NewNop(),
	}
}

// ApplyQueryOptions returns the defaults with opts applied.
func ApplyQueryOptions(opts ...QueryOption) QueryOptions {
	options := DefaultQueryOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.IterationPageSize == 0 {
		options.IterationPageSize = DefaultQueryOptions().IterationPageSize
	}
	return options
}

// WithIterationPageSize sets the page size used by full keys/entries iteration
func WithIterationPageSize(size uint) QueryOption {
	return func(opts *QueryOptions) {
		opts.IterationPageSize = size
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) QueryOption {
	return func(opts *QueryOptions) {
		opts.Logger = logger
	}
}

// WithProgressHandler sets a progress callback for full iteration
func WithProgressHandler(handler func(IterationProgress)) QueryOption {
	return func(opts *QueryOptions) {
		opts.ProgressHandler = handler
	}
}
