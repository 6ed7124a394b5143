/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"

	"github.com/go-openapi/strfmt"
)

// LatestBlock is the partition used for the most recent mirrored state.
const LatestBlock = "LATEST"

// SnapshotItem is one mirrored storage value as persisted in a snapshot table.
type SnapshotItem struct {
	// PK is "BLOCK#<block hash>" or "BLOCK#LATEST".
	PK string `dynamodbav:"PK"`
	// SK is the hex storage key, which keeps keys of one block ordered for prefix scans.
	SK string `dynamodbav:"SK"`
	// Value is the hex encoded raw value.
	Value string `dynamodbav:"Value"`
	// BlockHash is the block the value was read at.
	BlockHash string `dynamodbav:"BlockHash,omitempty"`
	// UpdatedAt is the RFC3339 time the item was written.
	// Format: date-time
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// BlockPartition returns the partition key for block, or for the latest state when block is empty.
func BlockPartition(block string) string {
	if block == "" {
		block = LatestBlock
	}
	return "BLOCK#" + block
}

// NewSnapshotItem builds an item stamped with the current time.
func NewSnapshotItem(partition string, key StorageKey, value []byte, blockHash string) SnapshotItem {
	return SnapshotItem{
		PK:        partition,
		SK:        key.Hex(),
		Value:     StorageKey(value).Hex(),
		BlockHash: blockHash,
		UpdatedAt: strfmt.DateTime(time.Now().UTC()).String(),
	}
}

// Timestamp parses UpdatedAt.
func (s SnapshotItem) Timestamp() (strfmt.DateTime, error) {
	return strfmt.ParseDateTime(s.UpdatedAt)
}
