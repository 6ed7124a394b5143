/*
Package storagemodels defines the data structures used throughout chainquery.

Key Types:

EntryDescriptor:
The metadata description of a storage entry, shared read-only by every accessor:

	d := &EntryDescriptor{
	    Module:   "System",
	    Method:   "Account",
	    Hashers:  []HasherKind{Blake2_128Concat},
	    KeyTypes: []TypeRef{"AccountId32"},
	    Value:    "AccountInfo",
	    Modifier: Default,
	}

StorageKey, Hash and BlockRef:
Raw keys and hashes travel as 0x-prefixed hex on the wire. A BlockRef is either
Current or At(hash) and is appended to RPC params only when pinned.

StorageChangeSet:
Results of state_queryStorageAt and notifications of state_subscribeStorage:

	type StorageChangeSet struct {
	    Block   Hash            // Block the values were read at
	    Changes []StorageChange // Key plus value, nil when absent
	}

QueryOptions:
Configuration for accessors and live queries:

	opts := []QueryOption{
	    WithIterationPageSize(500),
	    WithLogger(logger),
	    WithProgressHandler(progressFunc),
	}

SnapshotItem:
The persisted form of a mirrored storage value used by the DynamoDB snapshot transport.
*/
package storagemodels
