/*
Package ddb serves storage reads from DynamoDB snapshot tables.

A snapshot table mirrors raw storage values keyed by block:

	PK: "BLOCK#<block hash>" or "BLOCK#LATEST"
	SK: "0x<hex storage key>"
	Value: "0x<hex raw value>"

Because hex keys sort like the bytes they encode, iterating a map prefix is
a single range query on SK. The Transport answers state_getStorage,
state_getStorageSize, state_getStorageHash, state_getKeysPaged and
state_queryStorageAt, so a decorated surface can run against a mirror
instead of a node:

	tr, err := ddb.NewFromCredentials(accessKey, secretKey, "us-east-1", "chain-snapshots",
	    ddb.WithLogger(logger),
	    ddb.WithMaxRetries(3),
	)

Throttled calls are retried with a linear backoff. Live subscriptions are
not available from a table; Subscribe reports method not found.

PutSnapshot writes change sets into a partition, which is how mirrors are
filled.
*/
package ddb
