/*
Package chainquery provides typed access to the key-value storage of Substrate-style chain nodes,
driven by the storage entry descriptors the node publishes in its runtime metadata.

The library follows a connect → decorate → query workflow:
  - Connect: open a transport (WebSocket node, DynamoDB snapshot, or the in-memory mock)
  - Decorate: load metadata and build one accessor per storage entry
  - Query: point reads, iteration, one-shot batches and live batches

Key Features:
  - Deterministic storage key construction for every hasher kind
  - Batch reads deduplicated into a single round trip, results in call order
  - Live queries sharing one node subscription per key set
  - Paged and full iteration over map entries with progress reporting
  - Semantic error types for better error handling
  - Comprehensive mock implementations for testing

Basic Usage:

	md, _ := registry.LoadFile("metadata.yaml")
	conn, _ := ws.Dial(ctx, "ws://127.0.0.1:9944")
	api, _ := chainquery.New(conn, codec.NewPrimitiveRegistry(), md)

	issuance, _ := api.Query("balances", "totalIssuance")
	account, _ := api.Query("system", "account")

	// One round trip, results in call order
	values, err := api.QueryOnce(ctx, []query.Call{issuance.With(), account.With(alice)})

	// Live tuple, re-emitted in full on every change
	unsub, err := api.QueryMulti(ctx, []query.Call{issuance.With(), account.With(alice)}, func(v []any) {
	    fmt.Println(v)
	})
	defer unsub()
*/
package chainquery
