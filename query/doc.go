/*
Package query turns storage entry descriptors into accessors and executes reads against a transport.

The pieces:

  - Entry: the accessor of one storage entry (keys, point reads, size, hash, iteration, live values)
  - Surface: the set of accessors decorated from a registry.Metadata
  - Plan: resolves a batch of calls to positional and deduplicated keys
  - Once: one-shot batch reads through a single state_queryStorageAt call
  - Coordinator: live batch queries multiplexed onto state_subscribeStorage

Example:

	live := query.NewCoordinator(conn, logger)
	surface := query.Decorate(md, conn, codecs, live)

	account, _ := surface.Entry("system", "account")
	issuance, _ := surface.Entry("balances", "totalIssuance")

	values, err := query.NewOnce(conn, logger).Query(ctx, []query.Call{
	    account.With(alice),
	    issuance.With(),
	})

Absent keys decode to nil for Optional entries and to the decoded fallback for
Default entries. One-shot reads fail as a whole on any decode error, while live
queries replace an undecodable slot with *Undecodable and keep emitting.
*/
package query
