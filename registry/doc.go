/*
Package registry holds the runtime metadata the query surface is decorated from.

A Metadata value indexes storage entry descriptors by module and method. It is
built once per runtime version, either from already parsed descriptors:

	md, err := registry.New(specVersion, descriptors)

or from a YAML metadata document:

	md, err := registry.LoadFile("metadata.yaml")

Lookups accept names with either case for their first letter, so
md.Lookup("system", "account") finds the System.Account entry.

Metadata is immutable; a runtime upgrade means building a new Metadata and
reloading the API from it, which invalidates every key computed before.
*/
package registry
