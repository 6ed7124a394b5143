/*
Package keys computes storage keys from entry descriptors.

A storage key is the entry prefix twox128(module) ++ twox128(method) followed by
one hashed component per supplied map key:

	key, err := keys.NewBuilder(codec).Key(descriptor, accountID)

Supplying fewer arguments than the entry has hashers yields an iteration prefix.
Every full key starts with the prefix of any of its leading argument lists, which
is what Matches relies on to recognise keys of an entry.

Key computation is pure: it performs no I/O and keeps no state.
*/
package keys
