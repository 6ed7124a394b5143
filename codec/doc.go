// Package codec defines the value codec service consumed by the query engine
// and a registry that maps type references to encode/decode functions.
//
// The engine never interprets value bytes itself: keys are encoded through
// Codec.Encode and stored values are decoded through Codec.Decode. The
// primitive registry covers fixed-width integers, bool, Bytes, Text and 32-byte
// identifiers; chain specific composites are registered by the caller.
package codec
