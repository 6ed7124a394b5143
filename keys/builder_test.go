/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package keys

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/storagemodels"
)

// rawEncoder passes []byte through and encodes uint32 little-endian.
type rawEncoder struct{}

func (rawEncoder) Encode(typeRef storagemodels.TypeRef, value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case uint32:
		return binary.LittleEndian.AppendUint32(nil, v), nil
	default:
		return nil, fmt.Errorf("cannot encode %T as %s", value, typeRef)
	}
}

var (
	totalIssuance = &storagemodels.EntryDescriptor{
		Module: "Balances",
		Method: "TotalIssuance",
		Value:  "u128",
	}
	account = &storagemodels.EntryDescriptor{
		Module:   "System",
		Method:   "Account",
		Hashers:  []storagemodels.HasherKind{storagemodels.Blake2_128Concat},
		KeyTypes: []storagemodels.TypeRef{"AccountId32"},
		Value:    "AccountInfo",
	}
	doubleMap = &storagemodels.EntryDescriptor{
		Module:   "Staking",
		Method:   "ErasStakers",
		Hashers:  []storagemodels.HasherKind{storagemodels.Twox64Concat, storagemodels.Twox64Concat},
		KeyTypes: []storagemodels.TypeRef{"u32", "AccountId32"},
		Value:    "Exposure",
	}
)

func TestEntryPrefixVectors(t *testing.T) {
	assert.Equal(t,
		"0xc2261276cc9d1f8598ea4b6a74b15c2f57c875e4cff74148e4628f264b974c80",
		EntryPrefix("Balances", "TotalIssuance").Hex())
	assert.Equal(t,
		"0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9",
		EntryPrefix("System", "Account").Hex())
}

func TestHashers(t *testing.T) {
	data := []byte{1, 2, 3, 4}

	for kind, size := range map[storagemodels.HasherKind]int{
		storagemodels.Identity:         4,
		storagemodels.Twox64Concat:     12,
		storagemodels.Twox128:          16,
		storagemodels.Twox256:          32,
		storagemodels.Blake2_128:       16,
		storagemodels.Blake2_128Concat: 20,
		storagemodels.Blake2_256:       32,
	} {
		out, err := Hash(kind, data)
		require.NoError(t, err, kind.String())
		assert.Len(t, out, size, kind.String())
		if kind.IsConcat() {
			assert.True(t, bytes.HasSuffix(out, data), "%s keeps the raw argument", kind)
		}
	}

	_, err := Hash(storagemodels.HasherKind(99), data)
	assert.Error(t, err)

	h, err := blake2b.New(16, nil)
	require.NoError(t, err)
	h.Write(data)
	out, err := Hash(storagemodels.Blake2_128Concat, data)
	require.NoError(t, err)
	assert.Equal(t, append(h.Sum(nil), data...), out)

	sum := blake2b.Sum256(data)
	assert.Equal(t, storagemodels.Hash(sum), Blake2_256(data))
}

func TestBuildDeterministic(t *testing.T) {
	arg := bytes.Repeat([]byte{0xd4}, 32)
	first, err := Build(account, [][]byte{arg})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Build(account, [][]byte{arg})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Len(t, first, 32+16+32)
}

func TestBuildArity(t *testing.T) {
	_, err := Build(totalIssuance, [][]byte{{0x01}})
	require.Error(t, err)
	assert.True(t, errors.IsArity(err))

	_, err = Build(doubleMap, [][]byte{{1}, {2}, {3}})
	assert.True(t, errors.IsArity(err))
}

func TestPrefixProperty(t *testing.T) {
	b := NewBuilder(rawEncoder{})
	who := bytes.Repeat([]byte{0x8e}, 32)

	full, err := b.Key(doubleMap, uint32(7), who)
	require.NoError(t, err)

	for n := 0; n <= 2; n++ {
		leading := []any{uint32(7), who}[:n]
		prefix, err := b.Prefix(doubleMap, leading...)
		require.NoError(t, err)
		assert.True(t, full.HasPrefix(prefix), "prefix with %d args", n)
	}

	base, err := b.Prefix(doubleMap)
	require.NoError(t, err)
	assert.Equal(t, EntryPrefix("Staking", "ErasStakers"), base)
}

func TestBuilderEncodingError(t *testing.T) {
	b := NewBuilder(rawEncoder{})
	_, err := b.Key(account, "not bytes")
	require.Error(t, err)
	assert.True(t, errors.IsEncoding(err))

	var encErr *errors.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "AccountId32", encErr.TypeRef)
	assert.Equal(t, 0, encErr.Index)

	_, err = b.Key(totalIssuance, uint32(1))
	assert.True(t, errors.IsArity(err))
}

func TestBuilderMissingKeyTypes(t *testing.T) {
	b := NewBuilder(rawEncoder{})
	short := &storagemodels.EntryDescriptor{
		Module:   "Staking",
		Method:   "ErasStakers",
		Hashers:  doubleMap.Hashers,
		KeyTypes: []storagemodels.TypeRef{"u32"},
		Value:    "Exposure",
	}

	_, err := b.Prefix(short, uint32(7))
	require.NoError(t, err)

	_, err = b.Key(short, uint32(7), bytes.Repeat([]byte{1}, 32))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.False(t, errors.IsArity(err))
}

func TestMatches(t *testing.T) {
	b := NewBuilder(rawEncoder{})
	key, err := b.Key(account, bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	assert.True(t, Matches(account, key))
	assert.False(t, Matches(doubleMap, key))
	assert.False(t, Matches(account, key[:10]))

	plain := EntryPrefix("Balances", "TotalIssuance")
	assert.True(t, Matches(totalIssuance, plain))
	assert.False(t, Matches(totalIssuance, append(plain, 0x00)))
}
