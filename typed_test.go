/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package chainquery_test

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/chainquery"
	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/query"
	"github.com/suparena/chainquery/storagemodels"
)

const bob = "0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"

func TestTypedGet(t *testing.T) {
	ctx := context.Background()
	api, node := newAPI(t)

	number, err := api.Query("system", "number")
	require.NoError(t, err)
	node.Set(storageKey(t, number), binary.LittleEndian.AppendUint32(nil, 9))

	n, err := chainquery.Get[uint32](ctx, number)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), n)

	_, err = chainquery.Get[string](ctx, number)
	assert.True(t, errors.IsValidationError(err))

	issuance, err := api.Query("balances", "totalIssuance")
	require.NoError(t, err)
	total, err := chainquery.Get[*big.Int](ctx, issuance)
	require.NoError(t, err)
	assert.Equal(t, 0, total.Sign())

	bonded, err := api.Query("staking", "bonded")
	require.NoError(t, err)
	controller, err := chainquery.Get[[]byte](ctx, bonded, alice)
	require.NoError(t, err)
	assert.Nil(t, controller, "absent optional values give the zero value")
}

func TestTypedGetAt(t *testing.T) {
	ctx := context.Background()
	api, node := newAPI(t)
	number, err := api.Query("system", "number")
	require.NoError(t, err)

	block := storagemodels.Hash{0x42}
	node.SetAt(block, storageKey(t, number), binary.LittleEndian.AppendUint32(nil, 100))
	node.Set(storageKey(t, number), binary.LittleEndian.AppendUint32(nil, 101))

	n, err := chainquery.GetAt[uint32](ctx, number, storagemodels.At(block))
	require.NoError(t, err)
	assert.Equal(t, uint32(100), n)

	n, err = chainquery.Get[uint32](ctx, number)
	require.NoError(t, err)
	assert.Equal(t, uint32(101), n)
}

func TestTypedMulti(t *testing.T) {
	ctx := context.Background()
	api, node := newAPI(t)
	account, err := api.Query("system", "account")
	require.NoError(t, err)
	node.Set(storageKey(t, account, alice), binary.LittleEndian.AppendUint32(nil, 77))

	values, err := chainquery.Multi[uint32](ctx, account, [][]any{{alice}, {bob}, {alice}})
	require.NoError(t, err)
	assert.Equal(t, []uint32{77, 0, 77}, values)

	_, err = chainquery.Multi[string](ctx, account, [][]any{{alice}})
	assert.True(t, errors.IsValidationError(err))
}

func TestTypedSubscribe(t *testing.T) {
	ctx := context.Background()
	api, node := newAPI(t)
	number, err := api.Query("system", "number")
	require.NoError(t, err)
	key := storageKey(t, number)
	node.Set(key, binary.LittleEndian.AppendUint32(nil, 1))

	updates := make(chan uint32, 4)
	unsub, err := chainquery.Subscribe[uint32](ctx, number, func(n uint32, err error) {
		assert.NoError(t, err)
		updates <- n
	})
	require.NoError(t, err)
	defer unsub()

	node.Update(storagemodels.StorageChange{Key: key, Value: binary.LittleEndian.AppendUint32(nil, 2)})
	for _, want := range []uint32{1, 2} {
		select {
		case got := <-updates:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("no update %d", want)
		}
	}
}

func TestAs(t *testing.T) {
	v, err := chainquery.As[uint64](uint64(5))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)

	v, err = chainquery.As[uint64](nil)
	require.NoError(t, err)
	assert.Zero(t, v)

	cause := stderrors.New("short input")
	_, err = chainquery.As[uint64](&query.Undecodable{Err: cause})
	assert.ErrorIs(t, err, cause)
}
