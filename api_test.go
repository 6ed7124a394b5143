/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package chainquery_test

import (
	"context"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/suparena/chainquery"
	"github.com/suparena/chainquery/codec"
	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/query"
	"github.com/suparena/chainquery/registry"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
	"github.com/suparena/chainquery/transport/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const alice = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func newAPI(t *testing.T) (*chainquery.API, *mock.Transport) {
	t.Helper()
	md, err := registry.LoadFile("registry/testdata/metadata.yaml")
	require.NoError(t, err)

	codecs := codec.NewPrimitiveRegistry()
	codecs.RegisterType("AccountInfo", nil, func(data []byte) (any, error) {
		return binary.LittleEndian.Uint32(data), nil
	})

	node := mock.New()
	api, err := chainquery.New(node, codecs, md)
	require.NoError(t, err)
	return api, node
}

func storageKey(t *testing.T, e *query.Entry, args ...any) storagemodels.StorageKey {
	t.Helper()
	key, err := e.StorageKey(args...)
	require.NoError(t, err)
	return key
}

func TestNewValidates(t *testing.T) {
	md, err := registry.New(1, nil)
	require.NoError(t, err)

	_, err = chainquery.New(nil, codec.NewRegistry(), md)
	assert.True(t, errors.IsValidationError(err))
	_, err = chainquery.New(mock.New(), nil, md)
	assert.True(t, errors.IsValidationError(err))
	_, err = chainquery.New(mock.New(), codec.NewRegistry(), nil)
	assert.True(t, errors.IsValidationError(err))
}

func TestAPIQuery(t *testing.T) {
	api, _ := newAPI(t)

	assert.Equal(t, []string{"system", "balances", "staking"}, api.Modules())

	account, err := api.Query("system", "account")
	require.NoError(t, err)
	assert.Equal(t, "System.Account", account.Name())

	_, err = api.Query("system", "unknown")
	assert.True(t, errors.IsNotFound(err))

	entries, err := api.Module("staking")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	key := storageKey(t, account, alice)
	found, ok := api.Find(key)
	require.True(t, ok)
	assert.Same(t, account, found)
}

func TestAPIQueryOnce(t *testing.T) {
	ctx := context.Background()
	api, node := newAPI(t)

	account, err := api.Query("system", "account")
	require.NoError(t, err)
	issuance, err := api.Query("balances", "totalIssuance")
	require.NoError(t, err)
	node.Set(storageKey(t, account, alice), binary.LittleEndian.AppendUint32(nil, 77))

	values, err := api.QueryOnce(ctx, []query.Call{issuance.With(), account.With(alice), issuance.With()})
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, 0, values[0].(*big.Int).Sign())
	assert.Equal(t, uint32(77), values[1])
	assert.Equal(t, values[0], values[2])
	assert.Equal(t, 1, node.Calls(transport.MethodQueryStorageAt))

	empty, err := api.QueryOnce(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 1, node.TotalCalls())
}

func TestAPIQueryMulti(t *testing.T) {
	ctx := context.Background()
	api, node := newAPI(t)

	number, err := api.Query("system", "number")
	require.NoError(t, err)

	var got [][]any
	unsub, err := api.QueryMulti(ctx, []query.Call{number.With()}, func(v []any) {
		got = append(got, v)
	})
	require.NoError(t, err)

	node.Update(storagemodels.StorageChange{Key: storageKey(t, number), Value: binary.LittleEndian.AppendUint32(nil, 12)})
	unsub()
	assert.Equal(t, [][]any{{uint32(0)}, {uint32(12)}}, got)
	assert.Len(t, node.Unsubscribed(), 1)
}

func TestAPIWatch(t *testing.T) {
	api, node := newAPI(t)
	number, err := api.Query("system", "number")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := api.Watch(ctx, []query.Call{number.With()}, 4)
	require.NoError(t, err)

	assert.Equal(t, []any{uint32(0)}, <-ch)
	node.Update(storagemodels.StorageChange{Key: storageKey(t, number), Value: binary.LittleEndian.AppendUint32(nil, 3)})
	assert.Equal(t, []any{uint32(3)}, <-ch)

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return len(node.Unsubscribed()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestAPIReload(t *testing.T) {
	api, _ := newAPI(t)
	before, err := api.Query("system", "number")
	require.NoError(t, err)

	md, err := registry.New(2, []storagemodels.EntryDescriptor{
		{Module: "System", Method: "Number", Value: "u64"},
	})
	require.NoError(t, err)
	require.NoError(t, api.Reload(md))

	after, err := api.Query("system", "number")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, storagemodels.TypeRef("u64"), after.Descriptor().Value)
	assert.Equal(t, uint32(2), api.Metadata().Version())

	_, err = api.Query("balances", "totalIssuance")
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsValidationError(api.Reload(nil)))
}

func TestVersionInfo(t *testing.T) {
	info := chainquery.GetVersionInfo()
	assert.Equal(t, chainquery.Version, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEqual(t, "unknown", info.GoVersion)
}
