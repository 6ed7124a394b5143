/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/suparena/chainquery/errors"
	"github.com/suparena/chainquery/storagemodels"
	"github.com/suparena/chainquery/transport"
)

func TestLiveSnapshotThenUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.node.Set(mustKey(t, f.account, alice), le64(1))

	var r recorder
	unsub, err := f.live.Subscribe(ctx, []Call{f.account.With(alice), f.number.With()}, r.record)
	require.NoError(t, err)
	defer unsub()

	require.Len(t, r.all(), 1)
	assert.Equal(t, []any{uint64(1), nil}, r.last())

	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.number), Value: le32(5)})
	require.Len(t, r.all(), 2)
	assert.Equal(t, []any{uint64(1), uint32(5)}, r.last(), "every emission carries the full tuple")

	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.account, bob), Value: le64(9)})
	assert.Len(t, r.all(), 2, "changes outside the key set do not emit")

	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.account, alice), Value: nil})
	assert.Equal(t, []any{uint64(0), uint32(5)}, r.last(), "removed keys fall back to the empty representation")
}

func TestLiveSharedSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.node.Set(mustKey(t, f.account, alice), le64(1))
	f.node.Set(mustKey(t, f.number), le32(2))

	var first, second recorder
	unsubFirst, err := f.live.Subscribe(ctx, []Call{f.account.With(alice), f.number.With()}, first.record)
	require.NoError(t, err)
	unsubSecond, err := f.live.Subscribe(ctx, []Call{f.number.With(), f.account.With(alice), f.account.With(alice)}, second.record)
	require.NoError(t, err)

	assert.Equal(t, 1, f.node.Calls(transport.MethodSubscribeStorage))
	assert.Equal(t, 1, f.live.Active())
	assert.Equal(t, []any{uint32(2), uint64(1), uint64(1)}, second.last(), "a late consumer receives the current snapshot")

	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.account, alice), Value: le64(3)})
	assert.Equal(t, []any{uint64(3), uint32(2)}, first.last())
	assert.Equal(t, []any{uint32(2), uint64(3), uint64(3)}, second.last())

	unsubFirst()
	assert.Empty(t, f.node.Unsubscribed())
	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.number), Value: le32(4)})
	assert.Len(t, first.all(), 2)
	assert.Equal(t, []any{uint32(4), uint64(3), uint64(3)}, second.last())

	unsubSecond()
	assert.Len(t, f.node.Unsubscribed(), 1)
	assert.Zero(t, f.live.Active())
}

func TestLiveIndependentKeySets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var a, b recorder
	unsubA, err := f.live.Subscribe(ctx, []Call{f.number.With()}, a.record)
	require.NoError(t, err)
	defer unsubA()
	unsubB, err := f.live.Subscribe(ctx, []Call{f.number.With(), f.issuance.With()}, b.record)
	require.NoError(t, err)
	defer unsubB()

	assert.Equal(t, 2, f.node.Calls(transport.MethodSubscribeStorage))
	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.issuance), Value: make([]byte, 16)})
	assert.Len(t, a.all(), 1)
	assert.Len(t, b.all(), 2)
}

func TestLiveResubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	key := mustKey(t, f.number)
	f.node.Set(key, le32(1))

	var before recorder
	unsub, err := f.live.Subscribe(ctx, []Call{f.number.With()}, before.record)
	require.NoError(t, err)
	firstID := f.node.Subscriptions()[0]
	unsub()
	assert.Equal(t, []transport.SubscriptionID{firstID}, f.node.Unsubscribed())

	f.node.Set(key, le32(2))
	var after recorder
	unsub, err = f.live.Subscribe(ctx, []Call{f.number.With()}, after.record)
	require.NoError(t, err)
	defer unsub()

	assert.Equal(t, 2, f.node.Calls(transport.MethodSubscribeStorage))
	require.Len(t, f.node.Subscriptions(), 1)
	assert.NotEqual(t, firstID, f.node.Subscriptions()[0])
	require.Len(t, after.all(), 1)
	assert.Equal(t, []any{uint32(2)}, after.last(), "the new subscription starts from a fresh snapshot")

	f.node.Update(storagemodels.StorageChange{Key: key, Value: le32(3)})
	assert.Equal(t, [][]any{{uint32(2)}, {uint32(3)}}, after.all())
	assert.Len(t, before.all(), 1)
}

func TestLiveCancelBeforeSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.node.WithManualSnapshots()

	var r recorder
	unsub, err := f.live.Subscribe(ctx, []Call{f.number.With()}, r.record)
	require.NoError(t, err)
	ids := f.node.Subscriptions()
	require.Len(t, ids, 1)

	unsub()
	assert.Equal(t, ids, f.node.Unsubscribed())
	assert.Error(t, f.node.SendSnapshot(ids[0]))
	assert.Empty(t, r.all())
}

func TestLiveLateNotificationIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.node.WithManualSnapshots()

	var r recorder
	unsub, err := f.live.Subscribe(ctx, []Call{f.number.With()}, r.record)
	require.NoError(t, err)
	notify := f.live.notify(f.live.subs[mustKey(t, f.number).Hex()])
	unsub()

	notify(json.RawMessage(`{"block":null,"changes":[]}`))
	assert.Empty(t, r.all())
}

func TestLiveUnsubscribeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	unsub, err := f.live.Subscribe(context.Background(), []Call{f.number.With()}, func([]any) {})
	require.NoError(t, err)

	unsub()
	unsub()
	assert.Len(t, f.node.Unsubscribed(), 1)
	assert.Equal(t, 1, f.node.Calls(transport.MethodUnsubscribeStorage))
}

func TestLiveUnsubscribeFromCallback(t *testing.T) {
	f := newFixture(t)
	key := mustKey(t, f.number)

	var unsub Unsubscribe
	var calls int
	var err error
	unsub, err = f.live.Subscribe(context.Background(), []Call{f.number.With()}, func([]any) {
		calls++
		if calls == 2 {
			unsub()
		}
	})
	require.NoError(t, err)

	f.node.Update(storagemodels.StorageChange{Key: key, Value: le32(1)})
	f.node.Update(storagemodels.StorageChange{Key: key, Value: le32(2)})
	assert.Equal(t, 2, calls)
	assert.Len(t, f.node.Unsubscribed(), 1)
}

func TestLiveResilientDecode(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, storagemodels.WithLogger(zap.New(core)))
	f.node.Set(mustKey(t, f.account, alice), le64(42))
	numberKey := mustKey(t, f.number)
	f.node.Set(numberKey, []byte{1, 2, 3})

	calls := []Call{f.account.With(alice), f.number.With()}

	_, err := NewOnce(f.node, nil).Query(ctx, calls)
	assert.True(t, errors.IsDecode(err), "one-shot reads fail as a whole")

	var r recorder
	unsub, err := f.live.Subscribe(ctx, calls, r.record)
	require.NoError(t, err)
	defer unsub()

	first := r.last()
	require.Len(t, first, 2)
	assert.Equal(t, uint64(42), first[0])
	undecodable, ok := first[1].(*Undecodable)
	require.True(t, ok, "expected *Undecodable, got %T", first[1])
	assert.Equal(t, numberKey, undecodable.Key)
	assert.True(t, errors.IsDecode(undecodable.Err))

	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.account, alice), Value: le64(43)})
	assert.Equal(t, uint64(43), r.last()[0], "the other key stays live")

	f.node.Update(storagemodels.StorageChange{Key: numberKey, Value: le32(8)})
	assert.Equal(t, []any{uint64(43), uint32(8)}, r.last())

	assert.Equal(t, 2, logs.FilterMessage("Failed to decode live storage value").Len())
}

func TestLiveMalformedNotification(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, storagemodels.WithLogger(zap.New(core)))

	var r recorder
	unsub, err := f.live.Subscribe(context.Background(), []Call{f.number.With()}, r.record)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, f.node.Notify(f.node.Subscriptions()[0], json.RawMessage(`"garbage"`)))
	assert.Len(t, r.all(), 1)
	assert.Equal(t, 1, logs.FilterMessage("Dropping malformed storage notification").Len())
}

func TestLiveSubscribeErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subErr := errors.NewTransportError(transport.MethodSubscribeStorage, -32000, "too many subscriptions")
	f.node.WithSubscribeError(subErr)

	unsub, err := f.live.Subscribe(ctx, []Call{f.number.With()}, func([]any) {})
	assert.Nil(t, unsub)
	assert.True(t, err == subErr)
	assert.Zero(t, f.live.Active())

	_, err = f.live.Subscribe(ctx, []Call{f.number.With()}, nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = f.live.Subscribe(ctx, []Call{f.account.With()}, func([]any) {})
	assert.True(t, errors.IsValidationError(err))
}

func TestLiveEmptyBatch(t *testing.T) {
	f := newFixture(t)
	var r recorder
	unsub, err := f.live.Subscribe(context.Background(), nil, r.record)
	require.NoError(t, err)
	unsub()

	assert.Equal(t, [][]any{{}}, r.all())
	assert.Zero(t, f.node.TotalCalls())
}

func TestEntrySubscribe(t *testing.T) {
	f := newFixture(t)
	f.node.Set(mustKey(t, f.account, alice), le64(5))

	var got []any
	unsub, err := f.account.Subscribe(context.Background(), func(v any) { got = append(got, v) }, alice)
	require.NoError(t, err)
	defer unsub()

	f.node.Update(storagemodels.StorageChange{Key: mustKey(t, f.account, alice), Value: le64(6)})
	assert.Equal(t, []any{uint64(5), uint64(6)}, got)

	var multi recorder
	unsubMulti, err := f.account.SubscribeMulti(context.Background(), [][]any{{bob}, {alice}}, multi.record)
	require.NoError(t, err)
	defer unsubMulti()
	assert.Equal(t, []any{uint64(0), uint64(6)}, multi.last())
}
