package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClientStore() (*ClientResultStore, *MemorySessionStorage, *fakeClock) {
	storage := NewMemorySessionStorage()
	clock := newFakeClock()
	store := NewClientResultStore(storage)
	store.now = clock.Now
	return store, storage, clock
}

func TestClientResultStore_EncodesBase64JSONWithExpiry(t *testing.T) {
	ctx := context.Background()
	store, storage, clock := newTestClientStore()

	require.NoError(t, store.Put(ctx, "session_1_abc", sampleEnvelope("session_1_abc", "Healthy", 0.9), 24*time.Hour))

	raw, ok := storage.GetItem("session_1_abc")
	require.True(t, ok)

	decoded, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(decoded, &fields))
	assert.Contains(t, fields, "data")
	assert.Contains(t, fields, "expiry")

	var expiry int64
	require.NoError(t, json.Unmarshal(fields["expiry"], &expiry))
	assert.Equal(t, clock.Now().Add(24*time.Hour).UnixMilli(), expiry)

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(fields["data"], &data))
	assert.JSONEq(t, `"session_1_abc"`, string(data["sessionId"]))
}

func TestClientResultStore_RepeatedReadUntilExpiry(t *testing.T) {
	ctx := context.Background()
	store, storage, clock := newTestClientStore()

	require.NoError(t, store.Put(ctx, "t1", sampleEnvelope("t1", "Healthy", 0.9), time.Hour))

	for i := 0; i < 3; i++ {
		got, err := store.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "Healthy", got.DiabetesResult.DiabetesRisk)
	}

	clock.Advance(2 * time.Hour)
	_, err := store.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, stillThere := storage.GetItem("t1")
	assert.False(t, stillThere, "expired value should be removed from storage")
}

func TestClientResultStore_CorruptValueIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store, storage, _ := newTestClientStore()

	storage.SetItem("t1", "%%% not base64 %%%")
	_, err := store.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, stillThere := storage.GetItem("t1")
	assert.False(t, stillThere)
}

func TestClientResultStore_LoadResolvesCurrentThenFallback(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestClientStore()

	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrResultNotFound)

	require.NoError(t, store.Put(ctx, "", sampleEnvelope("", "Healthy", 0.1), time.Hour))
	got, err := store.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Healthy", got.DiabetesResult.DiabetesRisk)

	require.NoError(t, store.Put(ctx, "t2", sampleEnvelope("t2", "Diabetic", 0.7), time.Hour))
	store.SetCurrent("t2")

	got, err = store.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "t2", got.SessionID)

	got, err = store.Load(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "Diabetic", got.DiabetesResult.DiabetesRisk)
}

func TestClientResultStore_PurgeExpiredKeepsPointer(t *testing.T) {
	ctx := context.Background()
	store, storage, clock := newTestClientStore()

	require.NoError(t, store.Put(ctx, "old", sampleEnvelope("old", "Healthy", 0.1), time.Minute))
	require.NoError(t, store.Put(ctx, "new", sampleEnvelope("new", "Healthy", 0.1), time.Hour))
	store.SetCurrent("new")
	storage.SetItem("garbage", "!!")
	clock.Advance(10 * time.Minute)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	current, ok := store.Current()
	assert.True(t, ok)
	assert.Equal(t, "new", current)
	assert.ElementsMatch(t, []string{CurrentSessionKey, "new"}, storage.Keys())
}

func TestClientResultStore_ClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store, storage, _ := newTestClientStore()

	require.NoError(t, store.Put(ctx, "t1", sampleEnvelope("t1", "Healthy", 0.1), time.Hour))
	store.SetCurrent("t1")
	store.Clear()

	assert.Empty(t, storage.Keys())
	_, ok := store.Current()
	assert.False(t, ok)
}

func TestClientResultStore_ReservedKeysAreNotSessions(t *testing.T) {
	ctx := context.Background()
	store, storage, _ := newTestClientStore()

	require.NoError(t, store.Put(ctx, "t1", sampleEnvelope("t1", "Healthy", 0.1), time.Hour))
	require.NoError(t, store.Put(ctx, "", sampleEnvelope("", "Diabetic", 0.4), time.Hour))
	store.SetCurrent("t1")

	_, err := store.Get(ctx, CurrentSessionKey)
	assert.ErrorIs(t, err, ErrResultNotFound)
	_, err = store.Load(ctx, CurrentSessionKey)
	assert.ErrorIs(t, err, ErrResultNotFound)
	require.NoError(t, store.Delete(ctx, CurrentSessionKey))
	require.NoError(t, store.Delete(ctx, FallbackResultsKey))

	err = store.Put(ctx, CurrentSessionKey, sampleEnvelope(CurrentSessionKey, "Healthy", 0.1), time.Hour)
	assert.True(t, shared.IsCategory(err, shared.ErrorCategoryValidation))

	current, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "t1", current)
	assert.ElementsMatch(t, []string{CurrentSessionKey, FallbackResultsKey, "t1"}, storage.Keys())

	got, err := store.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.SessionID)
}
