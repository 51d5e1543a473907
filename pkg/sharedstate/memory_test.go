package sharedstate_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
	"github.com/beehive-cloud/beehive-resource/pkg/sharedstate"
)

// roundTripCases are JSON-compatible mappings as they come back from a
// decoder with UseNumber, so they compare equal after a round trip.
var roundTripCases = map[string]engine.SharedData{
	"empty": {},
	"flat":  {"id": json.Number("12"), "name": "net1", "active": true, "ext_id": nil},
	"large integers": {
		"id":   json.Number("9007199254740993"),
		"size": json.Number("-9223372036854775808"),
		"rate": json.Number("0.25"),
	},
	"nested": {
		"id": json.Number("3"),
		"orchestrators": []any{
			map[string]any{"type": "openstack", "id": "os-1", "config": map[string]any{"project": "p1"}},
			map[string]any{"type": "vsphere", "id": "vs-1"},
		},
		"availability_zones": []any{"z1", "z2"},
		"attribute":          map[string]any{"configs": map[string]any{"mtu": json.Number("1500"), "tags": []any{}}},
	},
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := sharedstate.NewMemoryStore()
	ctx := context.Background()

	for name, data := range roundTripCases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, name, data))
			got, err := store.Get(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

// assertExactInt64 stores a native int64 above 2^53 and reads it back.
func assertExactInt64(t *testing.T, store engine.SharedStore) {
	t.Helper()
	ctx := context.Background()
	const id = int64(9007199254740993)

	require.NoError(t, store.Set(ctx, "big", engine.SharedData{"id": id, "nested": map[string]any{"size": id}}))
	got, err := store.Get(ctx, "big")
	require.NoError(t, err)

	n, ok := got.Int64("id")
	require.True(t, ok)
	assert.Equal(t, id, n)
	assert.Equal(t, "9007199254740993", got.String("id"))

	n, ok = engine.SharedData(got.Map("nested")).Int64("size")
	require.True(t, ok)
	assert.Equal(t, id, n)
}

func TestMemoryStore_LargeIntegers(t *testing.T) {
	assertExactInt64(t, sharedstate.NewMemoryStore())
}

func TestMemoryStore_SetReplacesWholesale(t *testing.T) {
	store := sharedstate.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "j1", engine.SharedData{"a": "1", "b": "2"}))
	require.NoError(t, store.Set(ctx, "j1", engine.SharedData{"a": "3"}))

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, engine.SharedData{"a": "3"}, got)
}

func TestMemoryStore_NoAliasing(t *testing.T) {
	store := sharedstate.NewMemoryStore()
	ctx := context.Background()

	data := engine.SharedData{"nested": map[string]any{"k": "v"}}
	require.NoError(t, store.Set(ctx, "j1", data))
	data.Map("nested")["k"] = "changed"

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Map("nested")["k"])

	got["extra"] = true
	again, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.NotContains(t, again, "extra")
}

func TestMemoryStore_Uninitialized(t *testing.T) {
	store := sharedstate.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, engine.IsStateUnavailable(err))

	require.NoError(t, store.Set(ctx, "j1", nil))
	assert.Equal(t, 1, store.Len())
	require.NoError(t, store.Delete(ctx, "j1"))
	_, err = store.Get(ctx, "j1")
	assert.True(t, engine.IsStateUnavailable(err))
}
