package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityfibre/fieldsync/internal/model"
	"github.com/velocityfibre/fieldsync/internal/store"
)

func newStagingStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSpotChecks_Deterministic(t *testing.T) {
	st := newStagingStore(t)

	var records []model.Record
	for i := 0; i < 20; i++ {
		records = append(records, model.Record{
			model.ColPropertyID: fmt.Sprintf("P-%d", i),
			model.ColPoleNumber: fmt.Sprintf("LAW.P.A%d", i),
		})
	}

	a, err := SpotChecks(context.Background(), records, st, 5, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := SpotChecks(context.Background(), records, st, 5, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 5)
}

func TestSpotChecks_ReflectsStagingState(t *testing.T) {
	st := newStagingStore(t)
	ctx := context.Background()

	records := []model.Record{
		{model.ColPropertyID: "P-1", model.ColPoleNumber: "LAW.P.A1"},
		{model.ColPropertyID: "P-2", model.ColPoleNumber: "LAW.P.A2"},
	}

	// Stage only the first record before checking.
	_, err := st.Upsert(ctx, "P-1", "LAW.P.A1", records[0], "IMP_0")
	require.NoError(t, err)

	checks, err := SpotChecks(ctx, records, st, 2, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, checks, 2)

	byID := map[string]model.SpotCheck{}
	for _, c := range checks {
		byID[c.PropertyID] = c
	}
	assert.True(t, byID["P-1"].ExistsInStore)
	assert.False(t, byID["P-2"].ExistsInStore)
	assert.Equal(t, model.TrackingPole, byID["P-1"].TrackingID.Type)
}

func TestSpotChecks_SampleSizeClamped(t *testing.T) {
	st := newStagingStore(t)

	records := []model.Record{{model.ColPropertyID: "P-1"}}

	checks, err := SpotChecks(context.Background(), records, st, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, checks, 1)

	checks, err = SpotChecks(context.Background(), records, st, 0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestCountVerification(t *testing.T) {
	records := []model.Record{
		{model.ColPropertyID: "P-1", model.ColPoleNumber: "LAW.P.A1", model.ColAddress: "12 Main Rd", model.ColStatus: "Pole Planted"},
		{model.ColPropertyID: "P-2", model.ColPoleNumber: "LAW.P.A1", model.ColAddress: "14 Main Rd", model.ColStatus: "Pole Planted"},
		{model.ColPropertyID: "P-2", model.ColAddress: "14 Main Rd"},
	}

	counts := CountVerification(records)

	assert.Equal(t, 3, counts.TotalRecords)
	assert.Equal(t, 2, counts.UniquePropertyIDs)
	assert.Equal(t, 1, counts.UniquePoles)
	assert.Equal(t, 2, counts.UniqueAddresses)
	assert.Equal(t, map[string]int{"Pole Planted": 2, "No Status": 1}, counts.StatusBreakdown)
}
