package ingest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityfibre/fieldsync/internal/config"
	"github.com/velocityfibre/fieldsync/internal/model"
)

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		CSVDelimiter:     ";",
		MaxDropsPerPole:  12,
		SpotCheckSamples: 5,
		ReportsDir:       "reports",
		Bounds:           config.GeoBounds{LatMin: -26.35, LatMax: -26.15, LngMin: 28.20, LngMax: 28.40},
	}
}

func TestValidateConstraints_CapacityViolation(t *testing.T) {
	var records []model.Record
	// 13 distinct drops on one pole, one over the limit.
	for i := 1; i <= 13; i++ {
		records = append(records, model.Record{
			model.ColPropertyID: fmt.Sprintf("P-%d", i),
			model.ColPoleNumber: "LAW.P.A1",
			model.ColDropNumber: fmt.Sprintf("DR%d", i),
		})
	}

	res := ValidateConstraints(records, testIngestConfig())

	assert.False(t, res.Capacity.Passed)
	require.Len(t, res.Capacity.Violations, 1)
	assert.Equal(t, "LAW.P.A1", res.Capacity.Violations[0].Pole)
	assert.Equal(t, 13, res.Capacity.Violations[0].DropCount)
	assert.Equal(t, 12, res.Capacity.Violations[0].Limit)
	assert.False(t, res.AllPassed())
}

func TestValidateConstraints_CapacityCountsDistinctDrops(t *testing.T) {
	var records []model.Record
	// The same drop reported 20 times is one drop, not 20.
	for i := 0; i < 20; i++ {
		records = append(records, model.Record{
			model.ColPropertyID: fmt.Sprintf("P-%d", i),
			model.ColPoleNumber: "LAW.P.A1",
			model.ColDropNumber: "DR1",
		})
	}

	res := ValidateConstraints(records, testIngestConfig())
	assert.True(t, res.Capacity.Passed)
}

func TestValidateConstraints_Geofence(t *testing.T) {
	records := []model.Record{
		{model.ColPropertyID: "P-1", model.ColLatitude: "-26.27", model.ColLongitude: "28.31"},
		{model.ColPropertyID: "P-2", model.ColLatitude: "-33.92", model.ColLongitude: "18.42"}, // wrong city
		{model.ColPropertyID: "P-3"}, // no coordinates, not a violation
	}

	res := ValidateConstraints(records, testIngestConfig())

	assert.False(t, res.Geofence.Passed)
	require.Len(t, res.Geofence.Violations, 1)
	assert.Equal(t, "P-2", res.Geofence.Violations[0].PropertyID)
}

func TestValidateConstraints_StatusConflict(t *testing.T) {
	records := []model.Record{
		{model.ColPropertyID: "P-1", model.ColPoleNumber: "LAW.P.A1", model.ColStatus: "Pole Permission: Approved"},
		{model.ColPropertyID: "P-2", model.ColPoleNumber: "LAW.P.A1", model.ColStatus: "Pole Planted"},
		{model.ColPropertyID: "P-3", model.ColPoleNumber: "LAW.P.B2", model.ColStatus: "Pole Planted"},
	}

	res := ValidateConstraints(records, testIngestConfig())

	assert.False(t, res.StatusConflict.Passed)
	require.Len(t, res.StatusConflict.Violations, 1)
	assert.Equal(t, "LAW.P.A1", res.StatusConflict.Violations[0].Pole)
	assert.Equal(t, []string{"pole permission", "pole planted"}, res.StatusConflict.Violations[0].Statuses)
}

func TestValidateConstraints_QualifierVariantsDoNotConflict(t *testing.T) {
	records := []model.Record{
		{model.ColPropertyID: "P-1", model.ColPoleNumber: "LAW.P.A1", model.ColStatus: "Pole Permission"},
		{model.ColPropertyID: "P-2", model.ColPoleNumber: "LAW.P.A1", model.ColStatus: "pole permission: approved"},
	}

	res := ValidateConstraints(records, testIngestConfig())
	assert.True(t, res.StatusConflict.Passed)
}

func TestValidateConstraints_NormalizedVariantsDoNotConflict(t *testing.T) {
	records := []model.Record{
		{model.ColPropertyID: "P-1", model.ColPoleNumber: "LAW.P.A1", model.ColStatus: "Pole Permissions: Approved"},
		{model.ColPropertyID: "P-2", model.ColPoleNumber: "LAW.P.A1", model.ColStatus: "pole  permission:  approved"},
	}

	res := ValidateConstraints(records, testIngestConfig())
	assert.True(t, res.StatusConflict.Passed)
}

func TestValidateConstraints_AllPass(t *testing.T) {
	records := []model.Record{
		{model.ColPropertyID: "P-1", model.ColPoleNumber: "LAW.P.A1", model.ColDropNumber: "DR1",
			model.ColLatitude: "-26.27", model.ColLongitude: "28.31", model.ColStatus: "Pole Planted"},
	}

	res := ValidateConstraints(records, testIngestConfig())
	assert.True(t, res.AllPassed())
}
