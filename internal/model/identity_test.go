package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTrackingID_PoleWins(t *testing.T) {
	rec := Record{
		ColPropertyID: "P-1001",
		ColPoleNumber: "LAW.P.B167",
		ColDropNumber: "DR1742",
		ColLatitude:   "-26.2654",
		ColLongitude:  "28.3012",
		ColAddress:    "12 Main Rd",
	}

	id := ResolveTrackingID(rec)
	assert.Equal(t, TrackingPole, id.Type)
	assert.Equal(t, "LAW.P.B167", id.Value)
}

func TestResolveTrackingID_DropBeatsGPS(t *testing.T) {
	rec := Record{
		ColPropertyID: "P-1002",
		ColDropNumber: "DR1742",
		ColLatitude:   "-26.2654",
		ColLongitude:  "28.3012",
	}

	id := ResolveTrackingID(rec)
	assert.Equal(t, TrackingDrop, id.Type)
	assert.Equal(t, "DR1742", id.Value)
}

func TestResolveTrackingID_GPSRounding(t *testing.T) {
	rec := Record{
		ColPropertyID: "P-1003",
		ColLatitude:   "-26.26541987",
		ColLongitude:  "28.30129912",
	}

	id := ResolveTrackingID(rec)
	assert.Equal(t, TrackingGPS, id.Type)
	assert.Equal(t, "-26.2654,28.3013", id.Value)
}

func TestResolveTrackingID_GPSNeedsBothCoordinates(t *testing.T) {
	rec := Record{
		ColPropertyID: "P-1004",
		ColLatitude:   "-26.2654",
		ColAddress:    "12 Main Rd",
	}

	id := ResolveTrackingID(rec)
	assert.Equal(t, TrackingAddress, id.Type)
	assert.Equal(t, "12 Main Rd", id.Value)
}

func TestResolveTrackingID_PropertyFallback(t *testing.T) {
	rec := Record{ColPropertyID: "P-1005"}

	id := ResolveTrackingID(rec)
	assert.Equal(t, TrackingProperty, id.Type)
	assert.Equal(t, "P-1005", id.Value)
}

func TestResolveTrackingID_WhitespaceOnlyIsEmpty(t *testing.T) {
	rec := Record{
		ColPropertyID: "P-1006",
		ColPoleNumber: "   ",
		ColDropNumber: "DR9",
	}

	id := ResolveTrackingID(rec)
	assert.Equal(t, TrackingDrop, id.Type)
}
