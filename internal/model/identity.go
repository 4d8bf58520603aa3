package model

import "fmt"

// TrackingType classifies the field a tracking identifier was resolved
// from. Only pole identifiers are authoritative; the rest are proxies.
type TrackingType string

const (
	TrackingPole     TrackingType = "pole"
	TrackingDrop     TrackingType = "drop"
	TrackingGPS      TrackingType = "gps"
	TrackingAddress  TrackingType = "address"
	TrackingProperty TrackingType = "property"
)

// TrackingID is the best available identifier for a record.
type TrackingID struct {
	Type  TrackingType `json:"type"`
	Value string       `json:"value"`
}

// ResolveTrackingID picks the strongest identifier for a record using a
// fixed priority: pole number, drop number, GPS pair, address, then the
// property id itself. The first non-empty candidate wins; candidates
// are never combined. Pole and drop numbers are the authoritative asset
// identifiers; GPS and address are noisier proxies used only when those
// are absent. GPS coordinates are rounded to 4 decimal places (~10m) so
// the same physical location keys consistently across exports.
func ResolveTrackingID(r Record) TrackingID {
	if v := r.PoleNumber(); v != "" {
		return TrackingID{Type: TrackingPole, Value: v}
	}
	if v := r.DropNumber(); v != "" {
		return TrackingID{Type: TrackingDrop, Value: v}
	}
	if lat, lng, ok := r.Coordinates(); ok {
		return TrackingID{Type: TrackingGPS, Value: fmt.Sprintf("%.4f,%.4f", lat, lng)}
	}
	if v := r.Address(); v != "" {
		return TrackingID{Type: TrackingAddress, Value: v}
	}
	return TrackingID{Type: TrackingProperty, Value: r.PropertyID()}
}
