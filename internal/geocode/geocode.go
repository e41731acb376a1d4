package geocode

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("geocode not found")

// Geocoder resolves a coordinate into a human-readable address for display on
// the stored issue. Best-effort: intake proceeds without an address when the
// lookup fails.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}
