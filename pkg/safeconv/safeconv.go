// Package safeconv provides integer width conversions that never wrap silently.
package safeconv

import "math"

// MustIntToUint16 converts int to uint16, panics when out of range.
// Use only when the caller has already bounded the value.
func MustIntToUint16(v int) uint16 {
	if v < 0 || v > math.MaxUint16 {
		panic("safeconv: int to uint16 out of bounds")
	}

	return uint16(v)
}

// Int64ToUint64 converts int64 to uint64, clamping negatives to zero.
func Int64ToUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
