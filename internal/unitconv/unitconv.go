// Package unitconv implements the property unit transforms the Live
// Mutation Engine applies when a catalog property declares one (spec §4.7):
// decibel <-> linear amplitude, and milliseconds -> nanoseconds.
package unitconv

import "math"

// floorDB is the clamp applied to linear_to_db(0) and below, per spec §8
// round-trip law: "linear_to_db(0) <= -120".
const floorDB = -120.0

// LinearToDB converts a linear amplitude to decibels, clamped at floorDB for
// non-positive input.
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return floorDB
	}
	db := 20 * math.Log10(linear)
	if db < floorDB {
		return floorDB
	}
	return db
}

// DBToLinear converts decibels to a linear amplitude.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// MSToNS converts milliseconds to nanoseconds.
func MSToNS(ms float64) float64 {
	return ms * 1e6
}

// Apply applies the named transform, returning the input unchanged if name
// is empty or unrecognized.
func Apply(name string, v float64) float64 {
	switch name {
	case "db_to_linear":
		return DBToLinear(v)
	case "linear_to_db":
		return LinearToDB(v)
	case "ms_to_ns":
		return MSToNS(v)
	default:
		return v
	}
}
