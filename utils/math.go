// Package utils contains small helpers shared across the streaming engine.
package utils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func MaxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}

// Square returns n * n.
func Square(n float64) float64 {
	return n * n
}

// Clamp returns v limited to the closed interval [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Float64AlmostEqual returns whether a and b are within epsilon of each other.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}
