package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDegToRad(t *testing.T) {
	test.That(t, DegToRad(0), test.ShouldEqual, 0)
	test.That(t, DegToRad(180), test.ShouldEqual, math.Pi)
	test.That(t, DegToRad(90), test.ShouldAlmostEqual, math.Pi/2)
}

func TestMaxInt(t *testing.T) {
	test.That(t, MaxInt(1, 2), test.ShouldEqual, 2)
	test.That(t, MaxInt(2, -1), test.ShouldEqual, 2)
}

func TestSquare(t *testing.T) {
	test.That(t, Square(3), test.ShouldEqual, 9)
	test.That(t, Square(-0.5), test.ShouldEqual, 0.25)
	test.That(t, Square(0), test.ShouldEqual, 0)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(0.5, 0, 1), test.ShouldEqual, 0.5)
	test.That(t, Clamp(-2, 0, 1), test.ShouldEqual, 0)
	test.That(t, Clamp(7, 0, 1), test.ShouldEqual, 1)
}

func TestFloat64AlmostEqual(t *testing.T) {
	test.That(t, Float64AlmostEqual(1.0, 1.0+1e-9, 1e-8), test.ShouldBeTrue)
	test.That(t, Float64AlmostEqual(1.0, 1.1, 1e-8), test.ShouldBeFalse)
}
