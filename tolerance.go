// Package simt tolerance-based verification for floating-point comparisons
package simt

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float32

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float32

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int
}

// DefaultTolerance returns default tolerance configuration
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-7,
		RelTol: 1e-5,
		ULPTol: MaxULPDiff,
	}
}

// StrictTolerance returns strict tolerance configuration for high precision
func StrictTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-9,
		RelTol: 1e-7,
		ULPTol: 1,
	}
}

// RelaxedTolerance returns relaxed tolerance for accumulated operations
func RelaxedTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-5,
		RelTol: 1e-3,
		ULPTol: 16,
	}
}

// AccumulationTolerance returns a tolerance sized for summing n float32
// values with a tree reduction, whose rounding error grows with the
// O(log n) depth of the accumulation.
func AccumulationTolerance(n int) ToleranceConfig {
	depth := float32(1)
	if n > 1 {
		depth = math32.Ceil(math32.Log2(float32(n)))
	}
	return ToleranceConfig{
		AbsTol: 1e-6 * depth,
		RelTol: 4 * Float32Epsilon * depth,
		ULPTol: 8 * int(depth),
	}
}

// Float32NearEqual checks if two float32 values are equal within tolerance
func Float32NearEqual(a, b float32, cfg ToleranceConfig) bool {
	if a == b {
		return true
	}
	if math32.IsNaN(a) || math32.IsNaN(b) {
		return false
	}
	if math32.IsInf(a, 0) || math32.IsInf(b, 0) {
		return a == b
	}

	diff := math32.Abs(a - b)
	if diff <= cfg.AbsTol {
		return true
	}

	largest := math32.Max(math32.Abs(a), math32.Abs(b))
	if diff <= largest*cfg.RelTol {
		return true
	}

	return ulpDiff(a, b) <= cfg.ULPTol
}

// ulpDiff returns the distance between a and b in float32 representation
// steps. Values of opposite sign are considered maximally distant.
func ulpDiff(a, b float32) int {
	ia := int32(math.Float32bits(a))
	ib := int32(math.Float32bits(b))

	if (ia < 0) != (ib < 0) {
		return math.MaxInt32
	}

	d := ia - ib
	if d < 0 {
		d = -d
	}
	return int(d)
}

// VerifyFloat32 compares got against want and returns a descriptive error
// when they differ beyond the tolerance.
func VerifyFloat32(got, want float32, cfg ToleranceConfig, label string) error {
	if Float32NearEqual(got, want, cfg) {
		return nil
	}
	return fmt.Errorf("%s: got %v, want %v (diff %v, rel %v)",
		label, got, want, math32.Abs(got-want),
		math32.Abs(got-want)/math32.Max(math32.Abs(want), Float32Epsilon))
}
