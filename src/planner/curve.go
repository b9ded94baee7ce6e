// Package planner derives per-cycle longitudinal tuning values from vehicle telemetry.
// Everything here is a pure function of its inputs or of state owned by a Planner;
// nothing blocks and nothing touches the network.
package planner

import (
	"fmt"
	"math"
	"sort"
)

// CurveTable is a piecewise-linear lookup over fixed breakpoints.
// Breakpoints are strictly increasing. Values need not be monotonic.
type CurveTable struct {
	breakpoints []float64
	values      []float64
}

// NewCurveTable validates and copies the breakpoint/value pairs
func NewCurveTable(breakpoints, values []float64) (CurveTable, error) {
	if len(breakpoints) == 0 {
		return CurveTable{}, fmt.Errorf("curve table: no breakpoints")
	}
	if len(breakpoints) != len(values) {
		return CurveTable{}, fmt.Errorf("curve table: %d breakpoints but %d values", len(breakpoints), len(values))
	}
	for i := 1; i < len(breakpoints); i++ {
		if breakpoints[i] <= breakpoints[i-1] {
			return CurveTable{}, fmt.Errorf("curve table: breakpoint %d (%v) not above %v", i, breakpoints[i], breakpoints[i-1])
		}
	}
	return CurveTable{
		breakpoints: append([]float64(nil), breakpoints...),
		values:      append([]float64(nil), values...),
	}, nil
}

// MustCurveTable is NewCurveTable for package-level tables known to be valid
func MustCurveTable(breakpoints, values []float64) CurveTable {
	c, err := NewCurveTable(breakpoints, values)
	if err != nil {
		panic(err)
	}
	return c
}

// Interp returns the interpolated value at x, clamped to the end values outside the domain
func (c CurveTable) Interp(x float64) float64 {
	n := len(c.breakpoints)
	if n == 0 {
		return 0
	}
	if math.IsNaN(x) {
		return x
	}
	if x <= c.breakpoints[0] {
		return c.values[0]
	}
	if x >= c.breakpoints[n-1] {
		return c.values[n-1]
	}

	// First breakpoint >= x; x is strictly inside so 0 < i < n
	i := sort.SearchFloat64s(c.breakpoints, x)
	if c.breakpoints[i] == x {
		return c.values[i]
	}

	x0, x1 := c.breakpoints[i-1], c.breakpoints[i]
	y0, y1 := c.values[i-1], c.values[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// Domain returns the first and last breakpoints
func (c CurveTable) Domain() (lo, hi float64) {
	if len(c.breakpoints) == 0 {
		return 0, 0
	}
	return c.breakpoints[0], c.breakpoints[len(c.breakpoints)-1]
}
