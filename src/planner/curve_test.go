package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurveTable_Validation(t *testing.T) {
	tests := []struct {
		name        string
		breakpoints []float64
		values      []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", []float64{0, 1}, []float64{1}},
		{"not increasing", []float64{0, 2, 2}, []float64{1, 2, 3}},
		{"decreasing", []float64{3, 1}, []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCurveTable(tt.breakpoints, tt.values)
			assert.Error(t, err)
		})
	}
}

func TestCurveTable_ClampsOutsideDomain(t *testing.T) {
	c := MustCurveTable([]float64{0, 10, 20}, []float64{1, 3, 2})

	assert.Equal(t, 1.0, c.Interp(-5))
	assert.Equal(t, 1.0, c.Interp(-1e9))
	assert.Equal(t, 2.0, c.Interp(25))
	assert.Equal(t, 2.0, c.Interp(1e9))
}

func TestCurveTable_ExactAtBreakpoints(t *testing.T) {
	bps := []float64{0., 3, 6., 8., 11., 15., 20., 25., 30., 55.}
	vals := []float64{3.5, 3.2, 2.3, 2.0, 1.15, .80, .58, .36, .30, .091}
	c := MustCurveTable(bps, vals)

	for i, bp := range bps {
		assert.Equal(t, vals[i], c.Interp(bp), "breakpoint %v", bp)
	}
}

func TestCurveTable_Interpolates(t *testing.T) {
	c := MustCurveTable([]float64{0, 10, 20}, []float64{1, 3, 2})

	assert.InDelta(t, 2.0, c.Interp(5), 1e-12)
	assert.InDelta(t, 2.5, c.Interp(15), 1e-12)
	assert.InDelta(t, 1.2, c.Interp(1), 1e-12)
}

func TestCurveTable_CopiesInput(t *testing.T) {
	bps := []float64{0, 1}
	vals := []float64{0, 1}
	c, err := NewCurveTable(bps, vals)
	require.NoError(t, err)

	vals[1] = 100
	assert.Equal(t, 1.0, c.Interp(1))
}

func TestCurveTable_SinglePoint(t *testing.T) {
	c := MustCurveTable([]float64{4}, []float64{7})
	assert.Equal(t, 7.0, c.Interp(0))
	assert.Equal(t, 7.0, c.Interp(4))
	assert.Equal(t, 7.0, c.Interp(9))

	lo, hi := c.Domain()
	assert.Equal(t, 4.0, lo)
	assert.Equal(t, 4.0, hi)
}
