package planner

import (
	"math"
	"sort"
)

// LaneChangeSpeedMin is the lowest speed at which adjacent lanes are measured
const LaneChangeSpeedMin = 20 * MphToMs

// Line is a model-predicted polyline in the car frame (x ahead, y left), metres
type Line struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Trajectory holds the model's predicted motion along the plan
type Trajectory struct {
	VelocityX     []float64 `json:"velocityX"`
	AccelerationY []float64 `json:"accelerationY"`
}

// LaneWidth estimates the width of the lane beside current: the mean lateral
// gap to the adjacent lane line or to the road edge, whichever is narrower.
func LaneWidth(adjacent, current, roadEdge Line) float64 {
	n := min(len(current.X), len(current.Y))
	if n == 0 {
		return 0
	}

	var toLane, toEdge float64
	for i := range n {
		toLane += math.Abs(current.Y[i] - interpLine(current.X[i], adjacent))
		toEdge += math.Abs(current.Y[i] - interpLine(current.X[i], roadEdge))
	}
	return min(toLane, toEdge) / float64(n)
}

// RoadCurvature returns the sharpest curvature (1/m) the model predicts ahead
func RoadCurvature(t Trajectory) float64 {
	n := min(len(t.VelocityX), len(t.AccelerationY))
	curvature := 0.0
	for i := range n {
		v := max(t.VelocityX[i], 0.1)
		curvature = max(curvature, math.Abs(t.AccelerationY[i])/(v*v))
	}
	return curvature
}

// interpLine linearly interpolates y at x over points sorted by x, clamping at the ends
func interpLine(x float64, l Line) float64 {
	n := min(len(l.X), len(l.Y))
	if n == 0 {
		return 0
	}
	if math.IsNaN(x) {
		return x
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return l.X[idx[a]] < l.X[idx[b]] })

	first, last := idx[0], idx[n-1]
	if x <= l.X[first] {
		return l.Y[first]
	}
	if x >= l.X[last] {
		return l.Y[last]
	}

	j := sort.Search(n, func(k int) bool { return l.X[idx[k]] >= x })
	if j == 0 || j == n {
		// only reachable with NaN breakpoints
		return math.NaN()
	}
	hi, lo := idx[j], idx[j-1]
	if l.X[hi] == l.X[lo] {
		return l.Y[hi]
	}
	return l.Y[lo] + (l.Y[hi]-l.Y[lo])*(x-l.X[lo])/(l.X[hi]-l.X[lo])
}
