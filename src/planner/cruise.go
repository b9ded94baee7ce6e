package planner

import (
	"math"

	"github.com/ryansname/drivectl/src/toggles"
)

// Speed constants (m/s)
const (
	KphToMs       = 1 / 3.6
	MphToMs       = 0.44704
	CruisingSpeed = 5.0
	VCruiseUnset  = 255.0 // km/h
)

// SelectTarget reduces candidate speeds to one cruise target.
// Candidates at or below floor are replaced by fallback; fallback itself always
// takes part, so the target never exceeds the driver's set speed.
func SelectTarget(candidates []float64, fallback, floor float64) float64 {
	target := fallback
	for _, c := range candidates {
		if c <= floor {
			c = fallback
		}
		target = min(target, c)
	}
	return target
}

// CruiseContext is what candidate sources see each cycle
type CruiseContext struct {
	Snapshot  VehicleSnapshot
	Toggles   toggles.Toggles
	VCruise   float64 // m/s, the driver's set speed
	VEgoDiff  float64 // cluster speed minus true speed
	Curvature float64 // 1/m
}

// CandidateSource proposes a cruise speed. ok is false when it has no opinion.
type CandidateSource interface {
	Name() string
	Candidate(c CruiseContext) (speed float64, ok bool)
}

// SpeedLimitSource follows the posted limit plus the configured offset.
// Limits are shown on the cluster, so the cluster/true speed gap is removed.
type SpeedLimitSource struct{}

func (SpeedLimitSource) Name() string { return "speed_limit" }

func (SpeedLimitSource) Candidate(c CruiseContext) (float64, bool) {
	if !c.Toggles.SpeedLimitController || c.Snapshot.SpeedLimit <= 0 {
		return 0, false
	}
	return c.Snapshot.SpeedLimit + c.Toggles.SpeedLimitOffset - c.VEgoDiff, true
}

// CurvatureSource slows for curves so lateral acceleration stays near the target
type CurvatureSource struct{}

func (CurvatureSource) Name() string { return "curvature" }

func (CurvatureSource) Candidate(c CruiseContext) (float64, bool) {
	if !c.Toggles.VisionTurnControl || c.Curvature <= 0 {
		return 0, false
	}
	v := math.Sqrt(c.Toggles.CurveTargetLatAccel / c.Curvature)
	return max(v, c.Toggles.CurveMinTargetSpeed), true
}

// DefaultCandidateSources is the source set used by New
func DefaultCandidateSources() []CandidateSource {
	return []CandidateSource{SpeedLimitSource{}, CurvatureSource{}}
}
