package planner

import (
	"errors"
	"fmt"
	"math"

	"github.com/ryansname/drivectl/src/toggles"
)

// Lead is the primary tracked vehicle ahead
type Lead struct {
	Status   bool    `json:"status"`
	Distance float64 `json:"dRel"`  // m
	Speed    float64 `json:"vLead"` // m/s
}

// VehicleSnapshot is one cycle's view of the car, assembled from the latest
// bus messages and discarded after the cycle.
type VehicleSnapshot struct {
	VEgo           float64 // m/s
	VEgoCluster    float64 // m/s, speed shown on the cluster
	VCruise        float64 // km/h, VCruiseUnset when not set
	VCruiseCluster float64 // km/h
	Personality    Personality
	Experimental   bool
	Enabled        bool
	Lead           Lead
	GPSValid       bool
	LaneLines      [4]Line
	RoadEdges      [2]Line
	Trajectory     Trajectory
	SpeedLimit     float64 // m/s, 0 when unknown
}

// ErrNonFinite is returned when a derived value is NaN or infinite
var ErrNonFinite = errors.New("non-finite planner output")

// Planner derives the control tuning values for one drive. Discard it and
// build a new one whenever the car starts or stops.
type Planner struct {
	solver      Solver
	longControl bool
	sources     []CandidateSource

	bounds         Bounds
	laneWidthLeft  float64
	laneWidthRight float64
	follow         FollowState
	leadTracked    bool
	vCruise        float64
	experimental   bool
}

// New builds a Planner. With no sources the default candidate sources are used.
func New(solver Solver, longControl bool, sources ...CandidateSource) *Planner {
	if len(sources) == 0 {
		sources = DefaultCandidateSources()
	}
	return &Planner{
		solver:      solver,
		longControl: longControl,
		sources:     sources,
		follow:      NewFollowState(),
	}
}

// Update runs one derivation. On error the planner keeps the previous cycle's values.
func (p *Planner) Update(s VehicleSnapshot, t toggles.Toggles) error {
	vEgo := max(s.VEgo, 0)
	vCruise := min(s.VCruise, VCruiseUnset) * KphToMs

	bounds := SelectBounds(vEgo, t.AccelerationProfile, t.DecelerationProfile, s.Experimental, p.solver)

	var left, right float64
	if (t.AdjacentLanes || t.BlindSpotPath) && vEgo >= LaneChangeSpeedMin {
		left = LaneWidth(s.LaneLines[0], s.LaneLines[1], s.RoadEdges[0])
		right = LaneWidth(s.LaneLines[3], s.LaneLines[2], s.RoadEdges[1])
	}
	curvature := RoadCurvature(s.Trajectory)

	follow := p.follow
	baseJerk := BaseJerk(t, s.Personality)
	baseTFollow := BaseFollowTime(t, s.Personality)
	jerk, tFollow := AdjustFollow(FollowInputs{
		Jerk:         baseJerk,
		TFollow:      baseTFollow,
		LeadDistance: s.Lead.Distance,
		VEgo:         vEgo,
		VLead:        s.Lead.Speed,
		StopDistance: StopDistance + t.IncreasedStoppingDistance,
	}, FollowModeFor(t))
	follow.Update(FollowUpdate{
		LeadTracked: s.Lead.Status,
		LongActive:  p.longControl,
		BaseJerk:    baseJerk,
		BaseTFollow: baseTFollow,
		Jerk:        jerk,
		TFollow:     tFollow,
		VEgo:        vEgo,
		VLead:       s.Lead.Speed,
	}, p.solver)

	ctx := CruiseContext{
		Snapshot:  s,
		Toggles:   t,
		VCruise:   vCruise,
		VEgoDiff:  max(s.VEgoCluster, vEgo) - vEgo,
		Curvature: curvature,
	}
	candidates := make([]float64, 0, len(p.sources))
	for _, src := range p.sources {
		if v, ok := src.Candidate(ctx); ok {
			candidates = append(candidates, v)
		}
	}
	target := SelectTarget(candidates, vCruise, CruisingSpeed)

	outputs := []struct {
		name  string
		value float64
	}{
		{"min_accel", bounds.Min},
		{"max_accel", bounds.Max},
		{"lane_width_left", left},
		{"lane_width_right", right},
		{"jerk", follow.Jerk},
		{"t_follow", follow.TFollow},
		{"v_cruise", target},
	}
	for _, o := range outputs {
		if math.IsNaN(o.value) || math.IsInf(o.value, 0) {
			return fmt.Errorf("%w: %s", ErrNonFinite, o.name)
		}
	}

	p.bounds = bounds
	p.laneWidthLeft, p.laneWidthRight = left, right
	p.follow = follow
	p.leadTracked = s.Lead.Status
	p.vCruise = target
	p.experimental = s.Experimental
	return nil
}

// Plan is the record published once per cycle
type Plan struct {
	AccelerationJerk          float64 `json:"accelerationJerk"`
	AccelerationJerkStock     float64 `json:"accelerationJerkStock"`
	EgoJerk                   float64 `json:"egoJerk"`
	EgoJerkStock              float64 `json:"egoJerkStock"`
	DesiredFollowDistance     int     `json:"desiredFollowDistance"`
	MinAcceleration           float64 `json:"minAcceleration"`
	MaxAcceleration           float64 `json:"maxAcceleration"`
	LaneWidthLeft             float64 `json:"laneWidthLeft"`
	LaneWidthRight            float64 `json:"laneWidthRight"`
	TFollow                   float64 `json:"tFollow"`
	VCruise                   float64 `json:"vCruise"`
	Jerk                      float64 `json:"jerk"`
	SafeObstacleDistance      int     `json:"safeObstacleDistance"`
	SafeObstacleDistanceStock int     `json:"safeObstacleDistanceStock"`
	StoppedEquivalenceFactor  int     `json:"stoppedEquivalenceFactor"`
	ExperimentalMode          bool    `json:"experimentalMode"`
	Valid                     bool    `json:"valid"`
}

// Plan snapshots the last successful Update. valid reports whether the
// required upstream messages were fresh.
func (p *Planner) Plan(valid bool) Plan {
	jerkFactor := 1.0
	if p.leadTracked {
		jerkFactor = p.follow.Jerk
	}

	return Plan{
		AccelerationJerk:          AChangeCost * jerkFactor,
		AccelerationJerkStock:     AChangeCost,
		EgoJerk:                   JEgoCost * jerkFactor,
		EgoJerkStock:              JEgoCost,
		DesiredFollowDistance:     p.follow.DesiredFollowDistance(),
		MinAcceleration:           p.bounds.Min,
		MaxAcceleration:           p.bounds.Max,
		LaneWidthLeft:             p.laneWidthLeft,
		LaneWidthRight:            p.laneWidthRight,
		TFollow:                   p.follow.TFollow,
		VCruise:                   p.vCruise,
		Jerk:                      p.follow.Jerk,
		SafeObstacleDistance:      p.follow.SafeObstacleDistance,
		SafeObstacleDistanceStock: p.follow.SafeObstacleDistanceStock,
		StoppedEquivalenceFactor:  p.follow.StoppedEquivalenceFactor,
		ExperimentalMode:          p.experimental,
		Valid:                     valid,
	}
}
