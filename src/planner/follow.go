package planner

import (
	"math"

	"github.com/ryansname/drivectl/src/toggles"
)

// Personality is the driver-selected following style reported by controls
type Personality int

const (
	PersonalityAggressive Personality = iota
	PersonalityStandard
	PersonalityRelaxed
)

// FallbackFollowTime is used whenever no lead is tracked (seconds)
const FallbackFollowTime = 1.45

// MinFollowTime is the lowest adjusted follow time ever returned (seconds).
// A base follow time below it is returned as is.
const MinFollowTime = 0.25

// BaseJerk returns the jerk factor for the personality before any lead adjustment
func BaseJerk(t toggles.Toggles, p Personality) float64 {
	if t.CustomPersonalities {
		switch p {
		case PersonalityAggressive:
			return t.AggressiveJerk
		case PersonalityRelaxed:
			return t.RelaxedJerk
		default:
			return t.StandardJerk
		}
	}
	if p == PersonalityAggressive {
		return 0.5
	}
	return 1.0
}

// BaseFollowTime returns the time gap for the personality before any lead adjustment
func BaseFollowTime(t toggles.Toggles, p Personality) float64 {
	if t.CustomPersonalities {
		switch p {
		case PersonalityAggressive:
			return t.AggressiveFollow
		case PersonalityRelaxed:
			return t.RelaxedFollow
		default:
			return t.StandardFollow
		}
	}
	switch p {
	case PersonalityAggressive:
		return 1.25
	case PersonalityRelaxed:
		return 1.75
	default:
		return 1.45
	}
}

// FollowMode selects how follow values shrink when the lead pulls away
type FollowMode int

const (
	FollowOff FollowMode = iota
	FollowAggressive
	FollowExperimental
)

// FollowModeFor resolves the toggles into a single mode; experimental wins
func FollowModeFor(t toggles.Toggles) FollowMode {
	switch {
	case t.AggressiveAccelerationExperimental:
		return FollowExperimental
	case t.AggressiveAcceleration:
		return FollowAggressive
	default:
		return FollowOff
	}
}

// FollowInputs are the base values and lead dynamics for one adjustment
type FollowInputs struct {
	Jerk         float64
	TFollow      float64
	LeadDistance float64 // m
	VEgo         float64 // m/s
	VLead        float64 // m/s
	StopDistance float64 // standstill margin used by the experimental mode, m
}

// AdjustFollow shrinks jerk and/or follow time when a faster lead is ahead.
// The divisor is clamped to [1, distanceFactor], so outputs never exceed the
// inputs and a far-away lead cannot shrink them without bound.
func AdjustFollow(in FollowInputs, mode FollowMode) (jerk, tFollow float64) {
	jerk, tFollow = in.Jerk, in.TFollow
	if in.VLead <= in.VEgo {
		return jerk, tFollow
	}

	closing := in.VLead - in.VEgo

	switch mode {
	case FollowExperimental:
		distanceFactor := math.Max(in.LeadDistance-in.VEgo*in.TFollow, 1)
		standstillOffset := math.Max(in.StopDistance-in.VEgo, 0)
		offset := clamp(closing+standstillOffset*math.Max(closing, 0)-ComfortBrake, 1, distanceFactor)
		jerk /= offset
		tFollow /= offset
	case FollowAggressive:
		distanceFactor := math.Max(in.LeadDistance-in.VLead*in.TFollow, 1)
		standstillOffset := math.Max(StopDistance-math.Pow(in.VEgo, ComfortBrake), 0)
		offset := clamp(closing+standstillOffset-ComfortBrake, 1, distanceFactor)
		tFollow /= offset
	case FollowOff:
		return jerk, tFollow
	}

	return jerk, math.Max(tFollow, math.Min(MinFollowTime, in.TFollow))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
