// Package toggles holds the user-selected driving options as a typed snapshot.
// A snapshot is decoded and validated once, then replaced wholesale whenever a
// new blob arrives. Nothing mutates a snapshot after Decode returns.
package toggles

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// AccelerationProfile selects the max-acceleration curve
type AccelerationProfile int

const (
	AccelStandard AccelerationProfile = iota
	AccelEco
	AccelSport
	AccelSportPlus
)

// DecelerationProfile selects the min-acceleration curve
type DecelerationProfile int

const (
	DecelStandard DecelerationProfile = iota
	DecelEco
	DecelSport
)

// Toggles is the full set of recognised options. JSON keys match the blob
// published on the toggles topic and stored under StoreKey.
type Toggles struct {
	AccelerationProfile AccelerationProfile `json:"acceleration_profile"`
	DecelerationProfile DecelerationProfile `json:"deceleration_profile"`

	// Follow adjustments toward a faster lead
	AggressiveAcceleration             bool    `json:"aggressive_acceleration"`
	AggressiveAccelerationExperimental bool    `json:"aggressive_acceleration_experimental"`
	IncreasedStoppingDistance          float64 `json:"increased_stopping_distance"` // metres added to the stop distance

	// Personalities
	CustomPersonalities bool    `json:"custom_personalities"`
	AggressiveJerk      float64 `json:"aggressive_jerk"`
	StandardJerk        float64 `json:"standard_jerk"`
	RelaxedJerk         float64 `json:"relaxed_jerk"`
	AggressiveFollow    float64 `json:"aggressive_follow"` // seconds
	StandardFollow      float64 `json:"standard_follow"`
	RelaxedFollow       float64 `json:"relaxed_follow"`

	// Lane width metrics
	AdjacentLanes bool `json:"adjacent_lanes"`
	BlindSpotPath bool `json:"blind_spot_path"`

	// Cruise target sources
	SpeedLimitController bool    `json:"speed_limit_controller"`
	SpeedLimitOffset     float64 `json:"speed_limit_offset"` // m/s
	VisionTurnControl    bool    `json:"vision_turn_control"`
	CurveTargetLatAccel  float64 `json:"curve_target_lat_accel"` // m/s²
	CurveMinTargetSpeed  float64 `json:"curve_min_target_speed"` // m/s

	// Maintenance
	AutomaticUpdates bool `json:"automatic_updates"`
}

// StoreKey is the persistent store key holding the toggles blob
const StoreKey = "DrivectlToggles"

// Default returns the stock configuration used when no blob is available
func Default() Toggles {
	return Toggles{
		AccelerationProfile: AccelStandard,
		DecelerationProfile: DecelStandard,

		AggressiveJerk:   0.5,
		StandardJerk:     1.0,
		RelaxedJerk:      1.0,
		AggressiveFollow: 1.25,
		StandardFollow:   1.45,
		RelaxedFollow:    1.75,

		CurveTargetLatAccel: 1.9,
		CurveMinTargetSpeed: 5.0,

		AutomaticUpdates: true,
	}
}

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid toggles")

// Decode parses a JSON blob on top of the defaults and validates the result.
// Keys missing from the blob keep their default values.
func Decode(data []byte) (Toggles, error) {
	t := Default()
	if err := json.Unmarshal(data, &t); err != nil {
		return Toggles{}, fmt.Errorf("decode toggles: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Toggles{}, err
	}
	return t, nil
}

// Encode serialises the toggles for publication
func (t Toggles) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// Validate checks enum ranges and that every tuning value is usable
func (t Toggles) Validate() error {
	switch t.AccelerationProfile {
	case AccelStandard, AccelEco, AccelSport, AccelSportPlus:
	default:
		return fmt.Errorf("%w: acceleration_profile %d", ErrInvalid, t.AccelerationProfile)
	}
	switch t.DecelerationProfile {
	case DecelStandard, DecelEco, DecelSport:
	default:
		return fmt.Errorf("%w: deceleration_profile %d", ErrInvalid, t.DecelerationProfile)
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"aggressive_jerk", t.AggressiveJerk},
		{"standard_jerk", t.StandardJerk},
		{"relaxed_jerk", t.RelaxedJerk},
		{"aggressive_follow", t.AggressiveFollow},
		{"standard_follow", t.StandardFollow},
		{"relaxed_follow", t.RelaxedFollow},
		{"curve_target_lat_accel", t.CurveTargetLatAccel},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalid, p.name, p.value)
		}
	}

	finite := []struct {
		name  string
		value float64
	}{
		{"increased_stopping_distance", t.IncreasedStoppingDistance},
		{"speed_limit_offset", t.SpeedLimitOffset},
		{"curve_min_target_speed", t.CurveMinTargetSpeed},
	}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalid, f.name)
		}
	}
	if t.IncreasedStoppingDistance < 0 {
		return fmt.Errorf("%w: increased_stopping_distance must not be negative", ErrInvalid)
	}

	return nil
}
