package planner

import "github.com/ryansname/drivectl/src/toggles"

// Absolute acceleration limits (m/s²)
const (
	AccelMax   = 2.0
	AccelMin   = -3.5
	ACruiseMin = -1.2
)

// Acceleration profiles, breakpoints in m/s
var (
	minAccelBP = []float64{0., 8., 16., 28., 42.}
	maxAccelBP = []float64{0., 3, 6., 8., 11., 15., 20., 25., 30., 55.}

	minAccelEco   = MustCurveTable(minAccelBP, []float64{-0.001, -0.010, -0.28, -0.56, -0.56})
	maxAccelEco   = MustCurveTable(maxAccelBP, []float64{3.5, 3.2, 2.3, 2.0, 1.15, .80, .58, .36, .30, .091})
	minAccelSport = MustCurveTable(minAccelBP, []float64{-0.50, -0.52, -0.55, -0.57, -0.60})
	maxAccelSport = MustCurveTable(maxAccelBP, []float64{3.5, 3.5, 3.3, 2.8, 1.5, 1.0, .75, .6, .38, .2})
)

// Bounds is the acceleration envelope handed to the solver
type Bounds struct {
	Min float64
	Max float64
}

// SelectBounds picks min/max acceleration for speed v.
// An explicit eco/sport profile wins; otherwise the solver's stock curve applies,
// unless experimental mode is active, which opens the absolute limits.
func SelectBounds(
	v float64,
	accel toggles.AccelerationProfile,
	decel toggles.DecelerationProfile,
	experimental bool,
	solver Solver,
) Bounds {
	return Bounds{
		Min: minAccel(v, decel, experimental),
		Max: maxAccel(v, accel, experimental, solver),
	}
}

func maxAccel(v float64, profile toggles.AccelerationProfile, experimental bool, solver Solver) float64 {
	switch profile {
	case toggles.AccelEco:
		return maxAccelEco.Interp(v)
	case toggles.AccelSport, toggles.AccelSportPlus:
		return maxAccelSport.Interp(v)
	case toggles.AccelStandard:
		if experimental {
			return AccelMax
		}
		return solver.MaxAccel(v)
	default:
		panic("planner: unhandled acceleration profile")
	}
}

func minAccel(v float64, profile toggles.DecelerationProfile, experimental bool) float64 {
	switch profile {
	case toggles.DecelEco:
		return minAccelEco.Interp(v)
	case toggles.DecelSport:
		return minAccelSport.Interp(v)
	case toggles.DecelStandard:
		if experimental {
			return AccelMin
		}
		return ACruiseMin
	default:
		panic("planner: unhandled deceleration profile")
	}
}
