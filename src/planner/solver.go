package planner

// Longitudinal solver constants
const (
	ComfortBrake = 2.5 // m/s²
	StopDistance = 6.0 // m

	AChangeCost = 200.0
	JEgoCost    = 5.0
)

// Solver is the trajectory solver seen as a black box: it owns the stock
// max-acceleration curve and the obstacle distance model.
type Solver interface {
	MaxAccel(v float64) float64
	SafeObstacleDistance(v, tFollow float64) float64
	StoppedEquivalenceFactor(vLead float64) float64
}

var stockMaxAccel = MustCurveTable(
	[]float64{0., 10.0, 25., 40.},
	[]float64{1.6, 1.2, 0.8, 0.6},
)

// StockSolver implements Solver with the stock longitudinal model
type StockSolver struct{}

func (StockSolver) MaxAccel(v float64) float64 {
	return stockMaxAccel.Interp(v)
}

// SafeObstacleDistance is braking distance at comfort deceleration plus the time gap and a standstill margin
func (StockSolver) SafeObstacleDistance(v, tFollow float64) float64 {
	return v*v/(2*ComfortBrake) + tFollow*v + StopDistance
}

// StoppedEquivalenceFactor is the distance the lead needs to stop at comfort deceleration
func (StockSolver) StoppedEquivalenceFactor(vLead float64) float64 {
	return vLead * vLead / (2 * ComfortBrake)
}
