package planner

// FollowState is the follow tuning carried between cycles
type FollowState struct {
	Jerk                      float64
	TFollow                   float64
	SafeObstacleDistance      int
	SafeObstacleDistanceStock int
	StoppedEquivalenceFactor  int
}

// NewFollowState returns the state used before any lead has been seen
func NewFollowState() FollowState {
	return FollowState{TFollow: FallbackFollowTime}
}

// FollowUpdate carries everything one follow-state update needs
type FollowUpdate struct {
	LeadTracked bool
	LongActive  bool // longitudinal control owned by this system
	BaseJerk    float64
	BaseTFollow float64
	Jerk        float64 // adjusted
	TFollow     float64 // adjusted
	VEgo        float64
	VLead       float64
}

// Update records the adjusted follow values and the obstacle distances derived
// from them. The stock distance uses the unadjusted follow time for comparison.
// Without a lead (or without longitudinal control) distances reset to zero and
// the follow time falls back; jerk keeps its last value.
func (s *FollowState) Update(u FollowUpdate, solver Solver) {
	if !u.LeadTracked || !u.LongActive {
		s.SafeObstacleDistance = 0
		s.SafeObstacleDistanceStock = 0
		s.StoppedEquivalenceFactor = 0
		s.TFollow = FallbackFollowTime
		return
	}

	s.Jerk = u.Jerk
	s.TFollow = u.TFollow
	s.SafeObstacleDistance = int(solver.SafeObstacleDistance(u.VEgo, u.TFollow))
	s.SafeObstacleDistanceStock = int(solver.SafeObstacleDistance(u.VEgo, u.BaseTFollow))
	s.StoppedEquivalenceFactor = int(solver.StoppedEquivalenceFactor(u.VLead))
}

// DesiredFollowDistance is the gap the solver should hold behind the lead
func (s FollowState) DesiredFollowDistance() int {
	return s.SafeObstacleDistance - s.StoppedEquivalenceFactor
}
