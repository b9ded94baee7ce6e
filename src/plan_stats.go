package main

import (
	"context"
	"sort"
	"time"

	"github.com/ryansname/drivectl/src/planner"
)

// Reading is one timestamped value of a plan field
type Reading struct {
	Value     float64
	Timestamp time.Time
}

type Readings []Reading

// TimeWindows holds values across 1, 5, and 15 minute windows
type TimeWindows struct {
	_1  float64
	_5  float64
	_15 float64
}

// FieldData holds the current value and rolling statistics of a plan field
type FieldData struct {
	Current float64
	P1      TimeWindows
	P50     TimeWindows
	P66     TimeWindows
	P99     TimeWindows
}

// DisplayData is what the debug view renders
type DisplayData struct {
	Fields map[string]*FieldData
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// planFields flattens a plan into named numeric values, booleans as 0/1
func planFields(p planner.Plan) map[string]float64 {
	return map[string]float64{
		"accelerationJerk":          p.AccelerationJerk,
		"egoJerk":                   p.EgoJerk,
		"desiredFollowDistance":     float64(p.DesiredFollowDistance),
		"minAcceleration":           p.MinAcceleration,
		"maxAcceleration":           p.MaxAcceleration,
		"laneWidthLeft":             p.LaneWidthLeft,
		"laneWidthRight":            p.LaneWidthRight,
		"tFollow":                   p.TFollow,
		"vCruise":                   p.VCruise,
		"jerk":                      p.Jerk,
		"safeObstacleDistance":      float64(p.SafeObstacleDistance),
		"safeObstacleDistanceStock": float64(p.SafeObstacleDistanceStock),
		"stoppedEquivalenceFactor":  float64(p.StoppedEquivalenceFactor),
		"experimentalMode":          boolValue(p.ExperimentalMode),
		"valid":                     boolValue(p.Valid),
	}
}

type weightedValue struct {
	value    float64
	duration float64
}

// calculateTimeWeightedPercentiles returns P1, P50, P66 and P99 where each
// value counts for as long as it was held. pairs must be sorted by value.
func calculateTimeWeightedPercentiles(pairs []weightedValue, totalDuration float64) (p1, p50, p66, p99 float64) {
	if len(pairs) == 0 {
		return 0, 0, 0, 0
	}
	if len(pairs) == 1 {
		v := pairs[0].value
		return v, v, v, v
	}

	targets := [4]float64{totalDuration * 0.01, totalDuration * 0.50, totalDuration * 0.66, totalDuration * 0.99}
	results := [4]float64{}
	next := 0

	var cumulative float64
	for _, pair := range pairs {
		cumulative += pair.duration
		for next < len(targets) && cumulative >= targets[next] {
			results[next] = pair.value
			next++
		}
		if next == len(targets) {
			break
		}
	}

	// Rounding can leave the top targets unreached
	for ; next < len(targets); next++ {
		results[next] = pairs[len(pairs)-1].value
	}

	return results[0], results[1], results[2], results[3]
}

// calculateTimeWeightedStats computes percentiles over the readings inside
// the window, each weighted by the time until the next reading.
func calculateTimeWeightedStats(readings Readings, windowDuration time.Duration, now time.Time) (p1, p50, p66, p99 float64) {
	if len(readings) == 0 {
		return 0, 0, 0, 0
	}
	lastReading := readings[len(readings)-1]

	cutoff := now.Add(-windowDuration)
	var windowReadings Readings
	for _, r := range readings {
		if r.Timestamp.After(cutoff) {
			windowReadings = append(windowReadings, r)
		}
	}

	// A lone reading has no duration, so report the last known value
	if len(windowReadings) <= 1 {
		v := lastReading.Value
		return v, v, v, v
	}

	pairs := make([]weightedValue, 0, len(windowReadings))
	var totalDuration float64
	for i, r := range windowReadings {
		end := now
		if i < len(windowReadings)-1 {
			end = windowReadings[i+1].Timestamp
		}
		duration := end.Sub(r.Timestamp).Seconds()
		pairs = append(pairs, weightedValue{value: r.Value, duration: duration})
		totalDuration += duration
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	return calculateTimeWeightedPercentiles(pairs, totalDuration)
}

func calculateStats(data *FieldData, readings Readings, now time.Time) {
	if len(readings) == 0 {
		return
	}

	p1_1, p50_1, p66_1, p99_1 := calculateTimeWeightedStats(readings, 1*time.Minute, now)
	p1_5, p50_5, p66_5, p99_5 := calculateTimeWeightedStats(readings, 5*time.Minute, now)
	p1_15, p50_15, p66_15, p99_15 := calculateTimeWeightedStats(readings, 15*time.Minute, now)

	data.P1 = TimeWindows{_1: p1_1, _5: p1_5, _15: p1_15}
	data.P50 = TimeWindows{_1: p50_1, _5: p50_5, _15: p50_15}
	data.P66 = TimeWindows{_1: p66_1, _5: p66_5, _15: p66_15}
	data.P99 = TimeWindows{_1: p99_1, _5: p99_5, _15: p99_15}
}

func cloneFields(fields map[string]*FieldData) map[string]*FieldData {
	clone := make(map[string]*FieldData, len(fields))
	for name, d := range fields {
		c := *d
		clone[name] = &c
	}
	return clone
}

// pruneReadings drops readings older than cutoff, keeping at least the latest
func pruneReadings(readings Readings, cutoff time.Time) Readings {
	if len(readings) == 0 {
		return readings
	}
	kept := make(Readings, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, readings[len(readings)-1])
	}
	return kept
}

// planStats accumulates readings for every plan field
type planStats struct {
	fields   map[string]*FieldData
	readings map[string]Readings
}

func newPlanStats() *planStats {
	return &planStats{
		fields:   make(map[string]*FieldData),
		readings: make(map[string]Readings),
	}
}

func (s *planStats) add(p planner.Plan, now time.Time) {
	for name, value := range planFields(p) {
		data, ok := s.fields[name]
		if !ok {
			data = &FieldData{}
			s.fields[name] = data
		}
		data.Current = value
		s.readings[name] = append(s.readings[name], Reading{Value: value, Timestamp: now})
		calculateStats(data, s.readings[name], now)
	}
}

func (s *planStats) prune(cutoff time.Time) {
	for name, readings := range s.readings {
		s.readings[name] = pruneReadings(readings, cutoff)
	}
}

// planStatsWorker keeps rolling statistics of published plans and sends
// them on at most once a second.
func planStatsWorker(ctx context.Context, planChan <-chan planner.Plan, outputChan chan<- DisplayData) {
	stats := newPlanStats()

	var lastSendTime time.Time
	var debounceTimer *time.Timer
	var debounceTimerC <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	send := func() bool {
		select {
		case outputChan <- DisplayData{Fields: cloneFields(stats.fields)}:
			lastSendTime = time.Now()
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case p := <-planChan:
			stats.add(p, time.Now())

			sinceLastSend := time.Since(lastSendTime)
			if sinceLastSend >= time.Second {
				if !send() {
					return
				}
			} else if debounceTimer == nil {
				debounceTimer = time.NewTimer(time.Second - sinceLastSend)
				debounceTimerC = debounceTimer.C
			}

		case <-debounceTimerC:
			debounceTimer = nil
			debounceTimerC = nil
			if !send() {
				return
			}

		case <-cleanupTicker.C:
			stats.prune(time.Now().Add(-15 * time.Minute))

		case <-ctx.Done():
			return
		}
	}
}
