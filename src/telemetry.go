package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ryansname/drivectl/src/maintenance"
	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/planner"
)

// Bus topics. Every inbound payload is JSON.
const (
	TopicPrefix        = "drivectl/"
	TopicCarState      = TopicPrefix + "carState"
	TopicControlsState = TopicPrefix + "controlsState"
	TopicDeviceState   = TopicPrefix + "deviceState"
	TopicLiveLocation  = TopicPrefix + "liveLocation"
	TopicModelV2       = TopicPrefix + "modelV2"
	TopicRadarState    = TopicPrefix + "radarState"
	TopicNavigation    = TopicPrefix + "navigation"
	TopicToggles       = TopicPrefix + "toggles"

	// Retained flags for the ephemeral store, drivectl/memory/<key>. Empty payload removes the key.
	TopicMemoryPrefix = TopicPrefix + "memory/"

	TopicPlan         = TopicPrefix + "plan"
	TopicAssetsPrefix = TopicPrefix + "assets/"

	// Retained "online", replaced by the broker with "offline" when the daemon drops off
	TopicStatus = TopicPrefix + "status"
)

// telemetryTopics is the subscription list
var telemetryTopics = []string{
	TopicCarState,
	TopicControlsState,
	TopicDeviceState,
	TopicLiveLocation,
	TopicModelV2,
	TopicRadarState,
	TopicNavigation,
	TopicToggles,
	TopicMemoryPrefix + "#",
}

// freshnessWindow is how old carState and controlsState may be for a plan to be valid
const freshnessWindow = 500 * time.Millisecond

type carStateMsg struct {
	VEgo        float64 `json:"vEgo"`
	VEgoCluster float64 `json:"vEgoCluster"`
}

type controlsStateMsg struct {
	VCruise          float64             `json:"vCruise"` // km/h
	VCruiseCluster   float64             `json:"vCruiseCluster"`
	Personality      planner.Personality `json:"personality"`
	ExperimentalMode bool                `json:"experimentalMode"`
	Enabled          bool                `json:"enabled"`
}

type deviceStateMsg struct {
	Started                 bool `json:"started"`
	ScreenBrightnessPercent int  `json:"screenBrightnessPercent"`
}

type liveLocationMsg struct {
	GPSOK bool `json:"gpsOK"`
}

type xyz struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

type modelV2Msg struct {
	LaneLines    []planner.Line `json:"laneLines"`
	RoadEdges    []planner.Line `json:"roadEdges"`
	Velocity     xyz            `json:"velocity"`
	Acceleration xyz            `json:"acceleration"`
}

type radarStateMsg struct {
	LeadOne planner.Lead `json:"leadOne"`
}

type navigationMsg struct {
	SpeedLimit float64 `json:"speedLimit"` // m/s
}

// Frame is one control loop iteration's input
type Frame struct {
	Now      time.Time
	Snapshot planner.VehicleSnapshot
	Device   maintenance.Device
	// Updated holds the topics that arrived since the previous frame
	Updated map[string]bool
	// Valid reports fresh carState and controlsState
	Valid bool
	// Toggles is the latest toggles blob when it arrived since the previous frame
	Toggles []byte
}

// telemetry keeps the latest decoded message of every topic
type telemetry struct {
	car      carStateMsg
	controls controlsStateMsg
	device   deviceStateMsg
	location liveLocationMsg
	model    modelV2Msg
	radar    radarStateMsg
	nav      navigationMsg
	lastSeen map[string]time.Time
}

func newTelemetry() *telemetry {
	return &telemetry{
		controls: controlsStateMsg{Personality: planner.PersonalityStandard},
		lastSeen: make(map[string]time.Time),
	}
}

// apply decodes msg into the matching slot. A payload that fails to decode
// leaves the previous message in place.
func (t *telemetry) apply(msg SensorMessage, now time.Time) error {
	var err error
	switch msg.Topic {
	case TopicCarState:
		err = decodeFresh(msg.Payload, &t.car)
	case TopicControlsState:
		err = decodeFresh(msg.Payload, &t.controls)
	case TopicDeviceState:
		err = decodeFresh(msg.Payload, &t.device)
	case TopicLiveLocation:
		err = decodeFresh(msg.Payload, &t.location)
	case TopicModelV2:
		err = decodeFresh(msg.Payload, &t.model)
	case TopicRadarState:
		err = decodeFresh(msg.Payload, &t.radar)
	case TopicNavigation:
		err = decodeFresh(msg.Payload, &t.nav)
	case TopicToggles:
		// Decoded by the control cycle
	default:
		return fmt.Errorf("unexpected topic %s", msg.Topic)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", msg.Topic, err)
	}

	t.lastSeen[msg.Topic] = now
	return nil
}

// decodeFresh unmarshals onto a zero value so a bad payload cannot half-apply
func decodeFresh[T any](payload []byte, dst *T) error {
	var fresh T
	if err := json.Unmarshal(payload, &fresh); err != nil {
		return err
	}
	*dst = fresh
	return nil
}

func (t *telemetry) fresh(topic string, now time.Time) bool {
	seen, ok := t.lastSeen[topic]
	return ok && now.Sub(seen) <= freshnessWindow
}

func (t *telemetry) valid(now time.Time) bool {
	return t.fresh(TopicCarState, now) && t.fresh(TopicControlsState, now)
}

func (t *telemetry) snapshot() planner.VehicleSnapshot {
	s := planner.VehicleSnapshot{
		VEgo:           t.car.VEgo,
		VEgoCluster:    t.car.VEgoCluster,
		VCruise:        t.controls.VCruise,
		VCruiseCluster: t.controls.VCruiseCluster,
		Personality:    t.controls.Personality,
		Experimental:   t.controls.ExperimentalMode,
		Enabled:        t.controls.Enabled,
		Lead:           t.radar.LeadOne,
		GPSValid:       t.location.GPSOK,
		Trajectory: planner.Trajectory{
			VelocityX:     t.model.Velocity.X,
			AccelerationY: t.model.Acceleration.Y,
		},
		SpeedLimit: t.nav.SpeedLimit,
	}
	copy(s.LaneLines[:], t.model.LaneLines)
	copy(s.RoadEdges[:], t.model.RoadEdges)
	return s
}

func (t *telemetry) deviceState() maintenance.Device {
	return maintenance.Device{
		Started:   t.device.Started,
		ScreenOff: t.device.ScreenBrightnessPercent == 0,
	}
}

// applyMemoryFlag mirrors a retained drivectl/memory/<key> message into the ephemeral store
func applyMemoryFlag(ctx context.Context, memory params.Store, msg SensorMessage) {
	key := strings.TrimPrefix(msg.Topic, TopicMemoryPrefix)
	if key == "" || strings.Contains(key, "/") {
		log.Printf("Ignoring memory flag on %s\n", msg.Topic)
		return
	}

	var err error
	if len(msg.Payload) == 0 {
		err = memory.Remove(ctx, key)
	} else {
		err = memory.Put(ctx, key, string(msg.Payload))
	}
	if err != nil {
		log.Printf("Failed to set memory flag %s: %v\n", key, err)
	}
}

// telemetryWorker decodes bus messages and emits one Frame per loop
// iteration: when a model message arrives, or after pollTimeout without one.
func telemetryWorker(
	ctx context.Context,
	msgChan <-chan SensorMessage,
	frameChan chan<- Frame,
	memory params.Store,
	pollTimeout time.Duration,
) {
	log.Println("Telemetry worker started")

	t := newTelemetry()
	updated := make(map[string]bool)
	var togglesBlob []byte

	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-msgChan:
			if strings.HasPrefix(msg.Topic, TopicMemoryPrefix) {
				applyMemoryFlag(ctx, memory, msg)
				continue
			}

			if err := t.apply(msg, time.Now()); err != nil {
				log.Printf("Telemetry: %v\n", err)
				continue
			}
			updated[msg.Topic] = true
			if msg.Topic == TopicToggles {
				togglesBlob = msg.Payload
			}

			if msg.Topic != TopicModelV2 {
				continue
			}

		case <-timer.C:

		case <-ctx.Done():
			log.Println("Telemetry worker stopped")
			return
		}

		now := time.Now()
		frame := Frame{
			Now:      now,
			Snapshot: t.snapshot(),
			Device:   t.deviceState(),
			Updated:  updated,
			Valid:    t.valid(now),
			Toggles:  togglesBlob,
		}

		select {
		case frameChan <- frame:
		case <-ctx.Done():
			log.Println("Telemetry worker stopped")
			return
		}

		updated = make(map[string]bool)
		togglesBlob = nil
		timer.Reset(pollTimeout)
	}
}
