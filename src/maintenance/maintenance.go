// Package maintenance decides when background upkeep runs: asset requests,
// update checks, updater signalling and reboots, and offline map refreshes.
//
// Tick is called from the control loop and never blocks; everything slow
// happens in jobs launched through a tasks.Registry.
package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/tasks"
)

// KeyManualUpdate is set in the ephemeral store when the user asks for an update check
const KeyManualUpdate = "ManualUpdateInitiated"

// Device is the slice of device state the cadence depends on
type Device struct {
	Started   bool
	ScreenOff bool
}

// TimeValidator reports whether the wall clock can be trusted
type TimeValidator interface {
	Valid(now time.Time) bool
}

// MinDate treats any time before it as an unset clock
type MinDate time.Time

// DefaultMinDate is earlier than any build of this daemon
var DefaultMinDate = MinDate(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

func (d MinDate) Valid(now time.Time) bool {
	return now.After(time.Time(d))
}

// Deps are the collaborators of a Maintenance
type Deps struct {
	Tasks        *tasks.Registry
	Params       params.Store // persistent
	Memory       params.Store // ephemeral
	Assets       AssetManager
	Reachability *Reachability
	Reboot       *RebootSequencer
	Maps         *MapUpdater
	Clock        TimeValidator
	// Diagnostic devices check for updates every minute
	Diagnostic bool
}

// Maintenance holds the update-check cadence state. Tick must only be called
// from one goroutine.
type Maintenance struct {
	tasks        *tasks.Registry
	params       params.Store
	memory       params.Store
	assets       AssetManager
	reachability *Reachability
	reboot       *RebootSequencer
	maps         *MapUpdater
	clock        TimeValidator
	diagnostic   bool

	armed     bool
	timeValid bool
}

func New(d Deps) *Maintenance {
	return &Maintenance{
		tasks:        d.Tasks,
		params:       d.Params,
		memory:       d.Memory,
		assets:       d.Assets,
		reachability: d.Reachability,
		reboot:       d.Reboot,
		maps:         d.Maps,
		clock:        d.Clock,
		diagnostic:   d.Diagnostic,
	}
}

// TimeValid reports whether the clock has been confirmed since start
func (m *Maintenance) TimeValid() bool {
	return m.timeValid
}

// UpdateCheck is the snapshot an update_checks job runs with
type UpdateCheck struct {
	Now              time.Time
	Device           Device
	AutomaticUpdates bool
	TimeValid        bool
}

// Tick runs once per control loop iteration.
//
// A manual request dispatches an update check straight away. Otherwise the
// check is armed at the top of each minute when the device is parked with
// the screen on, on every quarter hour, or always on diagnostic devices, and
// dispatched on the following tick. Until the clock is confirmed valid a
// check is dispatched every tick; the tick that confirms it also refreshes
// models and themes.
func (m *Maintenance) Tick(ctx context.Context, now time.Time, dev Device, automaticUpdates bool) {
	m.CheckAssets(ctx)

	check := UpdateCheck{Now: now, Device: dev, AutomaticUpdates: automaticUpdates, TimeValid: m.timeValid}

	manual, _ := m.memory.GetBool(ctx, KeyManualUpdate)
	switch {
	case manual:
		check.AutomaticUpdates = false
		if m.dispatchUpdateChecks(ctx, check) {
			m.clear(ctx, KeyManualUpdate)
		}

	case now.Second() == 0:
		m.armed = (!dev.ScreenOff && !dev.Started) || now.Minute()%15 == 0 || m.diagnostic

	case m.armed || !m.timeValid:
		m.dispatchUpdateChecks(ctx, check)
		m.armed = false

		if !m.timeValid {
			m.timeValid = m.clock.Valid(now)
			if !m.timeValid {
				return
			}
			log.Println("System time validated")
			m.tasks.Dispatch(tasks.UpdateModels, func() { m.assets.UpdateModels(true) })
			m.tasks.Dispatch(tasks.UpdateThemes, func() { m.assets.UpdateThemes(true) })
		}

		m.assets.UpdateHoliday()
	}
}

func (m *Maintenance) dispatchUpdateChecks(ctx context.Context, check UpdateCheck) bool {
	jobCtx := context.WithoutCancel(ctx)
	_, launched := m.tasks.Dispatch(tasks.UpdateChecks, func() {
		m.UpdateChecks(jobCtx, check)
	})
	return launched
}

// UpdateChecks is the update_checks job. It needs the network, so it stops
// early when the reachability probe fails.
func (m *Maintenance) UpdateChecks(ctx context.Context, c UpdateCheck) {
	if !m.reachability.Check(ctx) {
		return
	}

	if c.AutomaticUpdates && c.Device.ScreenOff {
		status, err := ReadUpdaterStatus(ctx, m.params)
		if err != nil {
			log.Printf("Failed to read updater status: %v\n", err)
		} else {
			m.reboot.Run(ctx, c.Device.Started, status)
		}
	}

	if c.TimeValid {
		if _, err := m.maps.Update(ctx, c.Now); err != nil {
			log.Printf("Failed to update maps: %v\n", err)
		}
	}

	m.tasks.Do(tasks.UpdateModels, func() { m.assets.UpdateModels(false) })
	m.tasks.Do(tasks.UpdateThemes, func() { m.assets.UpdateThemes(false) })
}

// BackupJob returns the backup_toggles job for dst
func (m *Maintenance) BackupJob(ctx context.Context, dst params.Store) func() {
	jobCtx := context.WithoutCancel(ctx)
	return func() {
		if err := BackupToggles(jobCtx, m.params, dst, BackupKeys); err != nil {
			log.Printf("Failed to back up toggles: %v\n", err)
		}
	}
}
