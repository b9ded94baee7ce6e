package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ryansname/drivectl/src/maintenance"
	"github.com/ryansname/drivectl/src/metrics"
	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/planner"
	"github.com/ryansname/drivectl/src/tasks"
	"github.com/ryansname/drivectl/src/toggles"
)

// KeyTogglesUpdated is raised in the ephemeral store when the stored toggles change
const KeyTogglesUpdated = "DrivectlTogglesUpdated"

// cycleDriver runs the control loop body. Step is only called from one goroutine.
type cycleDriver struct {
	solver      planner.Solver
	longControl bool

	tasks   *tasks.Registry
	maint   *maintenance.Maintenance
	params  params.Store
	memory  params.Store
	backup  params.Store
	sender  *MQTTSender
	planOut chan<- planner.Plan // optional, for the debug view

	planner     *planner.Planner
	toggles     toggles.Toggles
	startedPrev bool
}

type cycleDeps struct {
	Solver      planner.Solver
	LongControl bool
	Tasks       *tasks.Registry
	Maintenance *maintenance.Maintenance
	Params      params.Store
	Memory      params.Store
	Backup      params.Store
	Sender      *MQTTSender
	PlanOut     chan<- planner.Plan
}

func newCycleDriver(d cycleDeps) *cycleDriver {
	return &cycleDriver{
		solver:      d.Solver,
		longControl: d.LongControl,
		tasks:       d.Tasks,
		maint:       d.Maintenance,
		params:      d.Params,
		memory:      d.Memory,
		backup:      d.Backup,
		sender:      d.Sender,
		planOut:     d.PlanOut,
		planner:     planner.New(d.Solver, d.LongControl),
		toggles:     toggles.Default(),
	}
}

// Step runs one loop iteration
func (d *cycleDriver) Step(ctx context.Context, f Frame) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	if updated, _ := d.memory.GetBool(ctx, KeyTogglesUpdated); updated {
		d.tasks.Dispatch(tasks.TogglesUpdate, d.toggleUpdatesJob(ctx, d.maint.TimeValid()))
	}

	if f.Toggles != nil {
		t, err := toggles.Decode(f.Toggles)
		if err != nil {
			log.Printf("Keeping previous toggles: %v\n", err)
		} else {
			d.toggles = t
		}
	}

	started := f.Device.Started
	if started != d.startedPrev {
		log.Printf("Started changed to %v, resetting planner\n", started)
		d.planner = planner.New(d.solver, d.longControl)
		metrics.PlannerResets.Inc()
	}
	d.startedPrev = started

	if started && f.Updated[TopicModelV2] {
		d.plan(f)
	}

	d.maint.Tick(ctx, f.Now, f.Device, d.toggles.AutomaticUpdates)
}

// plan derives and publishes one Plan. A failed derivation skips the cycle.
func (d *cycleDriver) plan(f Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in planner update: %v\n", r)
			metrics.CycleErrors.WithLabelValues("panic").Inc()
		}
	}()

	if err := d.planner.Update(f.Snapshot, d.toggles); err != nil {
		reason := "derivation"
		if errors.Is(err, planner.ErrNonFinite) {
			reason = "non_finite"
		}
		log.Printf("Skipping cycle: %v\n", err)
		metrics.CycleErrors.WithLabelValues(reason).Inc()
		return
	}

	p := d.planner.Plan(f.Valid)
	if err := d.sender.TryPublishJSON(TopicPlan, p, 0, false); err != nil {
		log.Printf("Failed to publish plan: %v\n", err)
		return
	}
	metrics.PlansPublished.Inc()

	if d.planOut != nil {
		select {
		case d.planOut <- p:
		default:
		}
	}
}

// toggleUpdatesJob is the toggle_updates job: publish the stored toggles,
// lower the flag, and back them up once the clock can be trusted.
func (d *cycleDriver) toggleUpdatesJob(ctx context.Context, timeValid bool) func() {
	jobCtx := context.WithoutCancel(ctx)
	return func() {
		if err := d.publishToggles(jobCtx); err != nil {
			log.Printf("Failed to publish toggles: %v\n", err)
			return
		}

		if err := d.memory.Remove(jobCtx, KeyTogglesUpdated); err != nil {
			log.Printf("Failed to clear %s: %v\n", KeyTogglesUpdated, err)
		}

		if timeValid && d.backup != nil {
			d.tasks.Dispatch(tasks.BackupToggles, d.maint.BackupJob(jobCtx, d.backup))
		}
	}
}

// publishToggles publishes the stored toggles retained on the toggles topic
func (d *cycleDriver) publishToggles(ctx context.Context) error {
	t, err := loadToggles(ctx, d.params)
	if err != nil {
		return err
	}
	return d.sender.PublishToggles(t)
}

// loadToggles decodes the stored blob, falling back to the defaults when none is stored
func loadToggles(ctx context.Context, store params.Store) (toggles.Toggles, error) {
	blob, ok, err := store.Get(ctx, toggles.StoreKey)
	if err != nil {
		return toggles.Toggles{}, err
	}
	if !ok {
		return toggles.Default(), nil
	}
	return toggles.Decode([]byte(blob))
}

// controlCycleWorker drives the cycle from frames
func controlCycleWorker(ctx context.Context, frameChan <-chan Frame, driver *cycleDriver) {
	log.Println("Control cycle worker started")

	for {
		select {
		case f := <-frameChan:
			driver.Step(ctx, f)

		case <-ctx.Done():
			log.Println("Control cycle worker stopped")
			return
		}
	}
}
