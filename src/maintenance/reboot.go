package maintenance

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"

	"github.com/ryansname/drivectl/src/params"
)

// Updater state keys in the persistent store
const (
	KeyUpdaterFetchAvailable = "UpdaterFetchAvailable"
	KeyUpdateAvailable       = "UpdateAvailable"
	KeyUpdaterState          = "UpdaterState"
)

// UpdaterStatus is what the updater process last reported
type UpdaterStatus struct {
	FetchAvailable bool
	UpdateReady    bool
	Idle           bool
}

func ReadUpdaterStatus(ctx context.Context, store params.Store) (UpdaterStatus, error) {
	var s UpdaterStatus
	var err error

	if s.FetchAvailable, err = store.GetBool(ctx, KeyUpdaterFetchAvailable); err != nil {
		return s, err
	}
	if s.UpdateReady, err = store.GetBool(ctx, KeyUpdateAvailable); err != nil {
		return s, err
	}
	state, _, err := store.Get(ctx, KeyUpdaterState)
	if err != nil {
		return s, err
	}
	s.Idle = state == "idle"
	return s, nil
}

// Signal is a signal name understood by pkill
type Signal string

const (
	// SoftRestart asks the updater to check for an update
	SoftRestart Signal = "SIGUSR1"
	// HardRestart asks the updater to fetch and apply
	HardRestart Signal = "SIGHUP"
)

// Signaler delivers a signal to the updater process
type Signaler interface {
	Signal(ctx context.Context, sig Signal) error
}

// Rebooter restarts the device
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// ExecSignaler signals every process whose command line matches Pattern
type ExecSignaler struct {
	Pattern string
}

func (s ExecSignaler) Signal(ctx context.Context, sig Signal) error {
	cmd := exec.CommandContext(ctx, "pkill", "-"+string(sig), "-f", s.Pattern)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pkill -%s %s: %w", sig, s.Pattern, err)
	}
	return nil
}

// CommandRebooter runs an external command to reboot
type CommandRebooter struct {
	Command []string
}

func (r CommandRebooter) Reboot(ctx context.Context) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("no reboot command configured")
	}
	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}

// RebootSequencer nudges the updater and reboots once an update is staged.
// Its waits are long, so it only ever runs inside a background task.
type RebootSequencer struct {
	Signaler Signaler
	Rebooter Rebooter
	Sleep    func(time.Duration)

	SoftDelay time.Duration // between the soft and hard signals
	HardDelay time.Duration // between the hard signal and the reboot
}

func NewRebootSequencer(signaler Signaler, rebooter Rebooter) *RebootSequencer {
	return &RebootSequencer{
		Signaler:  signaler,
		Rebooter:  rebooter,
		Sleep:     time.Sleep,
		SoftDelay: 30 * time.Second,
		HardDelay: 300 * time.Second,
	}
}

// Run acts on the updater status:
// a ready update while parked signals soft, then hard, then reboots;
// an available fetch signals soft then hard; an idle updater gets a soft signal.
func (r *RebootSequencer) Run(ctx context.Context, started bool, status UpdaterStatus) {
	switch {
	case status.UpdateReady && !started:
		log.Println("Update ready, restarting updater and rebooting")
		r.signal(ctx, SoftRestart)
		r.Sleep(r.SoftDelay)
		r.signal(ctx, HardRestart)
		r.Sleep(r.HardDelay)
		if err := r.Rebooter.Reboot(ctx); err != nil {
			log.Printf("Failed to reboot: %v\n", err)
		}
	case status.FetchAvailable:
		log.Println("Update available, asking updater to fetch")
		r.signal(ctx, SoftRestart)
		r.Sleep(r.SoftDelay)
		r.signal(ctx, HardRestart)
	case status.Idle:
		r.signal(ctx, SoftRestart)
	}
}

func (r *RebootSequencer) signal(ctx context.Context, sig Signal) {
	if err := r.Signaler.Signal(ctx, sig); err != nil {
		log.Printf("Failed to signal updater: %v\n", err)
	}
}
