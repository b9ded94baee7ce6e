// Package tasks runs named background jobs with at most one execution per name.
//
// A Registry owns, for every task name, a mutex and the handle of the most
// recently launched execution. Dispatch never blocks the caller: if the last
// execution is still running, or someone else holds the name's mutex, the
// dispatch is dropped.
package tasks

import (
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ryansname/drivectl/src/metrics"
)

// Task names dispatched by the daemon
const (
	BackupToggles     = "backup_toggles"
	DownloadAllModels = "download_all_models"
	DownloadModel     = "download_model"
	DownloadTheme     = "download_theme"
	TogglesUpdate     = "toggle_updates"
	UpdateActiveTheme = "update_active_theme"
	UpdateChecks      = "update_checks"
	UpdateModels      = "update_models"
	UpdateThemes      = "update_themes"
)

// Names lists every task name above
var Names = []string{
	BackupToggles,
	DownloadAllModels,
	DownloadModel,
	DownloadTheme,
	TogglesUpdate,
	UpdateActiveTheme,
	UpdateChecks,
	UpdateModels,
	UpdateThemes,
}

// Dispatch outcomes, used as metric labels
const (
	outcomeLaunched = "launched"
	outcomeRunning  = "running"
	outcomeLocked   = "locked"
)

// Handle tracks one launched execution
type Handle struct {
	ID      string
	Name    string
	Started time.Time

	done chan struct{}
}

// Wait blocks until the execution returns (or panics)
func (h *Handle) Wait() {
	<-h.done
}

// Done is closed when the execution finishes
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Running reports whether the execution is still in flight
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

type entry struct {
	mu   sync.Mutex
	last atomic.Pointer[Handle]
}

// Registry maps task names to their mutex and last handle.
// Entries are created on first use and never removed.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) entry(name string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		e = &entry{}
		r.entries[name] = e
	}
	return e
}

// Dispatch launches job under name unless an execution is already in flight.
// The returned handle is the one now running; launched is false when the call
// was dropped. The name's mutex only covers the launch decision.
func (r *Registry) Dispatch(name string, job func()) (h *Handle, launched bool) {
	e := r.entry(name)
	if !e.mu.TryLock() {
		metrics.TaskDispatches.WithLabelValues(name, outcomeLocked).Inc()
		return nil, false
	}
	defer e.mu.Unlock()

	if last := e.last.Load(); last != nil && last.Running() {
		metrics.TaskDispatches.WithLabelValues(name, outcomeRunning).Inc()
		return last, false
	}

	h = &Handle{
		ID:      uuid.NewString(),
		Name:    name,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
	e.last.Store(h)
	metrics.TaskDispatches.WithLabelValues(name, outcomeLaunched).Inc()
	metrics.TasksRunning.WithLabelValues(name).Inc()

	go run(h, job)
	return h, true
}

// Do runs fn synchronously while holding name's mutex, so a Dispatch of the
// same name is dropped meanwhile. Used to serialise refresh work from inside
// other jobs.
func (r *Registry) Do(name string, fn func()) {
	e := r.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Running reports whether the last execution under name is still in flight
func (r *Registry) Running(name string) bool {
	last := r.entry(name).last.Load()
	return last != nil && last.Running()
}

func run(h *Handle, job func()) {
	defer func() {
		if p := recover(); p != nil {
			metrics.TaskPanics.WithLabelValues(h.Name).Inc()
			log.Printf("Panic in task %s (%s): %v\n%s\n", h.Name, h.ID, p, debug.Stack())
		}
		metrics.TasksRunning.WithLabelValues(h.Name).Dec()
		close(h.done)
	}()

	job()
}
