package maintenance

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/tasks"
)

type fakeAssets struct {
	mu  sync.Mutex
	log []string
}

func (a *fakeAssets) record(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = append(a.log, fmt.Sprintf(format, args...))
}

func (a *fakeAssets) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.log)
}

func (a *fakeAssets) has(call string) bool {
	return slices.Contains(a.calls(), call)
}

func (a *fakeAssets) DownloadAllModels()              { a.record("download_all_models") }
func (a *fakeAssets) DownloadModel(model string)      { a.record("download_model %s", model) }
func (a *fakeAssets) UpdateModels(boot bool)          { a.record("update_models %v", boot) }
func (a *fakeAssets) UpdateActiveTheme()              { a.record("update_active_theme") }
func (a *fakeAssets) DownloadTheme(kind, name string) { a.record("download_theme %s %s", kind, name) }
func (a *fakeAssets) UpdateThemes(boot bool)          { a.record("update_themes %v", boot) }
func (a *fakeAssets) UpdateHoliday()                  { a.record("update_holiday") }

type fakeClock struct {
	valid atomic.Bool
}

func (c *fakeClock) Valid(time.Time) bool { return c.valid.Load() }

type rig struct {
	m      *Maintenance
	tasks  *tasks.Registry
	params *params.MemoryStore
	memory *params.MemoryStore
	assets *fakeAssets
	clock  *fakeClock
	pings  *atomic.Int32
}

func newRig(t *testing.T, diagnostic bool) *rig {
	t.Helper()

	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
	}))
	t.Cleanup(srv.Close)

	r := &rig{
		tasks:  tasks.NewRegistry(),
		params: params.NewMemoryStore(),
		memory: params.NewMemoryStore(),
		assets: &fakeAssets{},
		clock:  &fakeClock{},
		pings:  &pings,
	}

	reach := NewReachability(srv.URL)
	reach.Interval = time.Millisecond

	r.m = New(Deps{
		Tasks:        r.tasks,
		Params:       r.params,
		Memory:       r.memory,
		Assets:       r.assets,
		Reachability: reach,
		Reboot:       NewRebootSequencer(&fakeSignaler{}, &fakeSignaler{}),
		Maps:         &MapUpdater{Params: r.params, Memory: r.memory, MapsDownloaded: func() bool { return false }},
		Clock:        r.clock,
		Diagnostic:   diagnostic,
	})
	return r
}

// idle waits for every job the tests dispatch to finish
func (r *rig) idle(t *testing.T) {
	t.Helper()
	names := []string{tasks.UpdateChecks, tasks.UpdateModels, tasks.UpdateThemes, tasks.DownloadAllModels,
		tasks.DownloadModel, tasks.UpdateActiveTheme, tasks.DownloadTheme}
	deadline := time.Now().Add(2 * time.Second)
	for _, name := range names {
		for r.tasks.Running(name) {
			if time.Now().After(deadline) {
				t.Fatalf("task %s still running", name)
			}
			time.Sleep(time.Millisecond)
		}
	}
}

func at(minute, second int) time.Time {
	return time.Date(2025, time.June, 4, 10, minute, second, 0, time.UTC)
}
