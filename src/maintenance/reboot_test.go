package maintenance

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/drivectl/src/params"
)

type fakeSignaler struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeSignaler) add(e string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeSignaler) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.events)
}

func (f *fakeSignaler) Signal(_ context.Context, sig Signal) error {
	f.add("signal " + string(sig))
	return nil
}

func (f *fakeSignaler) Reboot(context.Context) error {
	f.add("reboot")
	return nil
}

func TestRebootSequencer(t *testing.T) {
	tests := []struct {
		name     string
		started  bool
		status   UpdaterStatus
		expected []string
	}{
		{
			name:   "update ready while parked",
			status: UpdaterStatus{UpdateReady: true, FetchAvailable: true, Idle: true},
			expected: []string{
				"signal SIGUSR1", "sleep 30s", "signal SIGHUP", "sleep 5m0s", "reboot",
			},
		},
		{
			name:     "update ready while driving falls through to fetch",
			started:  true,
			status:   UpdaterStatus{UpdateReady: true, FetchAvailable: true},
			expected: []string{"signal SIGUSR1", "sleep 30s", "signal SIGHUP"},
		},
		{
			name:     "fetch available",
			status:   UpdaterStatus{FetchAvailable: true},
			expected: []string{"signal SIGUSR1", "sleep 30s", "signal SIGHUP"},
		},
		{
			name:     "idle",
			status:   UpdaterStatus{Idle: true},
			expected: []string{"signal SIGUSR1"},
		},
		{
			name:     "busy updater",
			status:   UpdaterStatus{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSignaler{}
			r := NewRebootSequencer(f, f)
			r.Sleep = func(d time.Duration) { f.add("sleep " + d.String()) }

			r.Run(context.Background(), tt.started, tt.status)
			assert.Equal(t, tt.expected, f.recorded())
		})
	}
}

func TestReadUpdaterStatus(t *testing.T) {
	ctx := context.Background()
	store := params.NewMemoryStore()

	s, err := ReadUpdaterStatus(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, UpdaterStatus{}, s)

	require.NoError(t, store.PutBool(ctx, KeyUpdateAvailable, true))
	require.NoError(t, store.Put(ctx, KeyUpdaterState, "idle"))
	s, err = ReadUpdaterStatus(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, UpdaterStatus{UpdateReady: true, Idle: true}, s)
}

func TestCommandRebooter_NoCommand(t *testing.T) {
	assert.Error(t, CommandRebooter{}.Reboot(context.Background()))
}
