package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/tasks"
	"github.com/ryansname/drivectl/src/toggles"
)

func TestParseWatch(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected fieldWatch
		wantErr  bool
	}{
		{"current value", []string{"tFollow"}, fieldWatch{Field: "tFollow"}, false},
		{"window defaults to p50", []string{"jerk", "-m", "5"}, fieldWatch{Field: "jerk", Minutes: 5, Percentile: 50}, false},
		{"percentile defaults to 15m", []string{"jerk", "-p", "99"}, fieldWatch{Field: "jerk", Minutes: 15, Percentile: 99}, false},
		{"both", []string{"vCruise", "-m", "1", "-p", "1"}, fieldWatch{Field: "vCruise", Minutes: 1, Percentile: 1}, false},
		{"no field", nil, fieldWatch{}, true},
		{"bad window", []string{"jerk", "-m", "2"}, fieldWatch{}, true},
		{"missing percentile", []string{"jerk", "-p"}, fieldWatch{}, true},
		{"unknown option", []string{"jerk", "-x", "1"}, fieldWatch{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := parseWatch(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, w)
		})
	}
}

func TestFieldWatch_Value(t *testing.T) {
	data := DisplayData{Fields: map[string]*FieldData{
		"tFollow": {
			Current: 1.25,
			P50:     TimeWindows{_1: 1.3, _5: 1.35, _15: 1.4},
			P99:     TimeWindows{_1: 1.45, _5: 1.45, _15: 1.45},
		},
		"desiredFollowDistance": {Current: 120},
	}}

	assert.Equal(t, "1.25", fieldWatch{Field: "tFollow"}.value(data))
	assert.Equal(t, "1.35", fieldWatch{Field: "tFollow", Minutes: 5, Percentile: 50}.value(data))
	assert.Equal(t, "1.45", fieldWatch{Field: "tFollow", Minutes: 15, Percentile: 99}.value(data))
	assert.Equal(t, "120", fieldWatch{Field: "desiredFollowDistance"}.value(data))
	assert.Equal(t, "-", fieldWatch{Field: "missing"}.value(data))
}

// testSession captures printed lines
func testSession(t *testing.T) (*debugSession, *[]string) {
	t.Helper()
	s := newDebugSession(tasks.NewRegistry(), params.NewMemoryStore(), params.NewMemoryStore())
	var out []string
	s.println = func(line string) { out = append(out, line) }
	return s, &out
}

func TestDebugSession_WatchAndUnwatch(t *testing.T) {
	ctx := context.Background()
	s, _ := testSession(t)

	s.handle(ctx, "watch vCruise")
	s.handle(ctx, "watch jerk")
	s.handle(ctx, "watch jerk -m 5")
	s.handle(ctx, "watch jerk")
	require.Len(t, s.watches, 3, "duplicate ignored")
	assert.Equal(t, "jerk", s.watches[0].label(), "sorted by column label")

	s.handle(ctx, "unwatch tFollow -m 5")
	assert.Len(t, s.watches, 3, "no such watch")

	s.handle(ctx, "unwatch jerk -m 5")
	assert.Len(t, s.watches, 2)

	s.handle(ctx, "unwatch vCruise")
	s.handle(ctx, "unwatch jerk")
	assert.Empty(t, s.watches)
}

func TestDebugSession_UnwatchBareField(t *testing.T) {
	s, _ := testSession(t)

	require.NoError(t, s.addWatch(fieldWatch{Field: "jerk", Minutes: 5, Percentile: 50}))
	require.NoError(t, s.addWatch(fieldWatch{Field: "jerk", Minutes: 15, Percentile: 99}))
	assert.Error(t, s.removeWatch(fieldWatch{Field: "jerk"}, false), "ambiguous")

	require.NoError(t, s.removeWatch(fieldWatch{Field: "jerk", Minutes: 15, Percentile: 99}, true))
	require.NoError(t, s.removeWatch(fieldWatch{Field: "jerk"}, false), "single remaining match")
	assert.Empty(t, s.watches)

	s.handle(context.Background(), "watch tFollow")
	s.handle(context.Background(), "watch jerk -p 66")
	s.handle(context.Background(), "unwatch --all")
	assert.Empty(t, s.watches)
}

func TestDebugSession_UpdatePrintsChangedRows(t *testing.T) {
	s, out := testSession(t)
	require.NoError(t, s.addWatch(fieldWatch{Field: "tFollow"}))

	data := func(v float64) DisplayData {
		return DisplayData{Fields: map[string]*FieldData{"tFollow": {Current: v}}}
	}

	s.update(data(1.25))
	s.update(data(1.25))
	s.update(data(1.3))

	require.Len(t, *out, 3, "header, first row, changed row")
	assert.Equal(t, "tFollow", (*out)[0])
	assert.Contains(t, (*out)[1], "1.25")
	assert.Contains(t, (*out)[2], "1.30")
	assert.Contains(t, (*out)[2], ansiYellow)
}

func TestDebugSession_List(t *testing.T) {
	s, out := testSession(t)

	s.handle(context.Background(), "list")
	assert.Empty(t, *out, "nothing before the first plan")

	s.update(DisplayData{Fields: map[string]*FieldData{"vCruise": {}, "jerk": {}}})
	s.handle(context.Background(), "list")
	require.Len(t, *out, 1)
	assert.Equal(t, "Plan fields (2): jerk, vCruise", (*out)[0])
}

func TestDebugSession_Tasks(t *testing.T) {
	s, out := testSession(t)

	release := make(chan struct{})
	h, ok := s.registry.Dispatch(tasks.UpdateChecks, func() { <-release })
	require.True(t, ok)
	t.Cleanup(func() {
		close(release)
		h.Wait()
	})

	s.handle(context.Background(), "tasks")
	require.Len(t, *out, len(tasks.Names))
	for _, line := range *out {
		fields := strings.Fields(line)
		require.Len(t, fields, 2)
		if fields[0] == tasks.UpdateChecks {
			assert.Equal(t, "running", fields[1])
		} else {
			assert.Equal(t, "idle", fields[1], fields[0])
		}
	}
}

func TestDebugSession_Flag(t *testing.T) {
	ctx := context.Background()
	s, out := testSession(t)

	s.handle(ctx, "flag ManualUpdateInitiated 1")
	set, err := s.memory.GetBool(ctx, "ManualUpdateInitiated")
	require.NoError(t, err)
	assert.True(t, set)

	s.handle(ctx, "flag ManualUpdateInitiated")
	assert.Equal(t, []string{"ManualUpdateInitiated = 1"}, *out)

	s.handle(ctx, "flag ManualUpdateInitiated --clear")
	_, ok, _ := s.memory.Get(ctx, "ManualUpdateInitiated")
	assert.False(t, ok)

	s.handle(ctx, "flag a/b 1")
	_, ok, _ = s.memory.Get(ctx, "a/b")
	assert.False(t, ok, "nested keys ignored")
}

func TestDebugSession_Toggles(t *testing.T) {
	ctx := context.Background()
	s, out := testSession(t)

	stored := toggles.Default()
	stored.StandardFollow = 1.7
	blob, err := stored.Encode()
	require.NoError(t, err)
	require.NoError(t, s.params.Put(ctx, toggles.StoreKey, string(blob)))

	s.handle(ctx, "toggles")
	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, `"standard_follow": 1.7`)

	got, err := toggles.Decode([]byte(joined))
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}
