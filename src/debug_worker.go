package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/tasks"
)

// fieldWatch is one column of the debug table: a plan field, either its
// current value or a percentile over a trailing window.
type fieldWatch struct {
	Field      string
	Minutes    int // 0 = current value
	Percentile int
}

func (w fieldWatch) current() bool {
	return w.Minutes == 0
}

// label is the column header, unique per watch
func (w fieldWatch) label() string {
	if w.current() {
		return w.Field
	}
	return fmt.Sprintf("%s %dm p%d", w.Field, w.Minutes, w.Percentile)
}

// at returns the value for a 1, 5 or 15 minute window
func (tw TimeWindows) at(minutes int) float64 {
	switch minutes {
	case 1:
		return tw._1
	case 5:
		return tw._5
	default:
		return tw._15
	}
}

// value renders the watched value, "-" when the field has not been seen
func (w fieldWatch) value(data DisplayData) string {
	fd, ok := data.Fields[w.Field]
	if !ok {
		return "-"
	}
	if w.current() {
		return formatDebugValue(fd.Current)
	}

	percentiles := map[int]TimeWindows{1: fd.P1, 50: fd.P50, 66: fd.P66, 99: fd.P99}
	return formatDebugValue(percentiles[w.Percentile].at(w.Minutes))
}

func formatDebugValue(v float64) string {
	if v >= 100 || v <= -100 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Allowed values of the watch options
var watchOptions = map[string][]int{
	"-m": {1, 5, 15},
	"-p": {1, 50, 66, 99},
}

// parseWatch parses "<field> [-m <1|5|15>] [-p <1|50|66|99>]". A window
// without a percentile is the median; a percentile without a window covers
// 15 minutes.
func parseWatch(args []string) (fieldWatch, error) {
	if len(args) == 0 {
		return fieldWatch{}, errors.New("missing field name")
	}
	w := fieldWatch{Field: args[0]}

	for rest := args[1:]; len(rest) > 0; rest = rest[2:] {
		allowed, ok := watchOptions[rest[0]]
		if !ok {
			return fieldWatch{}, fmt.Errorf("unknown option: %s", rest[0])
		}
		if len(rest) < 2 {
			return fieldWatch{}, fmt.Errorf("%s needs one of %v", rest[0], allowed)
		}
		v, err := strconv.Atoi(rest[1])
		if err != nil || !slices.Contains(allowed, v) {
			return fieldWatch{}, fmt.Errorf("%s must be one of %v", rest[0], allowed)
		}
		if rest[0] == "-m" {
			w.Minutes = v
		} else {
			w.Percentile = v
		}
	}

	switch {
	case w.Minutes > 0 && w.Percentile == 0:
		w.Percentile = 50
	case w.Percentile > 0 && w.Minutes == 0:
		w.Minutes = 15
	}
	return w, nil
}

const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m"
)

// debugSession is the state behind the debug prompt: the watched plan
// fields plus handles on the task registry and both stores.
type debugSession struct {
	registry *tasks.Registry
	memory   params.Store // written like a drivectl/memory/<key> message
	params   params.Store
	println  func(string)

	watches []fieldWatch
	widths  []int
	prev    []string
	header  bool
	latest  *DisplayData
}

func newDebugSession(registry *tasks.Registry, memory, persistent params.Store) *debugSession {
	return &debugSession{
		registry: registry,
		memory:   memory,
		params:   persistent,
		println:  func(line string) { fmt.Println(line) },
	}
}

func (s *debugSession) printf(format string, args ...any) {
	s.println(fmt.Sprintf(format, args...))
}

// watchesChanged forces a new header on the next row
func (s *debugSession) watchesChanged() {
	sort.Slice(s.watches, func(i, j int) bool {
		return s.watches[i].label() < s.watches[j].label()
	})
	s.header = false
}

func (s *debugSession) addWatch(w fieldWatch) error {
	if slices.Contains(s.watches, w) {
		return fmt.Errorf("already watching %s", w.label())
	}
	s.watches = append(s.watches, w)
	s.watchesChanged()
	log.Printf("Watching: %s", w.label())
	return nil
}

// removeWatch removes w. With exact false, a bare field name removes its
// current-value watch, or its only watch when there is just one.
func (s *debugSession) removeWatch(w fieldWatch, exact bool) error {
	i := slices.Index(s.watches, w)
	if i < 0 && !exact {
		var matches []int
		for j, candidate := range s.watches {
			if candidate.Field == w.Field {
				matches = append(matches, j)
			}
		}
		if len(matches) > 1 {
			return fmt.Errorf("%d watches on %s, give -m/-p to pick one", len(matches), w.Field)
		}
		if len(matches) == 1 {
			i = matches[0]
		}
	}
	if i < 0 {
		return fmt.Errorf("no watch found for %s", w.label())
	}

	log.Printf("Unwatched: %s", s.watches[i].label())
	s.watches = slices.Delete(s.watches, i, i+1)
	s.watchesChanged()
	return nil
}

// update records data and prints a row when a watched value changed.
// Changed cells are highlighted.
func (s *debugSession) update(data DisplayData) {
	s.latest = &data
	if len(s.watches) == 0 {
		return
	}

	if !s.header {
		s.widths = make([]int, len(s.watches))
		labels := make([]string, len(s.watches))
		for i, w := range s.watches {
			labels[i] = w.label()
			s.widths[i] = len(labels[i])
		}
		s.println(strings.Join(labels, " | "))
		s.prev = nil
		s.header = true
	}

	values := make([]string, len(s.watches))
	cells := make([]string, len(s.watches))
	changed := false
	for i, w := range s.watches {
		values[i] = w.value(data)
		s.widths[i] = max(s.widths[i], len(values[i]))
		cells[i] = fmt.Sprintf("%*s", s.widths[i], values[i])
		if s.prev == nil || s.prev[i] != values[i] {
			cells[i] = ansiYellow + cells[i] + ansiReset
			changed = true
		}
	}

	if changed {
		s.println(strings.Join(cells, " | "))
		s.prev = values
	}
}

type debugCommand struct {
	name  string
	usage string
	run   func(s *debugSession, ctx context.Context, args []string) error
}

var debugCommands = []debugCommand{
	{"list", "list                          plan fields seen so far", (*debugSession).cmdList},
	{"watch", "watch <field> [-m N] [-p N]   add a column (-m 1|5|15, -p 1|50|66|99)", (*debugSession).cmdWatch},
	{"unwatch", "unwatch <field> [-m N] [-p N] | --all", (*debugSession).cmdUnwatch},
	{"tasks", "tasks                         background tasks and whether they run", (*debugSession).cmdTasks},
	{"flag", "flag <key> [value|--clear]    show or set an ephemeral flag", (*debugSession).cmdFlag},
	{"toggles", "toggles                       stored toggles as the planner decodes them", (*debugSession).cmdToggles},
}

// handle runs one command line
func (s *debugSession) handle(ctx context.Context, line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	if args[0] == "help" {
		for _, c := range debugCommands {
			s.printf("  %s", c.usage)
		}
		return
	}

	for _, c := range debugCommands {
		if c.name == args[0] {
			if err := c.run(s, ctx, args[1:]); err != nil {
				log.Printf("%s: %v", c.name, err)
			}
			return
		}
	}
	log.Printf("Unknown command: %s (try 'help')", args[0])
}

func (s *debugSession) cmdList(context.Context, []string) error {
	if s.latest == nil {
		return errors.New("no plans received yet")
	}
	fields := make([]string, 0, len(s.latest.Fields))
	for field := range s.latest.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	s.printf("Plan fields (%d): %s", len(fields), strings.Join(fields, ", "))
	return nil
}

func (s *debugSession) cmdWatch(_ context.Context, args []string) error {
	w, err := parseWatch(args)
	if err != nil {
		return err
	}
	return s.addWatch(w)
}

func (s *debugSession) cmdUnwatch(_ context.Context, args []string) error {
	if len(args) == 1 && args[0] == "--all" {
		s.watches = nil
		s.watchesChanged()
		log.Println("All watches removed")
		return nil
	}
	w, err := parseWatch(args)
	if err != nil {
		return err
	}
	return s.removeWatch(w, len(args) > 1)
}

func (s *debugSession) cmdTasks(context.Context, []string) error {
	for _, name := range tasks.Names {
		state := "idle"
		if s.registry.Running(name) {
			state = "running"
		}
		s.printf("%-20s %s", name, state)
	}
	return nil
}

func (s *debugSession) cmdFlag(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: flag <key> [value|--clear]")
	}
	key := args[0]

	if len(args) == 1 {
		value, ok, err := s.memory.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			s.printf("%s is not set", key)
			return nil
		}
		s.printf("%s = %s", key, value)
		return nil
	}

	value := args[1]
	if value == "--clear" {
		value = ""
	}
	applyMemoryFlag(ctx, s.memory, SensorMessage{Topic: TopicMemoryPrefix + key, Payload: []byte(value)})
	return nil
}

func (s *debugSession) cmdToggles(ctx context.Context, _ []string) error {
	t, err := loadToggles(ctx, s.params)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(out), "\n") {
		s.println(line)
	}
	return nil
}

// readlineWriter keeps log output from overwriting the prompt
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (int, error) {
	if w.rl == nil {
		return os.Stderr.Write(p)
	}
	w.rl.Clean()
	defer w.rl.Refresh()
	return os.Stderr.Write(p)
}

// historyFile is where the prompt keeps its history, empty when there is no cache dir
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "drivectl")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "debug_history")
}

// debugWorker runs an interactive prompt over the plan statistics and the
// daemon's tasks and flags. Ctrl+C at the prompt shuts the daemon down.
func debugWorker(ctx context.Context, cancel context.CancelFunc, dataChan <-chan DisplayData, session *debugSession) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: historyFile(),
	})
	if err != nil {
		log.Printf("Debug worker: readline init failed: %v", err)
		return
	}
	defer func() { _ = rl.Close() }()

	writer := &readlineWriter{rl: rl}
	log.SetOutput(writer)
	defer log.SetOutput(os.Stderr)

	session.println = func(line string) {
		rl.Clean()
		fmt.Println(line)
		rl.Refresh()
	}

	log.Println("Debug worker started (type 'help' for commands)")

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				cancel()
				return
			}
			if err != nil {
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			session.handle(ctx, line)
		case data := <-dataChan:
			session.update(data)
		case <-ctx.Done():
			log.Println("Debug worker stopped")
			return
		}
	}
}
