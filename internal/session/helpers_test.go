package session

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/surprise-core/internal/command"
	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

// fakeClock is a manual clock. Timers fire only from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer

	// ignoreStop makes Stop report success without cancelling, emulating a
	// callback that was already running when it was cancelled.
	ignoreStop bool
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{c: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	if !t.c.ignoreStop {
		t.stopped = true
	}
	return true
}

// Advance moves time forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.fired && !t.stopped && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].seq < due[j].seq
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// maxRand always returns the largest value, so uniform draws hit their
// upper bound, extension and tease rolls fail, and Shuffle is the identity.
type maxRand struct{}

func (maxRand) IntN(n int) int { return n - 1 }

// scriptRand returns scripted values in order, then falls back to maxRand.
type scriptRand struct {
	mu     sync.Mutex
	values []int
}

func (r *scriptRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return n - 1
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

type mockQueue struct {
	mu   sync.Mutex
	cmds []command.Command
}

func (q *mockQueue) Enqueue(cmd command.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cmds = append(q.cmds, cmd)
}

// Take returns and clears the recorded commands.
func (q *mockQueue) Take() []command.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds := q.cmds
	q.cmds = nil
	return cmds
}

type fixedMA int

func (m fixedMA) RandomMA() int { return int(m) }

type mockNotifier struct {
	mu     sync.Mutex
	fields map[string][]string
}

func (n *mockNotifier) Publish(field, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fields == nil {
		n.fields = make(map[string][]string)
	}
	n.fields[field] = append(n.fields[field], value)
}

func (n *mockNotifier) Last(field string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.fields[field]
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

type mockCues struct {
	mu    sync.Mutex
	names []string
}

func (c *mockCues) Play(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
}

func (c *mockCues) Take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.names
	c.names = nil
	return n
}

type mockRecorder struct {
	mu        sync.Mutex
	intervals []IntervalRecord
	sessions  []SessionRecord
}

func (r *mockRecorder) RecordInterval(rec IntervalRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intervals = append(r.intervals, rec)
}

func (r *mockRecorder) RecordSession(rec SessionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, rec)
}

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		FailsafeStart:     900 * time.Second,
		MaxSession:        2 * time.Hour,
		DelayMin:          15,
		StartSleepMax:     180,
		OnMax:             180,
		OffMax:            120,
		AddOnPercent:      25,
		AddOffPercent:     18,
		TeasePercent:      20,
		KeepaliveInterval: 15 * time.Minute,
		PowerTiers:        []string{"on_low", "on_low", "on_norm", "on_norm", "on_max", "on_max_plus"},
		Modes:             []string{"waves", "intense", "random", "throb", "ramp", "ramp"},
		AdjustStep:        2,
		TimeScale:         1,
	}
}

type harness struct {
	c     *Controller
	clock *fakeClock
	queue *mockQueue
	notes *mockNotifier
	cues  *mockCues
	rec   *mockRecorder
}

func newHarness(t *testing.T, cfg config.SessionConfig, r Rand) *harness {
	t.Helper()
	h := &harness{
		clock: newFakeClock(),
		queue: &mockQueue{},
		notes: &mockNotifier{},
		cues:  &mockCues{},
		rec:   &mockRecorder{},
	}
	c, err := New(Options{
		Config:    cfg,
		Queue:     h.queue,
		Device:    fixedMA(7),
		Notifier:  h.notes,
		Cues:      h.cues,
		Recorders: []Recorder{h.rec},
		Clock:     h.clock,
		Rand:      r,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.c = c
	return h
}

func kinds(cmds []command.Command) []command.Kind {
	out := make([]command.Kind, len(cmds))
	for i, c := range cmds {
		out[i] = c.Kind
	}
	return out
}
