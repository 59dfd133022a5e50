package session

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/nerrad567/surprise-core/internal/command"
	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

type mockMetrics struct {
	mu          sync.Mutex
	transitions []string
	ended       []bool
}

func (m *mockMetrics) Transition(from, to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+">"+string(to))
}

func (m *mockMetrics) SessionEnded(forced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, forced)
}

func newSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// shortSessionConfig makes every draw deterministic under maxRand: a 1s
// start delay, 10s On and Off intervals and a 5s session limit.
func shortSessionConfig() config.SessionConfig {
	cfg := testSessionConfig()
	cfg.DelayMin = 1
	cfg.StartSleepMax = 1
	cfg.OnMax = 10
	cfg.OffMax = 10
	cfg.MaxSession = 5 * time.Second
	return cfg
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr error
	}{
		{name: "no queue", mutate: func(o *Options) { o.Queue = nil }},
		{name: "no device", mutate: func(o *Options) { o.Device = nil }},
		{name: "no modes", mutate: func(o *Options) { o.Config.Modes = nil }, wantErr: ErrInvalidConfig},
		{name: "no tiers", mutate: func(o *Options) { o.Config.PowerTiers = nil }, wantErr: ErrInvalidConfig},
		{name: "tier not a power tier", mutate: func(o *Options) { o.Config.PowerTiers = []string{"off"} }, wantErr: ErrInvalidConfig},
		{name: "unknown tier", mutate: func(o *Options) { o.Config.PowerTiers = []string{"on_hyper"} }, wantErr: ErrInvalidConfig},
		{name: "add percent 100", mutate: func(o *Options) { o.Config.AddOffPercent = 100 }, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{
				Config: testSessionConfig(),
				Queue:  &mockQueue{},
				Device: fixedMA(7),
				Rand:   maxRand{},
			}
			tt.mutate(&opts)
			_, err := New(opts)
			if err == nil {
				t.Fatal("New() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	for _, name := range []string{"up", "down", "left", "right", "middle", "activate", "start", "reset", "on", "off", "lock"} {
		a, err := ParseAction(name)
		if err != nil {
			t.Errorf("ParseAction(%q) error = %v", name, err)
		}
		if string(a) != name {
			t.Errorf("ParseAction(%q) = %q", name, a)
		}
	}
	if _, err := ParseAction("explode"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("ParseAction(explode) error = %v, want ErrUnknownAction", err)
	}
}

func TestController_StartAndKeepalive(t *testing.T) {
	cfg := testSessionConfig()
	cfg.KeepaliveInterval = 10 * time.Minute
	cfg.FailsafeStart = time.Hour
	h := newHarness(t, cfg, maxRand{})

	h.c.Start()
	want := []command.Command{
		command.Simple(command.KindRelease),
		command.Simple(command.KindReserve),
		command.Off(),
		command.SetMA(7),
		command.SetMode("ramp"),
	}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("startup commands mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{CueReady}, h.cues.Take()); diff != "" {
		t.Errorf("startup cues mismatch (-want +got):\n%s", diff)
	}

	// Second Start is a no-op.
	h.c.Start()
	if got := h.queue.Take(); len(got) != 0 {
		t.Errorf("second Start() enqueued %v", got)
	}

	h.clock.Advance(10 * time.Minute)
	want = []command.Command{command.SetMA(7), command.SetMode("waves")}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("keepalive commands mismatch (-want +got):\n%s", diff)
	}

	// Keepalive keeps running but stays quiet outside Idle.
	h.c.Activate()
	h.queue.Take()
	h.clock.Advance(10 * time.Minute)
	if got := h.queue.Take(); len(got) != 0 {
		t.Errorf("keepalive while Waiting enqueued %v", got)
	}

	h.c.EndSession()
	h.queue.Take()
	h.clock.Advance(10 * time.Minute)
	want = []command.Command{command.SetMA(7), command.SetMode("intense")}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("keepalive after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestController_Stop(t *testing.T) {
	h := newHarness(t, testSessionConfig(), maxRand{})
	h.c.Start()
	h.c.Activate()
	h.c.StartSession()
	h.queue.Take()

	h.c.Stop()
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", n)
	}
	if got := h.c.Dispatch(ActionReset); got != StateStarting {
		t.Errorf("Dispatch after Stop = %s, want unchanged Starting", got)
	}
	h.c.EndSession()
	if got := h.queue.Take(); len(got) != 0 {
		t.Errorf("actions after Stop enqueued %v", got)
	}
}

func TestController_FailsafeAutoStart(t *testing.T) {
	cfg := shortSessionConfig()
	cfg.MaxSession = time.Hour
	cfg.FailsafeStart = 500 * time.Millisecond
	h := newHarness(t, cfg, maxRand{})

	if got := h.c.Activate(); got != StateWaiting {
		t.Fatalf("Activate() = %s, want Waiting", got)
	}
	if diff := cmp.Diff([]command.Kind{command.KindOff}, kinds(h.queue.Take())); diff != "" {
		t.Errorf("activate commands mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{CueActivated}, h.cues.Take()); diff != "" {
		t.Errorf("activate cues mismatch (-want +got):\n%s", diff)
	}

	h.clock.Advance(400 * time.Millisecond)
	if got := h.c.State(); got != StateWaiting {
		t.Fatalf("State() at 0.4s = %s, want Waiting", got)
	}

	h.clock.Advance(200 * time.Millisecond)
	if got := h.c.State(); got != StateStarting {
		t.Fatalf("State() at 0.6s = %s, want Starting", got)
	}
	if got := h.notes.Last(FieldStatus); got != "Starting in 1 secs" {
		t.Errorf("status = %q, want %q", got, "Starting in 1 secs")
	}

	h.clock.Advance(time.Second)
	if got := h.c.State(); got != StateOn {
		t.Fatalf("State() after start delay = %s, want On", got)
	}
}

func TestController_StartCancelsFailsafe(t *testing.T) {
	h := newHarness(t, shortSessionConfig(), maxRand{})
	h.c.Activate()
	h.c.StartSession()

	// Reach On, then pass the original failsafe deadline.
	h.clock.Advance(time.Second)
	h.c.mu.Lock()
	failsafe := h.c.failsafe
	h.c.mu.Unlock()
	if failsafe != nil {
		t.Error("failsafe timer still armed after StartSession")
	}
	if got := h.c.State(); got != StateOn {
		t.Errorf("State() = %s, want On", got)
	}
}

func TestController_ForcedEndAtMaxSession(t *testing.T) {
	metrics := &mockMetrics{}
	h := newHarness(t, shortSessionConfig(), maxRand{})
	h.c.metrics = metrics

	h.c.Activate()
	h.c.StartSession()
	h.queue.Take()

	h.clock.Advance(time.Second)
	if got := h.c.State(); got != StateOn {
		t.Fatalf("State() at 1s = %s, want On", got)
	}
	if got := h.c.Summary().Planned; got != 10*time.Second {
		t.Fatalf("On interval = %v, want 10s", got)
	}
	h.queue.Take()

	h.clock.Advance(3 * time.Second)
	if got := h.c.State(); got != StateOn {
		t.Fatalf("State() at 4s = %s, want On", got)
	}

	h.clock.Advance(time.Second)
	if got := h.c.State(); got != StateIdle {
		t.Fatalf("State() at 5s = %s, want Idle", got)
	}
	want := []command.Command{command.Off(), command.SetMinimum(true)}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("forced end commands mismatch (-want +got):\n%s", diff)
	}

	// The natural Off transition never happens.
	h.clock.Advance(20 * time.Second)
	if got := h.c.State(); got != StateIdle {
		t.Errorf("State() after On deadline = %s, want Idle", got)
	}
	if got := h.queue.Take(); len(got) != 0 {
		t.Errorf("stale timers enqueued %v", got)
	}

	if len(h.rec.sessions) != 1 || !h.rec.sessions[0].Forced {
		t.Fatalf("sessions = %+v, want one forced session", h.rec.sessions)
	}
	if diff := cmp.Diff([]bool{true}, metrics.ended); diff != "" {
		t.Errorf("SessionEnded mismatch (-want +got):\n%s", diff)
	}
	wantTransitions := []string{"Idle>Waiting", "Waiting>Starting", "Starting>On", "On>Idle"}
	if diff := cmp.Diff(wantTransitions, metrics.transitions); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestController_OverrunAtIntervalBoundary(t *testing.T) {
	h := newHarness(t, shortSessionConfig(), maxRand{})
	h.c.Activate()
	h.c.StartSession()
	h.queue.Take()

	h.c.mu.Lock()
	h.c.sessionTotal = 6
	h.c.turnOn()
	h.c.mu.Unlock()

	if got := h.c.State(); got != StateIdle {
		t.Fatalf("State() = %s, want Idle", got)
	}
	if diff := cmp.Diff([]command.Kind{command.KindOff, command.KindSetMinimum}, kinds(h.queue.Take())); diff != "" {
		t.Errorf("overrun commands mismatch (-want +got):\n%s", diff)
	}
	if len(h.rec.sessions) != 1 || !h.rec.sessions[0].Forced {
		t.Errorf("sessions = %+v, want one forced session", h.rec.sessions)
	}
	if len(h.rec.intervals) != 0 {
		t.Errorf("intervals = %+v, want none drawn", h.rec.intervals)
	}
}

func TestController_OnOffCycle(t *testing.T) {
	h := newHarness(t, testSessionConfig(), maxRand{})
	h.c.Activate()
	h.c.StartSession()
	h.queue.Take()

	// Start delay is 180s, then a 180s On with one change point at 160s.
	h.clock.Advance(180 * time.Second)
	if got := h.c.State(); got != StateOn {
		t.Fatalf("State() = %s, want On", got)
	}
	want := []command.Command{
		command.SetMA(7),
		command.SetMode("ramp"),
		command.Simple(command.KindOnMaxPlus),
	}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("On commands mismatch (-want +got):\n%s", diff)
	}
	if got := h.notes.Last(FieldStatus); got != "ramp, MA 7, on_max_plus" {
		t.Errorf("status = %q", got)
	}

	h.clock.Advance(30 * time.Second)
	if got := h.c.Summary().TimerLine(); got != "On 30/180s, 180s total" {
		t.Errorf("TimerLine() = %q", got)
	}

	h.clock.Advance(130 * time.Second)
	want = []command.Command{
		command.SetMA(7),
		command.SetMode("waves"),
		command.Simple(command.KindOnMaxPlus),
	}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("secondary commands mismatch (-want +got):\n%s", diff)
	}

	h.clock.Advance(20 * time.Second)
	if got := h.c.State(); got != StateOff {
		t.Fatalf("State() = %s, want Off", got)
	}
	if diff := cmp.Diff([]command.Command{command.Off()}, h.queue.Take()); diff != "" {
		t.Errorf("Off commands mismatch (-want +got):\n%s", diff)
	}

	h.clock.Advance(120 * time.Second)
	if got := h.c.State(); got != StateOn {
		t.Fatalf("State() = %s, want On again", got)
	}

	s := h.c.Summary()
	if s.Intervals != 3 || s.SessionTotal != 480 || s.OnSeconds != 360 || s.OffSeconds != 300 {
		t.Errorf("Summary() = %+v", s)
	}
	if len(h.rec.intervals) != 3 || h.rec.intervals[1].State != StateOff {
		t.Errorf("recorded intervals = %+v", h.rec.intervals)
	}
}

func TestController_CalculateTimeAccumulatesOneTerm(t *testing.T) {
	cfg := testSessionConfig()
	cfg.AddOnPercent = 0
	cfg.TeasePercent = 0
	h := newHarness(t, cfg, newSeededRand(11))
	h.c.Activate()
	h.c.StartSession()

	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	for i := 0; i < 500; i++ {
		before := h.c.sessionTotal
		iv := h.c.drawInterval(StateOn, 180, 0)
		if iv.Seconds < float64(cfg.DelayMin) || iv.Seconds > 180 {
			t.Fatalf("interval %v outside [%d, 180]", iv.Seconds, cfg.DelayMin)
		}
		if len(iv.Terms) != 1 {
			t.Fatalf("terms = %v, want one", iv.Terms)
		}
		if got := h.c.sessionTotal - before; got != iv.Seconds {
			t.Fatalf("session total grew by %v, want %v", got, iv.Seconds)
		}
	}
}

func TestController_NextModeCoversSequence(t *testing.T) {
	cfg := testSessionConfig()
	h := newHarness(t, cfg, newSeededRand(3))
	h.c.Activate()
	h.c.StartSession()

	h.c.mu.Lock()
	defer h.c.mu.Unlock()

	seq := slices.Clone(h.c.modes)
	start := h.c.cursor
	got := make([]string, len(seq))
	for i := range got {
		got[i] = h.c.nextMode()
	}

	for i, m := range got {
		if want := seq[(start+i)%len(seq)]; m != want {
			t.Errorf("nextMode() #%d = %q, want %q", i, m, want)
		}
	}
	slices.Sort(got)
	wantSorted := slices.Clone(cfg.Modes)
	slices.Sort(wantSorted)
	if diff := cmp.Diff(wantSorted, got); diff != "" {
		t.Errorf("modes returned mismatch (-want +got):\n%s", diff)
	}
}

func TestController_ToggleCycle(t *testing.T) {
	h := newHarness(t, testSessionConfig(), maxRand{})

	h.c.Dispatch(ActionOn)
	if s := h.c.Summary(); s.State != StateIdleOn || s.Sublevel != SublevelA {
		t.Fatalf("after toggle-on: %s/%s, want IdleOn/A", s.State, s.Sublevel)
	}
	h.queue.Take()

	steps := []struct {
		action   Action
		sublevel Sublevel
		status   string
		kinds    []command.Kind
	}{
		{ActionRight, SublevelB, "Max B", []command.Kind{command.KindOnMaxB}},
		{ActionOn, SublevelAB, "Max A & B", []command.Kind{command.KindOnMax}},
		{ActionRight, SublevelA, "Max A", []command.Kind{command.KindSetMA, command.KindSetMode, command.KindOnMaxA}},
	}
	for _, step := range steps {
		if got := h.c.Dispatch(step.action); got != StateIdleOn {
			t.Fatalf("Dispatch(%s) = %s, want IdleOn", step.action, got)
		}
		if got := h.c.Summary().Sublevel; got != step.sublevel {
			t.Errorf("sublevel = %s, want %s", got, step.sublevel)
		}
		if got := h.notes.Last(FieldStatus); got != step.status {
			t.Errorf("status = %q, want %q", got, step.status)
		}
		if diff := cmp.Diff(step.kinds, kinds(h.queue.Take())); diff != "" {
			t.Errorf("toggle commands mismatch (-want +got):\n%s", diff)
		}
	}

	wantCues := []string{CueMaxA, CueMaxB, CueMaxAB, CueMaxA}
	if diff := cmp.Diff(wantCues, h.cues.Take()); diff != "" {
		t.Errorf("toggle cues mismatch (-want +got):\n%s", diff)
	}
}

func TestController_IdleOnAdjust(t *testing.T) {
	h := newHarness(t, testSessionConfig(), maxRand{})
	h.c.Dispatch(ActionOn)
	h.queue.Take()
	h.cues.Take()

	h.c.Dispatch(ActionUp)
	h.c.Dispatch(ActionRight)
	h.c.Dispatch(ActionDown)
	h.c.Dispatch(ActionRight)
	h.c.Dispatch(ActionUp)
	h.c.Dispatch(ActionMiddle)

	want := []command.Command{
		command.Adjust(2, 0, true),
		command.Simple(command.KindOnMaxB),
		command.Adjust(0, -2, true),
		command.Simple(command.KindOnMax),
		command.Adjust(2, 2, true),
		command.SetMinimum(false),
	}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("IdleOn commands mismatch (-want +got):\n%s", diff)
	}
	if got := h.cues.Take(); !slices.Contains(got, CueNewMinimum) {
		t.Errorf("cues = %v, want %q", got, CueNewMinimum)
	}

	if got := h.c.Dispatch(ActionOff); got != StateIdle {
		t.Errorf("Dispatch(off) from IdleOn = %s, want Idle", got)
	}
}

func TestController_IdleActions(t *testing.T) {
	h := newHarness(t, testSessionConfig(), maxRand{})

	h.c.Dispatch(ActionOff)
	h.c.Dispatch(ActionMiddle)
	h.c.Dispatch(ActionDown)
	h.c.Dispatch(ActionLock)

	want := []command.Command{command.Off(), command.Simple(command.KindSetLevelsFromDevice)}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("Idle commands mismatch (-want +got):\n%s", diff)
	}
	if got := h.c.State(); got != StateIdle {
		t.Errorf("State() = %s, want Idle", got)
	}
	if h.c.Locked() {
		t.Error("lock took effect in Idle")
	}

	h.c.Dispatch(ActionReset)
	if len(h.rec.sessions) != 0 {
		t.Errorf("reset in Idle recorded sessions %+v", h.rec.sessions)
	}
}

func TestController_Locked(t *testing.T) {
	h := newHarness(t, shortSessionConfig(), maxRand{})
	h.c.Activate()
	h.c.StartSession()
	h.queue.Take()
	h.cues.Take()

	h.c.Dispatch(ActionLock)
	if !h.c.Locked() {
		t.Fatal("Locked() = false after lock")
	}
	if got := h.notes.Last(FieldLocked); got != "true" {
		t.Errorf("locked field = %q, want true", got)
	}

	// Reset and left are refused; up adjusts without output while Starting.
	h.c.Dispatch(ActionReset)
	h.c.Dispatch(ActionLeft)
	h.c.Dispatch(ActionUp)
	if got := h.c.State(); got != StateStarting {
		t.Fatalf("State() = %s, want Starting", got)
	}

	h.clock.Advance(time.Second)
	h.queue.Take()
	h.c.Dispatch(ActionDown)
	h.c.Dispatch(ActionMiddle)

	want := []command.Command{
		command.Adjust(-2, -2, true),
		command.SetMinimum(false),
	}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("locked On commands mismatch (-want +got):\n%s", diff)
	}
	wantCues := []string{CueLocked, CueSorry, CueNewMinimum}
	if diff := cmp.Diff(wantCues, h.cues.Take()); diff != "" {
		t.Errorf("locked cues mismatch (-want +got):\n%s", diff)
	}

	h.c.EndSession()
	if h.c.Locked() {
		t.Error("Locked() = true after EndSession")
	}
	if got := h.notes.Last(FieldLocked); got != "false" {
		t.Errorf("locked field = %q, want false", got)
	}
	if len(h.rec.sessions) != 1 || !h.rec.sessions[0].Locked || h.rec.sessions[0].Forced {
		t.Errorf("sessions = %+v, want one locked unforced session", h.rec.sessions)
	}
}

func TestController_LockedAdjustWhileStarting(t *testing.T) {
	h := newHarness(t, shortSessionConfig(), maxRand{})
	h.c.Activate()
	h.c.StartSession()
	h.c.Lock()
	h.queue.Take()

	h.c.Dispatch(ActionUp)
	want := []command.Command{command.Adjust(2, 2, false)}
	if diff := cmp.Diff(want, h.queue.Take()); diff != "" {
		t.Errorf("adjust mismatch (-want +got):\n%s", diff)
	}
}

func TestController_LockedWaiting(t *testing.T) {
	h := newHarness(t, shortSessionConfig(), maxRand{})
	h.c.Activate()
	h.c.Dispatch(ActionDown)

	if got := h.c.Dispatch(ActionReset); got != StateWaiting {
		t.Errorf("reset while locked Waiting = %s, want Waiting", got)
	}
	if got := h.c.Dispatch(ActionUp); got != StateStarting {
		t.Errorf("up while locked Waiting = %s, want Starting", got)
	}
	if !h.c.Locked() {
		t.Error("lock lost on start")
	}
}

func TestController_EndSessionFromEveryState(t *testing.T) {
	drive := map[State]func(h *harness){
		StateIdle:   func(*harness) {},
		StateIdleOn: func(h *harness) { h.c.Dispatch(ActionOn) },
		StateWaiting: func(h *harness) {
			h.c.Activate()
		},
		StateStarting: func(h *harness) {
			h.c.Activate()
			h.c.StartSession()
		},
		StateOn: func(h *harness) {
			h.c.Activate()
			h.c.StartSession()
			h.clock.Advance(180 * time.Second)
		},
		StateOff: func(h *harness) {
			h.c.Activate()
			h.c.StartSession()
			h.clock.Advance(360 * time.Second)
		},
	}

	for _, ignoreStop := range []bool{false, true} {
		for _, locked := range []bool{false, true} {
			for state, fn := range drive {
				name := string(state)
				if locked {
					name += "/locked"
				}
				if ignoreStop {
					name += "/late-callbacks"
				}
				t.Run(name, func(t *testing.T) {
					h := newHarness(t, testSessionConfig(), maxRand{})
					fn(h)
					if got := h.c.State(); got != state {
						t.Fatalf("setup reached %s, want %s", got, state)
					}
					if locked {
						h.c.Lock()
					}
					h.clock.ignoreStop = ignoreStop

					h.c.EndSession()
					h.c.EndSession()
					h.queue.Take()

					s := h.c.Summary()
					if s.State != StateIdle || s.Locked || s.Sublevel != SublevelNone {
						t.Errorf("after EndSession: state=%s locked=%v sublevel=%q", s.State, s.Locked, s.Sublevel)
					}
					if s.SessionTotal != 0 || s.OnSeconds != 0 || s.OffSeconds != 0 || s.Intervals != 0 {
						t.Errorf("accounting not zeroed: %+v", s)
					}
					if !ignoreStop && h.clock.Pending() != 0 {
						t.Errorf("Pending() = %d, want 0", h.clock.Pending())
					}

					h.clock.Advance(3 * time.Hour)
					if got := h.c.State(); got != StateIdle {
						t.Errorf("State() after late timers = %s, want Idle", got)
					}
					if got := h.queue.Take(); len(got) != 0 {
						t.Errorf("late timers enqueued %v", got)
					}
				})
			}
		}
	}
}

func TestSummary_TimerLine(t *testing.T) {
	tests := []struct {
		s    Summary
		want string
	}{
		{Summary{State: StateIdle}, "Idle"},
		{Summary{State: StateIdleOn}, "IdleOn"},
		{Summary{State: StateWaiting, Elapsed: time.Minute, Planned: time.Hour}, "Waiting"},
		{Summary{State: StateStarting, Elapsed: 2 * time.Second, Planned: 15 * time.Second}, "Starting 2/15s, 0s total"},
		{Summary{State: StateOff, Elapsed: 61500 * time.Millisecond, Planned: 90 * time.Second, SessionTotal: 420.7}, "Off 61/90s, 420s total"},
	}
	for _, tt := range tests {
		if got := tt.s.TimerLine(); got != tt.want {
			t.Errorf("TimerLine(%s) = %q, want %q", tt.s.State, got, tt.want)
		}
	}
}

func TestController_ConcurrentDispatch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testSessionConfig()
	cfg.TimeScale = 0.0005
	cfg.FailsafeStart = 10 * time.Second
	cfg.MaxSession = time.Hour

	q := &mockQueue{}
	c, err := New(Options{Config: cfg, Queue: q, Device: fixedMA(7)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Start()

	actions := []Action{
		ActionActivate, ActionStart, ActionUp, ActionDown, ActionLeft,
		ActionRight, ActionMiddle, ActionOn, ActionOff, ActionLock, ActionReset,
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 300; i++ {
				c.Dispatch(actions[(g*7+i)%len(actions)])
				if i%50 == 0 {
					time.Sleep(time.Millisecond)
				}
			}
		}(g)
	}
	wg.Wait()

	c.EndSession()
	s := c.Summary()
	if s.State != StateIdle || s.Locked || s.SessionTotal != 0 {
		t.Errorf("after EndSession: %+v", s)
	}
	c.Stop()
	// Let any in-flight callbacks observe the stop.
	time.Sleep(20 * time.Millisecond)
}
