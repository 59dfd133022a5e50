package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/surprise-core/internal/command"
)

// All methods in this file require c.mu to be held.

// scaled converts session seconds to a timer duration.
func (c *Controller) scaled(secs float64) time.Duration {
	return time.Duration(secs * c.cfg.TimeScale * float64(time.Second))
}

// schedule arms a timer whose callback runs fn under the lock, but only if
// the token for its kind is still current.
func (c *Controller) schedule(kind TimerKind, d time.Duration, fn func()) Timer {
	token := c.tokenFor(kind)
	return c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.tokenFor(kind) != token {
			c.logger.Debug("stale timer ignored", "kind", kind.String(), "state", string(c.state))
			return
		}
		fn()
	})
}

func (c *Controller) tokenFor(kind TimerKind) uint64 {
	switch kind {
	case TimerSessionMax:
		return c.sessionSeq
	case TimerKeepalive:
		return c.keepaliveSeq
	default:
		return c.epoch
	}
}

// enter switches state and, when next is non-nil, arms the primary timer
// that leads out of it. Any previous primary and secondary timers are
// cancelled and invalidated first.
func (c *Controller) enter(s State, d time.Duration, next func()) {
	c.stopPrimary()
	c.epoch++

	from := c.state
	c.state = s
	c.stateEnteredAt = c.clock.Now()
	c.planned = d
	if next != nil {
		c.primary = c.schedule(TimerPrimary, d, next)
	}

	if from != s {
		c.metrics.Transition(from, s)
		c.logger.Info("state changed", "from", string(from), "to", string(s), "planned", d.String())
	}
	c.publishState()
}

func (c *Controller) stopPrimary() {
	c.primary = stopTimer(c.primary)
	for _, t := range c.secondaries {
		t.Stop()
	}
	c.secondaries = nil
}

// activate: Idle -> Waiting.
func (c *Controller) activate() {
	c.logger.Info("activating session")
	c.queue.Enqueue(command.Off())
	window := c.scaled(c.cfg.FailsafeStart.Seconds())
	c.enter(StateWaiting, window, nil)
	c.failsafe = c.schedule(TimerFailsafe, window, c.failsafeFire)
	c.setStatus("Waiting")
	c.cues.Play(CueActivated)
}

func (c *Controller) failsafeFire() {
	c.failsafe = nil
	if c.state != StateWaiting {
		return
	}
	c.logger.Info("failsafe start")
	c.startSession()
}

// startSession: Waiting -> Starting.
func (c *Controller) startSession() {
	c.failsafe = stopTimer(c.failsafe)
	Shuffle(c.rnd, c.modes)

	c.sessionSeq++
	c.sessionMax = stopTimer(c.sessionMax)
	c.sessionMax = c.schedule(TimerSessionMax, c.scaled(c.cfg.MaxSession.Seconds()), c.sessionMaxFire)

	secs := uniform(c.rnd, c.cfg.DelayMin, c.cfg.StartSleepMax)
	c.startedAt = c.clock.Now()
	c.offAcc = float64(secs)
	c.onAcc = 0
	c.intervals = 0

	c.logger.Info("session starting", "delay_secs", secs)
	c.enter(StateStarting, c.scaled(float64(secs)), c.turnOn)
	c.setStatus(fmt.Sprintf("Starting in %d secs", secs))
	c.cues.Play(CueStarting)
}

func (c *Controller) sessionMaxFire() {
	c.sessionMax = nil
	if c.state == StateIdle {
		return
	}
	c.logger.Info("maximum session time reached", "max_session", c.cfg.MaxSession.String())
	c.endSession(true)
}

// overrun reports whether the scheduled session time has passed the maximum.
func (c *Controller) overrun() bool {
	return c.sessionTotal > c.cfg.MaxSession.Seconds()
}

// drawInterval computes the next On or Off interval and adds it to the
// session total. A teased interval is added in its shortened form.
func (c *Controller) drawInterval(s State, maxBound, addPercent int) Interval {
	iv := CalculateTime(c.rnd, c.cfg.DelayMin, maxBound, addPercent, c.cfg.TeasePercent)
	c.sessionTotal += iv.Seconds
	c.intervals++

	c.logger.Debug("interval drawn",
		"state", string(s),
		"secs", iv.Seconds,
		"terms", iv.Terms,
		"teased", iv.Teased,
	)
	rec := IntervalRecord{
		State:   s,
		Seconds: iv.Seconds,
		Terms:   iv.Terms,
		Teased:  iv.Teased,
		At:      c.clock.Now(),
	}
	for _, r := range c.recorders {
		r.RecordInterval(rec)
	}
	return iv
}

// turnOn: Starting/Off -> On.
func (c *Controller) turnOn() {
	if c.overrun() {
		c.endSession(true)
		return
	}

	iv := c.drawInterval(StateOn, c.cfg.OnMax, c.cfg.AddOnPercent)
	c.onAcc += iv.Seconds
	c.enter(StateOn, c.scaled(iv.Seconds), c.turnOff)

	for _, t := range SecondaryOffsets(c.rnd, int(iv.Seconds)) {
		c.logger.Debug("scheduling mode/power change", "after_secs", t)
		c.secondaries = append(c.secondaries,
			c.schedule(TimerSecondary, c.scaled(float64(t)), c.secondaryFire))
	}

	c.queueModeAndPowerChange()
}

// turnOff: On -> Off.
func (c *Controller) turnOff() {
	if c.overrun() {
		c.endSession(true)
		return
	}

	iv := c.drawInterval(StateOff, c.cfg.OffMax, c.cfg.AddOffPercent)
	c.offAcc += iv.Seconds
	c.enter(StateOff, c.scaled(iv.Seconds), c.turnOn)

	c.logger.Info("turning off", "secs", iv.Seconds)
	c.queue.Enqueue(command.Off())
	c.setStatus("Off")
}

func (c *Controller) secondaryFire() {
	c.queueModeAndPowerChange()
}

// manualOff switches outputs off while Idle.
func (c *Controller) manualOff() {
	c.sublevel = SublevelNone
	c.queue.Enqueue(command.Off())
	c.enter(StateIdle, 0, nil)
	c.setStatus("Off")
}

// toggle cycles IdleOn through A, B and AB.
func (c *Controller) toggle() {
	switch {
	case c.state == StateIdle || c.sublevel == SublevelAB || c.sublevel == SublevelNone:
		desc := c.queueModeChange()
		c.sublevel = SublevelA
		c.logger.Info("turning on max a", "mode", desc)
		c.queue.Enqueue(command.Simple(command.KindOnMaxA))
		c.enter(StateIdleOn, 0, nil)
		c.setStatus("Max A")
		c.cues.Play(CueMaxA)
	case c.sublevel == SublevelA:
		c.sublevel = SublevelB
		c.logger.Info("turning on max b")
		c.queue.Enqueue(command.Simple(command.KindOnMaxB))
		c.setStatus("Max B")
		c.cues.Play(CueMaxB)
	case c.sublevel == SublevelB:
		c.sublevel = SublevelAB
		c.logger.Info("turning on max a and b")
		c.queue.Enqueue(command.Simple(command.KindOnMax))
		c.setStatus("Max A & B")
		c.cues.Play(CueMaxAB)
	}
}

// adjustLevels moves the max level of the channels selected by the IdleOn
// sublevel, or of both channels during a session. Output is updated live in
// IdleOn and while On.
func (c *Controller) adjustLevels(delta int) {
	var cmd command.Command
	switch c.sublevel {
	case SublevelA:
		cmd = command.Adjust(delta, 0, true)
	case SublevelB:
		cmd = command.Adjust(0, delta, true)
	case SublevelAB:
		cmd = command.Adjust(delta, delta, true)
	default:
		cmd = command.Adjust(delta, delta, c.state == StateOn)
	}
	c.logger.Info("adjusting levels", "delta", delta, "sublevel", string(c.sublevel))
	c.queue.Enqueue(cmd)
}

func (c *Controller) setMinimum() {
	c.logger.Info("setting minimums")
	c.queue.Enqueue(command.SetMinimum(false))
}

func (c *Controller) setLevelsFromDevice() {
	c.logger.Info("setting levels from device")
	c.cues.Play(CueLevelsFromDevice)
	c.queue.Enqueue(command.Simple(command.KindSetLevelsFromDevice))
}

func (c *Controller) lock() {
	if c.locked {
		return
	}
	c.logger.Info("session locked")
	c.locked = true
	c.cues.Play(CueLocked)
	c.setMinimum()
	c.notifier.Publish(FieldLocked, "true")
}

// endSession returns to Idle. Safe to call in any state and more than once.
func (c *Controller) endSession(forced bool) {
	from := c.state
	inSession := !c.startedAt.IsZero()

	c.stopPrimary()
	c.failsafe = stopTimer(c.failsafe)
	c.sessionMax = stopTimer(c.sessionMax)
	c.sessionSeq++

	c.queue.Enqueue(command.Off())
	c.queue.Enqueue(command.SetMinimum(true))

	wasLocked := c.locked
	c.sublevel = SublevelNone
	c.locked = false

	c.logger.Info("session ended",
		"from", string(from),
		"forced", forced,
		"on_secs", c.onAcc,
		"off_secs", c.offAcc,
		"intervals", c.intervals,
	)

	if inSession {
		rec := SessionRecord{
			StartedAt:  c.startedAt,
			EndedAt:    c.clock.Now(),
			OnSeconds:  c.onAcc,
			OffSeconds: c.offAcc,
			Intervals:  c.intervals,
			Forced:     forced,
			Locked:     wasLocked,
		}
		for _, r := range c.recorders {
			r.RecordSession(rec)
		}
		c.metrics.SessionEnded(forced)
	}

	c.sessionTotal = 0
	c.onAcc = 0
	c.offAcc = 0
	c.intervals = 0
	c.startedAt = time.Time{}

	c.cues.Play(CueReset)
	c.enter(StateIdle, 0, nil)
	c.setStatus("Idle")
	c.notifier.Publish(FieldLocked, "false")
}

// keepaliveTick cycles the device mode while idle and re-arms itself.
func (c *Controller) keepaliveTick() {
	if c.state == StateIdle || c.state == StateIdleOn {
		desc := c.queueModeChange()
		c.logger.Debug("keepalive mode change", "mode", desc)
	}
	c.keepalive = c.schedule(TimerKeepalive, c.scaled(c.cfg.KeepaliveInterval.Seconds()), c.keepaliveTick)
}

// queueModeAndPowerChange picks a new mode and a weighted random power tier.
// Only acts while On.
func (c *Controller) queueModeAndPowerChange() {
	if c.state != StateOn {
		return
	}
	desc := c.queueModeChange()
	tier := c.powerTiers[c.rnd.IntN(len(c.powerTiers))]
	c.logger.Info("turning on", "tier", string(tier), "mode", desc)
	c.setStatus(desc + ", " + string(tier))
	c.queue.Enqueue(command.Simple(tier))
	if c.cfg.AnnouncePower {
		c.cues.Play(string(tier))
	}
}

// queueModeChange enqueues a random MA and the next mode, returning a
// description for status display.
func (c *Controller) queueModeChange() string {
	mode := c.nextMode()
	ma := c.device.RandomMA()
	c.queue.Enqueue(command.SetMA(ma))
	c.queue.Enqueue(command.SetMode(mode))
	c.mode = mode
	return mode + ", MA " + strconv.Itoa(ma)
}

// nextMode returns the mode at the cursor and advances it.
func (c *Controller) nextMode() string {
	mode := c.modes[c.cursor]
	c.cursor = (c.cursor + 1) % len(c.modes)
	return mode
}

func (c *Controller) setStatus(s string) {
	c.status = s
	c.notifier.Publish(FieldStatus, s)
}

func (c *Controller) publishState() {
	c.notifier.Publish(FieldState, string(c.state))
}
