package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/surprise-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/surprise-core/internal/session"
)

// WebSocket channel names.
const (
	ChannelStatus = "status"
	ChannelTimer  = "timer"
)

const (
	defaultBufferSize    = 64
	defaultTimerInterval = time.Second
)

// Broadcaster delivers an event to subscribers of a channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Mirror publishes retained messages for remote displays.
type Mirror interface {
	PublishRetained(topic string, payload []byte) error
}

// SummarySource supplies the session summary for the timer line.
type SummarySource interface {
	Summary() session.Summary
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// StatusEvent is the payload broadcast on the status channel.
type StatusEvent struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// TimerEvent is the payload broadcast on the timer channel.
type TimerEvent struct {
	Line string `json:"line"`
}

// Options configures a Notifier. Every sink is optional.
type Options struct {
	Broadcaster Broadcaster
	Mirror      Mirror
	Source      SummarySource

	// TimerInterval is how often the timer line is rendered.
	TimerInterval time.Duration

	// BufferSize bounds queued deltas; further deltas are dropped.
	BufferSize int

	Logger Logger
}

// Notifier queues status deltas and delivers them from Run.
//
// Thread Safety:
//   - Publish and Snapshot are safe for concurrent use.
//   - Run must be called exactly once.
type Notifier struct {
	broadcaster Broadcaster
	mirror      Mirror
	source      SummarySource
	interval    time.Duration
	logger      Logger
	topics      mqtt.Topics

	updates chan StatusEvent

	mu        sync.RWMutex
	latest    map[string]string
	lastTimer string
	dropped   int
}

// New creates a Notifier.
func New(opts Options) *Notifier {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.TimerInterval <= 0 {
		opts.TimerInterval = defaultTimerInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Notifier{
		broadcaster: opts.Broadcaster,
		mirror:      opts.Mirror,
		source:      opts.Source,
		interval:    opts.TimerInterval,
		logger:      opts.Logger,
		updates:     make(chan StatusEvent, opts.BufferSize),
		latest:      make(map[string]string),
	}
}

// Publish records the latest value of field and queues it for delivery.
// It never blocks; when the queue is full the delta is dropped, though
// Snapshot still reflects it.
func (n *Notifier) Publish(field, value string) {
	n.mu.Lock()
	n.latest[field] = value
	n.mu.Unlock()

	select {
	case n.updates <- StatusEvent{Field: field, Value: value}:
	default:
		n.mu.Lock()
		n.dropped++
		n.mu.Unlock()
	}
}

// Snapshot returns the latest value of every published field.
func (n *Notifier) Snapshot() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[string]string, len(n.latest))
	for k, v := range n.latest {
		out[k] = v
	}
	return out
}

// SetSource sets the summary source after construction, for a source that
// itself needs the Notifier.
func (n *Notifier) SetSource(src SummarySource) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.source = src
}

// Dropped returns how many deltas were dropped because the queue was full.
func (n *Notifier) Dropped() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dropped
}

// Run delivers queued deltas and renders the timer line until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-n.updates:
			n.deliver(ev)
		case <-ticker.C:
			n.tick()
		case <-ctx.Done():
			return nil
		}
	}
}

func (n *Notifier) deliver(ev StatusEvent) {
	if n.broadcaster != nil {
		n.broadcaster.Broadcast(ChannelStatus, ev)
	}
	n.mirrorPublish(n.topics.Status(ev.Field), ev.Value)
}

// tick broadcasts the timer line every interval and mirrors it only when
// it changes.
func (n *Notifier) tick() {
	n.mu.RLock()
	src := n.source
	n.mu.RUnlock()
	if src == nil {
		return
	}
	line := src.Summary().TimerLine()

	if n.broadcaster != nil {
		n.broadcaster.Broadcast(ChannelTimer, TimerEvent{Line: line})
	}

	n.mu.Lock()
	changed := line != n.lastTimer
	n.lastTimer = line
	n.mu.Unlock()

	if changed {
		n.mirrorPublish(n.topics.Timer(), line)
	}
}

func (n *Notifier) mirrorPublish(topic, value string) {
	if n.mirror == nil {
		return
	}
	err := n.mirror.PublishRetained(topic, []byte(value))
	switch {
	case err == nil:
	case errors.Is(err, mqtt.ErrNotConnected):
		n.logger.Debug("status mirror offline", "topic", topic)
	default:
		n.logger.Warn("status mirror publish failed", "topic", topic, "error", err)
	}
}
