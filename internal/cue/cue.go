// Package cue plays short audio cues through an external player binary.
//
// Play never blocks: names are queued for a single worker that runs one
// player process at a time, so cues never overlap. When the queue is full
// the cue is dropped.
package cue

import (
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
)

const (
	defaultQueueSize = 8
	defaultTimeout   = 10 * time.Second
	fileExtension    = ".mp3"
	maxLoggedOutput  = 256
)

// Runner executes the player binary and returns its combined output.
type Runner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Player.
type Options struct {
	// QueueSize bounds cues waiting to play.
	QueueSize int

	// Runner defaults to running the binary with os/exec.
	Runner Runner

	// OnDrop is called for each cue dropped because the queue was full.
	OnDrop func()

	Logger Logger
}

// Player queues and plays cues.
//
// Thread Safety:
//   - Play is safe for concurrent use.
//   - Run must be called exactly once.
type Player struct {
	cfg    config.CuesConfig
	run    Runner
	onDrop func()
	logger Logger
	queue  chan string
}

// New creates a Player. A disabled player accepts and discards every cue.
func New(cfg config.CuesConfig, opts Options) *Player {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Runner == nil {
		opts.Runner = execRunner
	}
	if opts.OnDrop == nil {
		opts.OnDrop = func() {}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Player{
		cfg:    cfg,
		run:    opts.Runner,
		onDrop: opts.OnDrop,
		logger: opts.Logger,
		queue:  make(chan string, opts.QueueSize),
	}
}

// Play queues the named cue.
func (p *Player) Play(name string) {
	if !p.cfg.Enabled || name == "" {
		return
	}
	select {
	case p.queue <- name:
	default:
		p.onDrop()
		p.logger.Debug("cue dropped", "cue", name)
	}
}

// Run plays queued cues until ctx is cancelled. Cues still queued at
// shutdown are discarded.
func (p *Player) Run(ctx context.Context) error {
	for {
		select {
		case name := <-p.queue:
			p.play(ctx, name)
		case <-ctx.Done():
			return nil
		}
	}
}

// Path returns the audio file for a cue name.
func (p *Player) Path(name string) string {
	return filepath.Join(p.cfg.Dir, name+fileExtension)
}

func (p *Player) play(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	args := append(append([]string(nil), p.cfg.Args...), p.Path(name))
	start := time.Now()
	out, err := p.run(ctx, p.cfg.Player, args...)
	if err != nil {
		if len(out) > maxLoggedOutput {
			out = out[:maxLoggedOutput]
		}
		p.logger.Warn("cue playback failed", "cue", name, "error", err, "output", string(out))
		return
	}
	p.logger.Debug("cue played", "cue", name, "took", time.Since(start))
}

func execRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // Player binary comes from the service configuration
	cmd.WaitDelay = time.Second
	return cmd.CombinedOutput()
}
