package device

import (
	"context"
	"errors"

	"github.com/nerrad567/surprise-core/internal/command"
)

// Run consumes q until ctx ends or q is closed.
//
// Commands are applied one at a time. Rejected commands are logged and
// dropped. On an I/O failure the adapter reconnects (taking host override
// again if it was held) and atomically replaces everything still queued with
// a safety off before consuming again. If the
// adapter is not connected when Run starts, it reconnects first.
//
// Returns:
//   - error: ctx.Err() on cancellation, nil when q is closed
func (a *Adapter) Run(ctx context.Context, q *command.Queue) error {
	if !a.Connected() {
		if err := a.Reconnect(ctx); err != nil {
			return err
		}
	}

	for {
		cmd, err := q.Dequeue(ctx)
		if errors.Is(err, command.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		a.logger.Debug("applying command", "command", cmd.String())
		err = a.Apply(ctx, cmd)
		switch {
		case err == nil:
			a.metrics.CommandApplied(string(cmd.Kind))

		case errors.Is(err, ErrInvalidCommand):
			a.metrics.CommandRejected(string(cmd.Kind))
			a.logger.Warn("command rejected", "command", cmd.String(), "error", err)

		case ctx.Err() != nil:
			return ctx.Err()

		default:
			a.logger.Error("device write failed", "command", cmd.String(), "error", err)
			if err := a.Reconnect(ctx); err != nil {
				return err
			}
			dropped := q.Reset(command.Off())
			a.metrics.CommandsDrained(dropped)
			a.logger.Info("discarded stale commands", "count", dropped)
		}
	}
}
