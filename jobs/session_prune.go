package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// SessionPruner deletes expired session rows. Implemented by the auth service.
type SessionPruner interface {
	PruneSessions(ctx context.Context, before time.Time) (int64, error)
}

// NewSessionPruneHandler adapts the pruner into an Asynq handler.
func NewSessionPruneHandler(pruner SessionPruner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SessionPrunePayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		cutoff := time.Now().Add(-payload.Grace)
		pruned, err := pruner.PruneSessions(ctx, cutoff)
		if err != nil {
			return err
		}
		if pruned > 0 {
			logger.Info("expired sessions pruned", slog.Int64("rows", pruned))
		}
		return nil
	}
}
