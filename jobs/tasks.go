package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPolicyReload rebuilds the in-memory policy cache from the store.
	TaskPolicyReload = "authz:reload"
)

// PolicyReloadPayload carries the reason a reload was requested.
type PolicyReloadPayload struct {
	Reason string `json:"reason"`
}

// PolicyReloader is the slice of the authorization service the reload task
// needs.
type PolicyReloader interface {
	ReloadPolicy(ctx context.Context) error
}

// NewPolicyReloadTask constructs an Asynq task for a policy reload.
func NewPolicyReloadTask(payload PolicyReloadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPolicyReload, data), nil
}

// NewPolicyReloadHandler returns the handler for TaskPolicyReload tasks. A
// scheduled reload bounds how long the cache can drift from the store when
// mutations happen out of band.
func NewPolicyReloadHandler(reloader PolicyReloader, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PolicyReloadPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		start := time.Now()
		if err := reloader.ReloadPolicy(ctx); err != nil {
			logger.Error("policy reload failed", slog.Any("error", err))
			return err
		}
		logger.Info("policy reload complete",
			slog.String("reason", payload.Reason),
			slog.Duration("took", time.Since(start)))
		return nil
	}
}
