package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRBACIntegrity sweeps the role/permission tables for orphaned rows.
	TaskRBACIntegrity = "rbac:integrity"
	// TaskSessionPrune removes expired session records.
	TaskSessionPrune = "sessions:prune"
)

// SessionPrunePayload parameterises the session prune task.
type SessionPrunePayload struct {
	// Grace keeps rows around for a window after expiry so recent logouts
	// remain inspectable.
	Grace time.Duration `json:"grace"`
}

// NewRBACIntegrityTask constructs the integrity sweep task.
func NewRBACIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskRBACIntegrity, nil)
}

// NewSessionPruneTask constructs a session prune task.
func NewSessionPruneTask(payload SessionPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPrune, data), nil
}
