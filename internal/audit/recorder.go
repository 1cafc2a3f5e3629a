package audit

import (
	"context"
	"database/sql"
	"time"
)

const (
	KindDisconnectSession = "disconnect_session"
	KindDisconnectUser    = "disconnect_user"
)

// Action is one control operation attempted by the agent. Session state is
// never stored, only what was asked for and how it ended.
type Action struct {
	ID         string
	InstanceID string
	RequestID  string
	Kind       string
	Target     string
	OK         bool
	ErrorCode  string
	OccurredAt time.Time
}

// Recorder persists control actions.
type Recorder interface {
	Record(ctx context.Context, action Action) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresRecorder writes to the control_actions table created by
// deploy/sql/migrations.
type PostgresRecorder struct {
	db execer
}

func NewPostgresRecorder(db execer) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, a Action) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO control_actions (id, instance_id, request_id, kind, target, ok, error_code, occurred_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8)
	`, a.ID, a.InstanceID, a.RequestID, a.Kind, a.Target, a.OK, a.ErrorCode, a.OccurredAt)
	return err
}
