package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
)

// SQLStateStore implements [models.StateStore] on the user_states table.
type SQLStateStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSQLStateStore creates a new [SQLStateStore] with the given database connection
func NewSQLStateStore(db *sql.DB, logger *log.Logger) *SQLStateStore {
	if logger == nil {
		logger = log.Default()
	}
	return &SQLStateStore{db: db, logger: logger}
}

// Load reads the user's state; a missing or undecodable row yields [models.NewUserState].
func (r *SQLStateStore) Load(ctx context.Context, userID string) (*models.UserState, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM user_states WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewUserState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}

	state, err := decodeState([]byte(data))
	if err != nil {
		r.logger.Warn("corrupt state row, starting fresh", "user", userID, "error", err)
		return models.NewUserState(), nil
	}
	return state, nil
}

// Save upserts the user's state in a single statement.
func (r *SQLStateStore) Save(ctx context.Context, userID string, state *models.UserState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil state for %s", userID)
	}
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	data, err := marshalJSON(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_states (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, userID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}
