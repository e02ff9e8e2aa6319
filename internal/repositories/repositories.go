package repositories

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/shared"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateUserID rejects IDs that are empty or could escape a state directory.
func ValidateUserID(userID string) error {
	if userID == "" || userID == "." || userID == ".." || !userIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: user id %q", shared.ErrInvalidInput, userID)
	}
	return nil
}

// NewStateStore builds the [models.StateStore] selected by cfg.Backend.
//
// db is only required for the sqlite backend.
func NewStateStore(cfg shared.StateConfig, db *sql.DB, logger *log.Logger) (models.StateStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStateStore(cfg.Dir, logger)
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite state backend requires a database", shared.ErrInvalidConfig)
		}
		return NewSQLStateStore(db, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// NewJobStore builds the [models.JobStore] selected by cfg.Backend.
func NewJobStore(cfg shared.JobsConfig, db *sql.DB) (models.JobStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryJobStore(), nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite job backend requires a database", shared.ErrInvalidConfig)
		}
		store := NewSQLJobStore(db)
		store.SetStaleAfter(time.Duration(cfg.StaleMinutes) * time.Minute)
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown job backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// decodeState parses a stored state document over fresh defaults.
//
// Keys missing from data keep their default, so an old record without current_minute starts at [models.CursorUnset].
func decodeState(data []byte) (*models.UserState, error) {
	state := models.NewUserState()
	if err := unmarshalJSON(data, state); err != nil {
		return nil, err
	}
	state.Normalize()
	return state, nil
}
