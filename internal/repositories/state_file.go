package repositories

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStateStore implements [models.StateStore] with one JSON file per user.
//
// Each file has a sibling ".lock" file so that a CLI run and the server never interleave writes.
// Saves go to a temporary file that is renamed over the previous document.
type FileStateStore struct {
	dir    string
	logger *log.Logger
}

// NewFileStateStore creates dir if needed and returns a store rooted there.
func NewFileStateStore(dir string, logger *log.Logger) (*FileStateStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStateStore{dir: dir, logger: logger}, nil
}

// Path returns the state file for userID.
func (s *FileStateStore) Path(userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, userID+".json"), nil
}

func (s *FileStateStore) lock(ctx context.Context, path string, shared bool) (*flock.Flock, error) {
	fl := flock.New(path + ".lock")

	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = fl.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to lock %s", path)
	}
	return fl, nil
}

// Load reads the user's state; a missing or corrupt file yields [models.NewUserState].
func (s *FileStateStore) Load(ctx context.Context, userID string) (*models.UserState, error) {
	path, err := s.Path(userID)
	if err != nil {
		return nil, err
	}

	fl, err := s.lock(ctx, path, true)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewUserState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state, err := decodeState(data)
	if err != nil {
		s.logger.Warn("corrupt state file, starting fresh", "user", userID, "path", path, "error", err)
		return models.NewUserState(), nil
	}
	return state, nil
}

// Save atomically replaces the user's state file.
func (s *FileStateStore) Save(ctx context.Context, userID string, state *models.UserState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil state for %s", userID)
	}

	path, err := s.Path(userID)
	if err != nil {
		return err
	}

	data, err := marshalJSON(state)
	if err != nil {
		return err
	}

	fl, err := s.lock(ctx, path, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+userID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
