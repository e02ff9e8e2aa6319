package models

import (
	"context"
	"maps"
	"time"
)

// CursorUnset marks a pacing cursor that has not surfaced any bucket yet.
const CursorUnset = -1

// BatchInfo summarizes the most recent successful run. It is informational only.
type BatchInfo struct {
	PriorityCount int    `json:"priority_count"`
	BacklogMinute int    `json:"backlog_minute"`
	BacklogCount  int    `json:"backlog_count"`
	TotalCount    int    `json:"total_count"`
	Timestamp     string `json:"timestamp"`
}

// UserState is the durable per-user record driving incremental scans.
//
// ShowProgress and CompletedShows only grow; CurrentMinute is the last surfaced duration bucket.
type UserState struct {
	LastUpdate     time.Time         `json:"last_update_ts"`
	ShowProgress   map[string]string `json:"show_progress"`
	CompletedShows map[string]string `json:"completed_shows"`
	CurrentMinute  int               `json:"current_minute"`
	MinDuration    int               `json:"min_duration"`
	PlaylistID     string            `json:"playlist_id,omitempty"`
	LastBatch      *BatchInfo        `json:"last_batch_info,omitempty"`
}

// NewUserState returns the state of a user that has never run an update.
func NewUserState() *UserState {
	return &UserState{
		LastUpdate:     time.Unix(0, 0).UTC(),
		ShowProgress:   map[string]string{},
		CompletedShows: map[string]string{},
		CurrentMinute:  CursorUnset,
	}
}

// Normalize fills maps left nil by decoding and clamps MinDuration.
func (s *UserState) Normalize() {
	if s.ShowProgress == nil {
		s.ShowProgress = map[string]string{}
	}
	if s.CompletedShows == nil {
		s.CompletedShows = map[string]string{}
	}
	if s.MinDuration < 0 {
		s.MinDuration = 0
	}
	s.LastUpdate = s.LastUpdate.UTC()
}

// Clone returns a deep copy so a run can mutate state without touching the caller's copy.
func (s *UserState) Clone() *UserState {
	c := *s
	c.ShowProgress = maps.Clone(s.ShowProgress)
	c.CompletedShows = maps.Clone(s.CompletedShows)
	if c.ShowProgress == nil {
		c.ShowProgress = map[string]string{}
	}
	if c.CompletedShows == nil {
		c.CompletedShows = map[string]string{}
	}
	if s.LastBatch != nil {
		lb := *s.LastBatch
		c.LastBatch = &lb
	}
	return &c
}

// SetPlaylist stores a new target playlist and restarts the pacing cursor.
func (s *UserState) SetPlaylist(id string) {
	s.PlaylistID = id
	s.CurrentMinute = CursorUnset
}

// StateStore persists [UserState] per user.
//
// Load returns a fresh [NewUserState] when the record is missing or unreadable;
// errors are reserved for infrastructure failures such as an unavailable database or lock.
type StateStore interface {
	Load(ctx context.Context, userID string) (*UserState, error)
	Save(ctx context.Context, userID string, state *UserState) error
}
