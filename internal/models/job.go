package models

import (
	"context"
	"time"
)

// Job is the status of a background update run, keyed by user.
type Job struct {
	ID        string    `json:"-"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
	Total     int       `json:"total"`
	IsDone    bool      `json:"is_done"`
	IsError   bool      `json:"is_error"`
	StartedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Terminal reports whether the run has finished, successfully or not.
func (j Job) Terminal() bool {
	return j.IsDone || j.IsError
}

// JobStore is the registry of in-flight and just-finished update runs.
//
// Claim inserts job only if the user has no entry and reports whether it did;
// this is the guard that keeps a single run per user. Durable stores may also
// replace an entry that has not been updated for a long time.
// Get returns nil without error when the user has no entry.
type JobStore interface {
	Claim(ctx context.Context, userID string, job Job) (bool, error)
	Put(ctx context.Context, userID string, job Job) error
	Get(ctx context.Context, userID string) (*Job, error)
	Delete(ctx context.Context, userID string) error
}
