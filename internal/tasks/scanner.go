package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/services"
)

// ScanResult aggregates classified episodes across all saved shows.
//
// Both lists follow show enumeration order, then feed order.
type ScanResult struct {
	Shows    int              // Saved shows enumerated
	Skipped  int              // Shows skipped as completed
	Priority []models.Episode // Released after the previous successful run
	Backlog  []models.Episode // Everything else that qualified
}

// CheckpointFunc persists in-progress scan state.
type CheckpointFunc func(ctx context.Context, state *models.UserState) error

// Scanner enumerates saved shows and classifies each one.
type Scanner struct {
	catalog         services.Catalog
	classifier      *Classifier
	skipCompleted   bool
	checkpointEvery int
}

// NewScanner creates a scanner. A checkpointEvery of 0 disables checkpoints.
func NewScanner(catalog services.Catalog, classifier *Classifier, skipCompleted bool, checkpointEvery int) *Scanner {
	return &Scanner{
		catalog:         catalog,
		classifier:      classifier,
		skipCompleted:   skipCompleted,
		checkpointEvery: checkpointEvery,
	}
}

// ListShows fetches every page of the user's saved shows, dropping null entries.
func (s *Scanner) ListShows(ctx context.Context) ([]models.Show, error) {
	var (
		shows  []models.Show
		cursor string
	)
	for {
		page, err := s.catalog.SavedShows(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list saved shows: %w", err)
		}
		for _, show := range page.Items {
			if show == nil || show.ID == "" {
				continue
			}
			shows = append(shows, *show)
		}
		if !page.HasMore() {
			return shows, nil
		}
		cursor = page.Next
	}
}

// Scan classifies every show and splits the results on state.LastUpdate.
//
// state is mutated in place. checkpoint, when non-nil and enabled, is called every checkpointEvery shows.
func (s *Scanner) Scan(ctx context.Context, shows []models.Show, state *models.UserState, progress chan<- ProgressUpdate, checkpoint CheckpointFunc) (*ScanResult, error) {
	result := &ScanResult{Shows: len(shows)}
	boundary := state.LastUpdate
	total := len(shows)

	for i, show := range shows {
		if _, done := state.CompletedShows[show.ID]; done && s.skipCompleted {
			result.Skipped++
			sendProgress(progress, skippedShowUpdate(i+1, total, show))
		} else {
			episodes, err := s.classifier.ClassifyShow(ctx, show, state)
			if err != nil {
				return nil, err
			}

			for _, ep := range episodes {
				if ep.ReleasedAt.After(boundary) {
					result.Priority = append(result.Priority, ep)
				} else {
					result.Backlog = append(result.Backlog, ep)
				}
			}
			sendProgress(progress, scannedShowUpdate(i+1, total, show))
		}

		if checkpoint != nil && s.checkpointEvery > 0 && (i+1)%s.checkpointEvery == 0 {
			if err := checkpoint(ctx, state); err != nil {
				return nil, fmt.Errorf("failed to checkpoint scan: %w", err)
			}
			sendProgress(progress, checkpointUpdate(i+1, total))
		}
	}

	return result, nil
}
