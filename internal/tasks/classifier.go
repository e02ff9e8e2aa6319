package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/services"
)

// DefaultBlocklist holds the title substrings that mark non-content episodes.
var DefaultBlocklist = []string{"trailer", "bonus:", "replay:", "announcement", "preview"}

// Classifier selects the new, unplayed, unblocked episodes of a show.
type Classifier struct {
	catalog       services.Catalog
	blocklist     []string
	skipCompleted bool
}

// NewClassifier creates a classifier; a nil blocklist means [DefaultBlocklist].
//
// With skipCompleted set, shows that yield nothing are recorded in [models.UserState.CompletedShows].
func NewClassifier(catalog services.Catalog, blocklist []string, skipCompleted bool) *Classifier {
	if blocklist == nil {
		blocklist = DefaultBlocklist
	}
	lowered := make([]string, 0, len(blocklist))
	for _, kw := range blocklist {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Classifier{catalog: catalog, blocklist: lowered, skipCompleted: skipCompleted}
}

// Blocked reports whether title contains a blocklisted substring, ignoring case.
func (c *Classifier) Blocked(title string) bool {
	title = strings.ToLower(title)
	for _, kw := range c.blocklist {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// ClassifyShow walks the show's feed newest-first until the stored high-water mark
// and returns the qualifying episodes in feed order.
//
// state.ShowProgress is advanced to the newest episode seen, whether or not it qualified.
func (c *Classifier) ClassifyShow(ctx context.Context, show models.Show, state *models.UserState) ([]models.Episode, error) {
	mark := state.ShowProgress[show.ID]

	var (
		found  []models.Episode
		newest string
		cursor string
	)

scan:
	for {
		page, err := c.catalog.ShowEpisodes(ctx, show.ID, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list episodes for %s: %w", show.Name, err)
		}

		for _, ep := range page.Items {
			if ep == nil || ep.ID == "" {
				continue
			}
			if newest == "" {
				newest = ep.ID
			}
			if mark != "" && ep.ID == mark {
				break scan
			}
			if ep.FullyPlayed || c.Blocked(ep.Title) {
				continue
			}
			found = append(found, *ep)
		}

		if !page.HasMore() {
			break
		}
		cursor = page.Next
	}

	if newest != "" {
		state.ShowProgress[show.ID] = newest
	}
	if c.skipCompleted && len(found) == 0 && show.TotalEpisodes > 0 {
		state.CompletedShows[show.ID] = show.Name
	}

	return found, nil
}
