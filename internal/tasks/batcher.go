package tasks

import (
	"maps"
	"slices"

	"github.com/desertthunder/podq/internal/models"
)

// DetermineNextBatch picks the backlog bucket to surface after lastMinute.
//
// Episodes are bucketed by whole minutes and buckets below minDuration are dropped.
// The result is the smallest bucket strictly above lastMinute, or the smallest bucket
// overall once every bucket has been visited. An empty backlog yields (nil, [models.CursorUnset]).
func DetermineNextBatch(backlog []models.Episode, lastMinute, minDuration int) ([]models.Episode, int) {
	byMinute := make(map[int][]models.Episode)
	for _, ep := range backlog {
		minute := ep.Bucket()
		if minute < minDuration {
			continue
		}
		byMinute[minute] = append(byMinute[minute], ep)
	}

	if len(byMinute) == 0 {
		return nil, models.CursorUnset
	}

	minutes := slices.Sorted(maps.Keys(byMinute))

	next := minutes[0]
	for _, m := range minutes {
		if m > lastMinute {
			next = m
			break
		}
	}

	return byMinute[next], next
}
