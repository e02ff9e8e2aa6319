package models

import "time"

// MillisPerMinute converts episode durations to whole-minute buckets.
const MillisPerMinute = 60000

// Show is a podcast saved to the user's library.
type Show struct {
	ID            string
	Name          string
	TotalEpisodes int
}

// Episode is a single entry in a show's newest-first feed.
type Episode struct {
	ID          string
	ShowID      string
	Title       string
	ReleasedAt  time.Time
	DurationMS  int
	FullyPlayed bool
	URI         string
}

// Bucket returns the episode duration floored to whole minutes.
func (e Episode) Bucket() int {
	return e.DurationMS / MillisPerMinute
}

// Playlist is the subset of playlist metadata podq uses.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// User is the authenticated Spotify profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
