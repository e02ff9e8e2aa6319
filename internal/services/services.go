// package services defines the Spotify-facing interfaces used by the update engine
package services

import (
	"context"

	"github.com/desertthunder/podq/internal/models"
	"golang.org/x/oauth2"
)

// MaxPlaylistItems is the largest number of URIs Spotify accepts per add-items call.
const MaxPlaylistItems = 100

// Page is one page of a paginated listing.
//
// Items may contain nil entries where the upstream feed returned null.
type Page[T any] struct {
	Items []*T
	Total int
	Next  string // cursor for the next page; empty when there are no more
}

// HasMore reports whether another page can be fetched.
func (p *Page[T]) HasMore() bool {
	return p != nil && p.Next != ""
}

// Catalog lists a user's saved shows and a show's episodes.
//
// An empty cursor requests the first page; otherwise pass the previous page's Next.
type Catalog interface {
	SavedShows(ctx context.Context, cursor string) (*Page[models.Show], error)
	ShowEpisodes(ctx context.Context, showID, cursor string) (*Page[models.Episode], error)
}

// PlaylistWriter mutates playlists owned by the user.
type PlaylistWriter interface {
	// ReplaceItems replaces the playlist contents; an empty slice clears it.
	ReplaceItems(ctx context.Context, playlistID string, uris []string) error
	// AddItems appends at most [MaxPlaylistItems] URIs.
	AddItems(ctx context.Context, playlistID string, uris []string) error
	CreatePlaylist(ctx context.Context, ownerID, name string, public bool, description string) (*models.Playlist, error)
}

// PodcastService is everything an update run needs from upstream.
type PodcastService interface {
	Catalog
	PlaylistWriter
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Authorizer runs the OAuth2 authorization code flow and builds per-user clients.
type Authorizer interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// NewClient returns a client acting as the token's owner; onRefresh receives refreshed tokens.
	NewClient(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) PodcastService
}
