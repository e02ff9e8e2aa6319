// Package services implements the Spotify Web API client podq uses to read a user's saved shows and to rewrite the queue playlist.
//
// # Catalog and Playlist Interfaces
//
// The update engine depends on two small interfaces, [Catalog] and [PlaylistWriter], combined as [PodcastService].
// Pagination is exposed through [Page]: a page carries its items and an opaque Next cursor that is empty once the feed is exhausted.
//
// # Spotify Implementation
//
// [SpotifyService] owns the OAuth2 application config (authorization URL, code exchange).
// [SpotifyService.Client] returns a per-user [SpotifyClient] whose [oauth2.Client] refreshes expired tokens automatically.
// Refreshed tokens are reported through a callback so callers can persist them.
//
// Requests are paced by a [rate.Limiter]; there are no automatic retries.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : 401 from Spotify or missing token
//   - [shared.ErrAPIRequest] : any other non-2xx response or transport failure
//   - [shared.ErrPlaylistNotFound] : 404 on a playlist endpoint
//
// # API Mappings
//
// Feed entries that Spotify returns as null are dropped while decoding a page as nil entries so the scanner can skip them.
// Release dates with day, month or year precision and timestamps without an offset are interpreted as UTC.
package services
