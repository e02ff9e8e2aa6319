// Package server provides HTTP routing, middleware, OAuth handling and the podq web API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// [BasicRouter] uses [http.ServeMux] method patterns.
//
// # Web API
//
// [Server] is built once at startup and owns sessions, the update dispatcher and the listener.
// All responses are JSON.
//
//	GET  /                          session summary: user, state, is_running
//	GET  /login, /callback, /logout Spotify authorization code flow
//	POST /start-update              start a run for the stored playlist (202 {started})
//	POST /create-playlist-and-scan  create a private queue playlist, store it, start a run
//	POST /set-playlist              playlist_input: URL, URI or bare id; resets the pacing cursor
//	POST /settings                  min_duration in minutes, clamped to 0
//	GET  /status                    {status: idle} or the job; a finished job is cleared on read
//
// # CLI OAuth Callback
//
// [OAuthHandler] serves a single "/callback" for `podq auth`: it validates the state parameter,
// exchanges the code and delivers the token through a channel. It only processes one callback.
package server
