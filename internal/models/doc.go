// Package models defines domain entities and persistence interfaces for the podq smart podcast queue.
//
// The package contains two categories of types:
//
// 1. Transient catalog values fetched from Spotify during a run:
//   - [Show] : a saved podcast with its total episode count
//   - [Episode] : one feed entry with duration, release instant and playback state
//   - [Playlist], [User] : playlist and profile metadata
//
// 2. Persistent records:
//   - [UserState] : per-user scan progress, pacing cursor and settings
//   - [Job] : background update status published by the worker and read by pollers
//
// Storage is abstracted by [StateStore] and [JobStore]; implementations live in the repositories package.
package models
