// Package tasks implements the incremental smart-queue update.
//
// # Pipeline
//
//  1. [Scanner.ListShows] : enumerate the user's saved shows
//  2. [Scanner.Scan] : run the [Classifier] on each show and split results into priority
//     (released after the previous successful run) and backlog
//  3. [DetermineNextBatch] : pick one duration bucket of backlog, rotating a cursor across runs
//  4. [UpdateEngine.Run] : order URIs, rewrite the playlist, commit state
//
// The classifier walks each feed newest-first and stops at the stored high-water mark,
// so steady-state runs only read new episodes.
//
// # Progress Reporting
//
// Progress uses non-blocking channels. The [ProgressUpdate] struct contains phase, step counters,
// messages, and optional data. Updates use select with default to prevent blocking.
//
// # Background Runs
//
// [Dispatcher] starts runs as detached goroutines, at most one per user, and mirrors progress into a
// [models.JobStore]. Pollers read it through [Dispatcher.Status]; a terminal read clears the entry.
package tasks
