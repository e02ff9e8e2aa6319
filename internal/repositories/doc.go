// Package repositories implements persistence for per-user state, update jobs and OAuth tokens.
//
// Key Implementations:
//   - [FileStateStore] : one JSON document per user on disk, guarded by a lock file
//   - [SQLStateStore] : the same JSON document stored in the user_states table
//   - [MemoryJobStore] : process-local job registry
//   - [SQLJobStore] : job registry in the jobs table, shared by every process using the database
//   - [TokenRepository] : per-user Spotify tokens for the web flow
//
// [NewStateStore] and [NewJobStore] pick an implementation from configuration.
package repositories
