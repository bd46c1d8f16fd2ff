// Package history keeps a SQLite ledger of conversion runs.
//
// Every convert invocation records a row when it starts and updates it when
// it finishes, including per-kind issue counts and, on failure, the error
// category from internal/services. The publish command attaches the upload
// location to the run that produced the dataset. The database lives at
// <paths.state_dir>/history.db and is migrated from embedded SQL files.
package history
