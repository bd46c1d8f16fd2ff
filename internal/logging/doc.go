// Package logging assembles structured slog loggers and formatting helpers used
// across labelreel.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context helpers that tag log lines with the run id, pipeline stage, and
// video being processed. NewNop provides a silent logger for tests.
package logging
