// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect returns stream and container metadata; helpers on Stream derive the
// frame rate and frame count the extractor needs to bound its decode pass.
// CountFrames performs a full decode count for containers that omit
// nb_frames.
package ffprobe
