// Package services defines shared helpers consumed by the conversion pipeline
// and its external integrations.
//
// It provides context helpers that stamp run IDs, stage names, and the video
// being processed for logging, plus structured error markers and the Wrap
// helper so failures from ffmpeg, Label Studio, or S3 carry a consistent
// classification into run history and CLI output.
package services
