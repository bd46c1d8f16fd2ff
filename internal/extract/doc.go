// Package extract pulls selected frames out of a video in a single forward
// decode pass.
//
// Open probes the video, partitions the requested indices into reachable and
// out-of-range, and starts the decoder. NextBatch then yields at most
// BatchSize frames per call so that callers can persist a batch before the
// next one is decoded; frames between requested indices are read and thrown
// away. When the last requested index is emitted the decoder is stopped.
//
// The production decoder shells out to ffprobe and ffmpeg (rawvideo rgb24
// over a pipe). Tests substitute an in-memory Decoder.
package extract
