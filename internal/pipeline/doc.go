// Package pipeline runs a conversion from an annotation export to a dataset.
//
// A run validates every label against the class mapping before touching the
// output directory, resolves each task's video, merges plans that point at
// the same file, and then drains each video's frames in batches into the
// selected dataset emitter. Per-task, per-video, per-frame and per-box
// problems are tallied into the Summary and logged as warnings; only a
// missing class mapping, a locked output directory, or a write failure stops
// the run.
//
// Videos are processed on a bounded errgroup when Workers > 1. Catalog ids
// stay unique because the dataset emitter draws them from one Sequencer.
package pipeline
