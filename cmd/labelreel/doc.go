// Package main hosts the labelreel CLI entrypoint and command graph.
//
// The Cobra-based command tree loads configuration, builds the structured
// logger and hands off to the internal packages: convert runs the pipeline,
// resolve and plan are dry runs over the same inputs, fetch talks to Label
// Studio, publish uploads a finished dataset, preview renders boxes for QA,
// history lists recorded runs and doctor reports readiness.
//
// Keep this package lean: add behavior to the internal packages first, then
// surface it through commands or flags here.
package main
