// Package annotation decodes Label Studio video exports and projects their
// sparse keyframes onto per-video frame plans.
//
// A FramePlan lists the 0-based frame indices a video must yield, in
// ascending order without duplicates, together with the boxes to write for
// each index. Labels are checked against the ClassMapping before any plan is
// built so an unmapped class fails the run before output exists.
package annotation
