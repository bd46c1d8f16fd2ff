// Package preflight provides readiness checks for the tools, paths and
// services a labelreel run depends on.
//
// The doctor command prints every result. The convert command runs the
// subset that would make a run fail late (decode tools, an unwritable output
// location) before any frame is decoded.
package preflight
