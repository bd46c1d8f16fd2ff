// Package videoresolve maps the video reference recorded in an annotation
// export to a file in the local video directory.
//
// References usually look like "/data/upload/5/3b780495-clip.mp4": Label
// Studio prefixes uploads with an opaque id and a dash. The Resolver tries an
// ordered chain of strategies and stops at the first hit:
//
//   - exact: basename equality
//   - suffix: the part after the first dash equals a basename
//   - fuzzy: folded, extension-stripped stems score above a threshold
//   - substring: the cleaned stem contains, or is contained by, a candidate stem
//
// Each strategy carries a confidence tier so callers can surface weak matches.
// A reference that matches nothing yields ErrNoMatchingVideo; callers skip the
// task and continue.
package videoresolve
