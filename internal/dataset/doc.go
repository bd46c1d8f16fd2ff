// Package dataset writes extracted frames and their boxes as an
// object-detection dataset.
//
// Two layouts share the Emitter interface. The YOLO layout writes one image
// and one normalized label file per frame plus classes.txt and data.yaml.
// The COCO layout writes the images and accumulates a single catalog that is
// serialized to annotations.json on Finalize. Callers pick a layout with New
// and never branch on it again.
//
// Box coordinates arrive as percentages of the frame size with a top-left
// origin. A box that collapses to zero width or height after clamping is
// rejected with ErrInvalidBBox; the frame itself is still written.
package dataset
