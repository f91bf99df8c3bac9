// Package track implements the IoU + Hungarian tracker: frame-to-frame
// cell identity assignment over a segmentation stack via bounding-box IoU
// pre-filtering, pixel IoU confirmation, and a Hungarian assignment
// minimizing total cost.
package track
