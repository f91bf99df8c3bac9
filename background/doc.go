// Package background implements per-frame background surface estimation
// over an overlapping tile grid: foreground-masked medians per tile,
// nearest-neighbor fill of tiles with too few background pixels, and
// bicubic interpolation back to the pixel grid.
package background
