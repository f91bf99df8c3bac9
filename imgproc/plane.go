package imgproc

// U16Plane is a single (H,W) plane of raw pixel values, row-major.
type U16Plane struct {
	Data []uint16
	H, W int
}

// F32Plane is a single (H,W) plane of floating-point values, row-major.
type F32Plane struct {
	Data []float32
	H, W int
}

// BoolPlane is a single (H,W) binary mask, row-major.
type BoolPlane struct {
	Data []bool
	H, W int
}

// NewU16Plane allocates a zeroed plane of the given shape.
func NewU16Plane(h, w int) U16Plane { return U16Plane{Data: make([]uint16, h*w), H: h, W: w} }

// NewF32Plane allocates a zeroed plane of the given shape.
func NewF32Plane(h, w int) F32Plane { return F32Plane{Data: make([]float32, h*w), H: h, W: w} }

// NewBoolPlane allocates a zeroed (all-false) plane of the given shape.
func NewBoolPlane(h, w int) BoolPlane { return BoolPlane{Data: make([]bool, h*w), H: h, W: w} }

// At returns the value at (y,x).
func (p U16Plane) At(y, x int) uint16 { return p.Data[y*p.W+x] }

// Set assigns the value at (y,x).
func (p U16Plane) Set(y, x int, v uint16) { p.Data[y*p.W+x] = v }

// At returns the value at (y,x).
func (p F32Plane) At(y, x int) float32 { return p.Data[y*p.W+x] }

// Set assigns the value at (y,x).
func (p F32Plane) Set(y, x int, v float32) { p.Data[y*p.W+x] = v }

// At returns the value at (y,x).
func (p BoolPlane) At(y, x int) bool { return p.Data[y*p.W+x] }

// Set assigns the value at (y,x).
func (p BoolPlane) Set(y, x int, v bool) { p.Data[y*p.W+x] = v }

// Clone returns an independent copy of p.
func (p BoolPlane) Clone() BoolPlane {
	out := NewBoolPlane(p.H, p.W)
	copy(out.Data, p.Data)
	return out
}

// replicateIndex clamps idx into [0, n) to implement replicate (edge)
// padding, used by the box filter.
func replicateIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
