package imgproc

// DiskOffsets returns the (dy,dx) offsets of a disk structuring element of
// the given Euclidean radius.
func DiskOffsets(radius int) [][2]int {
	var offs [][2]int
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dy*dy+dx*dx <= r2 {
				offs = append(offs, [2]int{dy, dx})
			}
		}
	}
	return offs
}

// Erode applies one binary erosion pass with the given structuring element
// offsets; pixels outside the plane are treated as background, so the
// plane border erodes inward.
func Erode(mask BoolPlane, offsets [][2]int) BoolPlane {
	out := NewBoolPlane(mask.H, mask.W)
	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			if !mask.At(y, x) {
				continue
			}
			all := true
			for _, o := range offsets {
				ny, nx := y+o[0], x+o[1]
				if ny < 0 || ny >= mask.H || nx < 0 || nx >= mask.W || !mask.At(ny, nx) {
					all = false
					break
				}
			}
			out.Set(y, x, all)
		}
	}
	return out
}

// Dilate applies one binary dilation pass with the given structuring
// element offsets.
func Dilate(mask BoolPlane, offsets [][2]int) BoolPlane {
	out := NewBoolPlane(mask.H, mask.W)
	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			if mask.At(y, x) {
				out.Set(y, x, true)
				continue
			}
			for _, o := range offsets {
				ny, nx := y+o[0], x+o[1]
				if ny >= 0 && ny < mask.H && nx >= 0 && nx < mask.W && mask.At(ny, nx) {
					out.Set(y, x, true)
					break
				}
			}
		}
	}
	return out
}

// ErodeN applies Erode n times in sequence.
func ErodeN(mask BoolPlane, offsets [][2]int, n int) BoolPlane {
	for i := 0; i < n; i++ {
		mask = Erode(mask, offsets)
	}
	return mask
}

// DilateN applies Dilate n times in sequence.
func DilateN(mask BoolPlane, offsets [][2]int, n int) BoolPlane {
	for i := 0; i < n; i++ {
		mask = Dilate(mask, offsets)
	}
	return mask
}

// Opening performs iterations erosions followed by iterations dilations
// with a disk structuring element of the given radius.
func Opening(mask BoolPlane, radius, iterations int) BoolPlane {
	offs := DiskOffsets(radius)
	return DilateN(ErodeN(mask, offs, iterations), offs, iterations)
}

// Closing performs iterations dilations followed by iterations erosions
// with a disk structuring element of the given radius.
func Closing(mask BoolPlane, radius, iterations int) BoolPlane {
	offs := DiskOffsets(radius)
	return ErodeN(DilateN(mask, offs, iterations), offs, iterations)
}

// FillHoles fills 4-connected background regions that are fully enclosed by
// foreground. Background reachable from the frame border is left alone.
func FillHoles(mask BoolPlane) BoolPlane {
	h, w := mask.H, mask.W
	reachable := make([]bool, h*w)
	var stack [][2]int
	push := func(y, x int) {
		if y < 0 || y >= h || x < 0 || x >= w {
			return
		}
		idx := y*w + x
		if mask.At(y, x) || reachable[idx] {
			return
		}
		reachable[idx] = true
		stack = append(stack, [2]int{y, x})
	}
	for x := 0; x < w; x++ {
		push(0, x)
		push(h-1, x)
	}
	for y := 0; y < h; y++ {
		push(y, 0)
		push(y, w-1)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p[0]-1, p[1])
		push(p[0]+1, p[1])
		push(p[0], p[1]-1)
		push(p[0], p[1]+1)
	}
	out := NewBoolPlane(h, w)
	for i := range out.Data {
		out.Data[i] = mask.Data[i] || !reachable[i]
	}
	return out
}
