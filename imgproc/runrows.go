package imgproc

import "sort"

// Run is a maximal horizontal run of foreground pixels within one image
// row: pixels [X0,X1) of row Row are foreground. This is the per-row
// analogue of an interval-union endpoint representation
// (interval.EndpointIndex / interval.UnionScanner), used here to label
// 4-connected components without a union-find over every pixel.
type Run struct {
	Row, X0, X1 int
}

// Len returns the number of pixels in the run.
func (r Run) Len() int { return r.X1 - r.X0 }

// Region is one 4-connected component of a binary mask.
type Region struct {
	Label                int
	Area                 int
	Y0, X0, Y1, X1       int // bounding box, (Y1,X1) exclusive
	CentroidY, CentroidX float64
	Runs                 []Run // sorted by (Row, X0)
}

// extractRuns scans one mask row and returns its maximal foreground runs,
// the same "sorted endpoint sequence" idea as interval.NewUnionScanner
// applied to a single row instead of a genomic coordinate axis.
func extractRuns(mask BoolPlane, row int) []Run {
	var runs []Run
	x := 0
	w := mask.W
	for x < w {
		if !mask.At(row, x) {
			x++
			continue
		}
		start := x
		for x < w && mask.At(row, x) {
			x++
		}
		runs = append(runs, Run{Row: row, X0: start, X1: x})
	}
	return runs
}

// runsOverlap reports whether two runs on adjacent rows share at least one
// column, i.e. their [X0,X1) intervals intersect — the same interval-
// intersection test interval.go's BED-union code uses, here deciding
// 4-connectivity between rows instead of chromosome overlap.
func runsOverlap(a, b Run) bool {
	return a.X0 < b.X1 && b.X0 < a.X1
}

type dsu struct{ parent []int }

func newDSU(n int) *dsu {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &dsu{parent: p}
}

func (d *dsu) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

func (d *dsu) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra != rb {
		d.parent[ra] = rb
	}
}

// ConnectedComponents labels the 4-connected foreground components of mask.
// Labels are assigned 1..N in row-major order of first appearance (the
// top-left pixel of each region is found first), matching the tracker's
// ordering requirement for its own cell IDs.
func ConnectedComponents(mask BoolPlane) (labels []int32, regions []Region) {
	labels = make([]int32, mask.H*mask.W)

	rowRuns := make([][]Run, mask.H)
	var allRuns []Run
	rowRunIdx := make([][]int, mask.H) // index into allRuns, per row
	for y := 0; y < mask.H; y++ {
		runs := extractRuns(mask, y)
		rowRuns[y] = runs
		idxs := make([]int, len(runs))
		for i, r := range runs {
			idxs[i] = len(allRuns)
			allRuns = append(allRuns, r)
		}
		rowRunIdx[y] = idxs
	}

	d := newDSU(len(allRuns))
	for y := 1; y < mask.H; y++ {
		prev, cur := rowRuns[y-1], rowRuns[y]
		prevIdx, curIdx := rowRunIdx[y-1], rowRunIdx[y]
		i, j := 0, 0
		for i < len(prev) && j < len(cur) {
			if runsOverlap(prev[i], cur[j]) {
				d.union(prevIdx[i], curIdx[j])
			}
			// Advance whichever run ends first; a run can overlap
			// several runs on the adjacent row.
			if prev[i].X1 < cur[j].X1 {
				i++
			} else {
				j++
			}
		}
	}

	labelOfRoot := make(map[int]int)
	regionOfRoot := make(map[int]*Region)
	nextLabel := 1
	runCursor := 0
	for y := 0; y < mask.H; y++ {
		for _, r := range rowRuns[y] {
			root := d.find(runCursor)
			lbl, ok := labelOfRoot[root]
			if !ok {
				lbl = nextLabel
				nextLabel++
				labelOfRoot[root] = lbl
				regionOfRoot[root] = &Region{Label: lbl, Y0: r.Row, X0: r.X0, Y1: r.Row + 1, X1: r.X1}
			}
			reg := regionOfRoot[root]
			reg.Runs = append(reg.Runs, r)
			reg.Area += r.Len()
			if r.Row < reg.Y0 {
				reg.Y0 = r.Row
			}
			if r.Row+1 > reg.Y1 {
				reg.Y1 = r.Row + 1
			}
			if r.X0 < reg.X0 {
				reg.X0 = r.X0
			}
			if r.X1 > reg.X1 {
				reg.X1 = r.X1
			}
			w := mask.W
			base := r.Row * w
			for x := r.X0; x < r.X1; x++ {
				labels[base+x] = int32(lbl)
			}
			runCursor++
		}
	}

	regions = make([]Region, 0, len(regionOfRoot))
	for _, reg := range regionOfRoot {
		var sumY, sumX float64
		for _, r := range reg.Runs {
			n := float64(r.Len())
			sumY += float64(r.Row) * n
			sumX += (float64(r.X0+r.X1-1) / 2.0) * n
		}
		reg.CentroidY = sumY / float64(reg.Area)
		reg.CentroidX = sumX / float64(reg.Area)
		regions = append(regions, *reg)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Label < regions[j].Label })
	return labels, regions
}

// BBoxIoU returns the intersection-over-union of two regions' bounding
// boxes, used as the §4.5 pre-filter before pixel IoU confirmation.
func BBoxIoU(a, b Region) float64 {
	iy0, ix0 := maxInt(a.Y0, b.Y0), maxInt(a.X0, b.X0)
	iy1, ix1 := minInt(a.Y1, b.Y1), minInt(a.X1, b.X1)
	if iy1 <= iy0 || ix1 <= ix0 {
		return 0
	}
	inter := (iy1 - iy0) * (ix1 - ix0)
	areaA := (a.Y1 - a.Y0) * (a.X1 - a.X0)
	areaB := (b.Y1 - b.Y0) * (b.X1 - b.X0)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// PixelIoU returns the exact pixel-set intersection-over-union of two
// regions, computed by merging their sorted row runs — the same sweep
// ConnectedComponents uses to detect row-to-row overlap, applied here
// between two independent regions' run lists.
func PixelIoU(a, b Region) float64 {
	inter := runIntersectionArea(a.Runs, b.Runs)
	if inter == 0 {
		return 0
	}
	union := a.Area + b.Area - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func runIntersectionArea(a, b []Run) int {
	// Both slices are sorted by (Row, X0).
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Row != b[j].Row {
			if a[i].Row < b[j].Row {
				i++
			} else {
				j++
			}
			continue
		}
		x0 := maxInt(a[i].X0, b[j].X0)
		x1 := minInt(a[i].X1, b[j].X1)
		if x1 > x0 {
			inter += x1 - x0
		}
		if a[i].X1 < b[j].X1 {
			i++
		} else {
			j++
		}
	}
	return inter
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
