package imgproc

import "math"

// IneligibleCost is the sentinel cost the tracker assigns to a (current,
// previous) region pair whose IoU falls below its matching threshold. A
// solved pair with this cost is, by construction, never preferred over a
// real match and is treated as "no match" by the caller.
const IneligibleCost = 1.0

// SolveAssignment finds the assignment of rows to columns in the n x m cost
// matrix that minimizes total cost, using the O(n^2*m) Hungarian (Kuhn-
// Munkres) algorithm. The matrix need not be square: it is padded with
// IneligibleCost to make it square before solving, and padding assignments
// are reported back as unmatched.
//
// Returns rowToCol of length n; rowToCol[i] is the column matched to row i,
// or -1 if row i was matched to a padding column (i.e. is unmatched).
func SolveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	dim := n
	if m > dim {
		dim = m
	}

	sq := make([][]float64, dim)
	for i := range sq {
		sq[i] = make([]float64, dim)
		for j := range sq[i] {
			if i < n && j < m {
				sq[i][j] = cost[i][j]
			} else {
				sq[i][j] = IneligibleCost
			}
		}
	}

	assign := solveSquare(sq)

	rowToCol := make([]int, n)
	for i := 0; i < n; i++ {
		j := assign[i]
		if j >= m {
			rowToCol[i] = -1
		} else {
			rowToCol[i] = j
		}
	}
	return rowToCol
}

// solveSquare is the classical potential-based Hungarian algorithm over a
// dim x dim cost matrix. 1-indexed internally to match the textbook
// formulation; converted back to 0-indexed results.
func solveSquare(cost [][]float64) []int {
	dim := len(cost)
	const inf = math.MaxFloat64 / 4

	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1) // p[j] = row matched to column j (1-indexed row, 0 = none)
	way := make([]int, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, dim+1)
		used := make([]bool, dim+1)
		for j := range minv {
			minv[j] = inf
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assign := make([]int, dim)
	for j := 1; j <= dim; j++ {
		if p[j] != 0 {
			assign[p[j]-1] = j - 1
		}
	}
	return assign
}
