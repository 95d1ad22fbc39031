package recommend

import "math"

// ratingMatrix is a sparse user-by-book rating matrix assembled from
// coordinate triples. Duplicate coordinates keep the last value written,
// matching coordinate-format construction semantics.
type ratingMatrix struct {
	rows []map[int]float64
}

func newRatingMatrix(numRows int) *ratingMatrix {
	rows := make([]map[int]float64, numRows)
	for i := range rows {
		rows[i] = make(map[int]float64)
	}
	return &ratingMatrix{rows: rows}
}

func (m *ratingMatrix) Set(row, col int, rating float64) {
	m.rows[row][col] = rating
}

// CosineAgainst computes the cosine similarity of the given row against every
// row of the matrix, itself included. Rows with zero norm score 0.
func (m *ratingMatrix) CosineAgainst(row int) []float64 {
	ref := m.rows[row]
	refNorm := rowNorm(ref)

	sims := make([]float64, len(m.rows))
	if refNorm == 0 {
		return sims
	}
	for i, other := range m.rows {
		norm := rowNorm(other)
		if norm == 0 {
			continue
		}
		var dot float64
		// Iterate the smaller row.
		a, b := ref, other
		if len(b) < len(a) {
			a, b = b, a
		}
		for col, v := range a {
			if w, ok := b[col]; ok {
				dot += v * w
			}
		}
		sims[i] = dot / (refNorm * norm)
	}
	return sims
}

func rowNorm(row map[int]float64) float64 {
	var sum float64
	for _, v := range row {
		sum += v * v
	}
	return math.Sqrt(sum)
}
