// Package cluster is agglomerative hierarchical clustering of named feature
// vectors into Newick dendrograms.
package cluster

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Distance metrics.
const (
	Euclidean   = "euclidean"
	Manhattan   = "manhattan"
	Cosine      = "cosine"
	Correlation = "correlation"
)

// Linkage methods.
const (
	Single   = "single"
	Complete = "complete"
	Average  = "average"
	Ward     = "ward"
)

// Config is a named clustering recipe.
type Config struct {
	// Name the dendrogram is stored under
	Name string

	// Features are the split metadata columns making up each row
	Features []string

	// Distance is the metric between rows
	Distance string

	// Linkage is how the distance between two clusters is derived
	Linkage string

	// Normalize scales every feature column by its maximum before clustering
	Normalize bool
}

// Matrix is a set of rows, each a named feature vector.
type Matrix struct {
	Rows []string
	Data [][]float64
}

// Validate checks that the matrix is rectangular, non-empty and finite.
func (m Matrix) Validate() error {
	if len(m.Rows) == 0 {
		return fmt.Errorf("no rows to cluster")
	}
	if len(m.Rows) != len(m.Data) {
		return fmt.Errorf("%d row names for %d rows", len(m.Rows), len(m.Data))
	}

	cols := len(m.Data[0])
	if cols == 0 {
		return fmt.Errorf("rows have no features")
	}
	for i, row := range m.Data {
		if len(row) != cols {
			return fmt.Errorf("row %s has %d features, expected %d", m.Rows[i], len(row), cols)
		}
		if floats.HasNaN(row) {
			return fmt.Errorf("row %s has a NaN feature", m.Rows[i])
		}
		for _, v := range row {
			if math.IsInf(v, 0) {
				return fmt.Errorf("row %s has an infinite feature", m.Rows[i])
			}
		}
	}
	return nil
}

// Normalize returns a copy of the matrix with every column divided by its
// largest absolute value. All-zero columns are left as they are.
func (m Matrix) Normalize() Matrix {
	out := Matrix{Rows: m.Rows, Data: make([][]float64, len(m.Data))}
	for i, row := range m.Data {
		out.Data[i] = append([]float64(nil), row...)
	}
	if len(out.Data) == 0 {
		return out
	}

	col := make([]float64, len(out.Data))
	for j := range out.Data[0] {
		for i, row := range out.Data {
			col[i] = math.Abs(row[j])
		}
		max := floats.Max(col)
		if max == 0 {
			continue
		}
		for _, row := range out.Data {
			row[j] /= max
		}
	}
	return out
}

// Newick clusters the rows of m and returns the dendrogram in Newick format.
// Branch lengths are half the merge distance, so leaves sit at height 0.
func Newick(m Matrix, metric, linkage string) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	update, err := lanceWilliams(linkage)
	if err != nil {
		return "", err
	}

	n := len(m.Rows)
	if n == 1 {
		return label(m.Rows[0]) + ";", nil
	}

	d, err := Distances(m, metric)
	if err != nil {
		return "", err
	}
	if linkage == Ward {
		for i := range d {
			d[i] *= d[i]
		}
	}

	nodes := make([]node, n)
	for i, name := range m.Rows {
		nodes[i] = node{newick: label(name), size: 1}
	}
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}

	for merges := 0; merges < n-1; merges++ {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if alive[j] && d[index(n, i, j)] < best {
					best, bi, bj = d[index(n, i, j)], i, j
				}
			}
		}

		dij := best
		if linkage == Ward {
			best = math.Sqrt(best)
		}
		height := best / 2

		a, b := nodes[bi], nodes[bj]
		for k := 0; k < n; k++ {
			if !alive[k] || k == bi || k == bj {
				continue
			}
			dik, djk := d[index(n, bi, k)], d[index(n, bj, k)]
			d[index(n, bi, k)] = update(dik, djk, dij, float64(a.size), float64(b.size), float64(nodes[k].size))
		}

		nodes[bi] = node{
			newick: "(" + a.branch(height) + "," + b.branch(height) + ")",
			size:   a.size + b.size,
			height: height,
		}
		alive[bj] = false
	}
	return nodes[0].newick + ";", nil
}

// Distances is the condensed upper triangle of the pairwise distance matrix
// between the rows of m.
func Distances(m Matrix, metric string) ([]float64, error) {
	dist, err := distanceFunc(metric)
	if err != nil {
		return nil, err
	}

	n := len(m.Data)
	d := make([]float64, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v, err := dist(m.Data[i], m.Data[j])
			if err != nil {
				return nil, fmt.Errorf("%s distance between %s and %s: %v", metric, m.Rows[i], m.Rows[j], err)
			}
			d[index(n, i, j)] = v
		}
	}
	return d, nil
}

type node struct {
	newick string
	size   int
	height float64
}

// branch is the node as a child of a parent at height.
func (n node) branch(height float64) string {
	bl := height - n.height
	if bl < 0 {
		bl = 0
	}
	return n.newick + ":" + strconv.FormatFloat(bl, 'g', -1, 64)
}

// index of (i, j), i < j, in a condensed matrix of n rows.
func index(n, i, j int) int {
	if i > j {
		i, j = j, i
	}
	return n*i - i*(i+1)/2 + j - i - 1
}

// label quotes names that Newick would otherwise split on.
func label(name string) string {
	if strings.ContainsAny(name, "()[]':;, \t") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

type updateFunc func(dik, djk, dij, ni, nj, nk float64) float64

func lanceWilliams(linkage string) (updateFunc, error) {
	switch linkage {
	case Single:
		return func(dik, djk, _, _, _, _ float64) float64 { return math.Min(dik, djk) }, nil
	case Complete:
		return func(dik, djk, _, _, _, _ float64) float64 { return math.Max(dik, djk) }, nil
	case Average:
		return func(dik, djk, _, ni, nj, _ float64) float64 { return (ni*dik + nj*djk) / (ni + nj) }, nil
	case Ward:
		return func(dik, djk, dij, ni, nj, nk float64) float64 {
			return ((ni+nk)*dik + (nj+nk)*djk - nk*dij) / (ni + nj + nk)
		}, nil
	default:
		return nil, fmt.Errorf("unknown linkage %q", linkage)
	}
}

type distFunc func(a, b []float64) (float64, error)

func distanceFunc(metric string) (distFunc, error) {
	switch metric {
	case Euclidean:
		return func(a, b []float64) (float64, error) { return floats.Distance(a, b, 2), nil }, nil
	case Manhattan:
		return func(a, b []float64) (float64, error) { return floats.Distance(a, b, 1), nil }, nil
	case Cosine:
		return func(a, b []float64) (float64, error) {
			na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
			if na == 0 || nb == 0 {
				return 0, fmt.Errorf("cosine is undefined for a zero vector")
			}
			return 1 - floats.Dot(a, b)/(na*nb), nil
		}, nil
	case Correlation:
		return func(a, b []float64) (float64, error) {
			r := stat.Correlation(a, b, nil)
			if math.IsNaN(r) {
				return 0, fmt.Errorf("correlation is undefined for constant rows")
			}
			return 1 - r, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown distance %q", metric)
	}
}
