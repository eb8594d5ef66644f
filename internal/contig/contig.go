// Package contig is the contig/split tree that a profiling run fills in:
// windows on each contig, their coverage, and their variability.
package contig

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Coverage is the read depth across a sequence and its summary.
type Coverage struct {
	// C is the read depth at each position
	C []int `json:"c"`

	// Mean of C
	Mean float64 `json:"mean"`

	// Std is the standard deviation of C
	Std float64 `json:"std"`
}

// ColumnProfile is a single position, within a split, that showed enough
// disagreement between reads to be reported.
type ColumnProfile struct {
	// Split is the name of the split the position is in
	Split string `json:"split_name"`

	// Pos is the 0-based position in the split
	Pos int `json:"pos"`

	// PosInContig is the 0-based position in the parent contig
	PosInContig int `json:"pos_in_contig"`

	// Coverage is the depth of the column (A+C+G+T+N)
	Coverage int `json:"coverage"`

	A int `json:"A"`
	C int `json:"C"`
	G int `json:"G"`
	T int `json:"T"`
	N int `json:"N"`

	// Consensus is the most frequent base
	Consensus string `json:"consensus"`

	// Competing is the two most frequent bases, in alphabetical order
	Competing string `json:"competing_nts"`

	// N2N1Ratio is the count of the second most frequent base over the most frequent
	N2N1Ratio float64 `json:"n2n1ratio"`
}

// Auxiliary is the variability of a split. It is only filled for
// contigs that clear the mean coverage threshold.
type Auxiliary struct {
	// V is the variability score at each position of the split
	V []float64 `json:"v"`

	// CompetingNucleotides maps positions in the split to their competing bases
	CompetingNucleotides map[int]string `json:"competing_nucleotides"`

	// ColumnProfiles are the reported positions keyed by their position in the split
	ColumnProfiles map[int]ColumnProfile `json:"column_profiles"`
}

// Record adds a reported column to the auxiliary.
func (a *Auxiliary) Record(cp ColumnProfile) {
	if a.CompetingNucleotides == nil {
		a.CompetingNucleotides = make(map[int]string)
		a.ColumnProfiles = make(map[int]ColumnProfile)
	}
	a.CompetingNucleotides[cp.Pos] = cp.Competing
	a.ColumnProfiles[cp.Pos] = cp
}

// Split is a window on a contig: the unit of reporting and clustering.
type Split struct {
	// Name is unique across the run, see SplitName
	Name string `json:"name"`

	// Parent is the name of the contig this split is on
	Parent string `json:"parent"`

	// Order is the index of this split in its parent
	Order int `json:"order_in_parent"`

	// Start of the split on its parent (0-based)
	Start int `json:"start"`

	// End of the split on its parent (exclusive)
	End int `json:"end"`

	Coverage Coverage `json:"coverage"`

	Auxiliary Auxiliary `json:"auxiliary"`

	// Abundance is the split's mean coverage relative to all contigs
	Abundance float64 `json:"abundance"`
}

// Len is the number of bases in the split.
func (s *Split) Len() int {
	return s.End - s.Start
}

// Contig is a reference sequence and the splits that tile it.
type Contig struct {
	Name string `json:"name"`

	Length int `json:"length"`

	SplitLength int `json:"split_length"`

	// Coverage summarizes the depth across the whole contig. C is left
	// empty; per-base depth lives on the splits.
	Coverage Coverage `json:"coverage"`

	Splits []*Split `json:"splits"`

	Abundance float64 `json:"abundance"`
}

// New creates a contig without any splits.
func New(name string, length, splitLength int) *Contig {
	return &Contig{
		Name:        name,
		Length:      length,
		SplitLength: splitLength,
	}
}

// SplitName is the name of the split at order on a contig.
func SplitName(contig string, order int) string {
	return fmt.Sprintf("%s_split_%05d", contig, order+1)
}

// AddSplit appends a split to the contig. Splits must be added in order.
func (c *Contig) AddSplit(name string, order, start, end int) *Split {
	s := &Split{
		Name:   name,
		Parent: c.Name,
		Order:  order,
		Start:  start,
		End:    end,
	}
	c.Splits = append(c.Splits, s)
	return s
}

// Validate checks that the splits tile [0, Length) without gaps or overlaps
// and in ascending order.
func (c *Contig) Validate() error {
	if len(c.Splits) == 0 {
		return fmt.Errorf("contig %s has no splits", c.Name)
	}

	next := 0
	for i, s := range c.Splits {
		if s.Order != i {
			return fmt.Errorf("split %s of %s is out of order: %d at index %d", s.Name, c.Name, s.Order, i)
		}
		if s.Start != next {
			return fmt.Errorf("split %s of %s starts at %d, expected %d", s.Name, c.Name, s.Start, next)
		}
		if s.End <= s.Start {
			return fmt.Errorf("split %s of %s is empty: [%d, %d)", s.Name, c.Name, s.Start, s.End)
		}
		next = s.End
	}

	if next != c.Length {
		return fmt.Errorf("splits of %s end at %d, contig length is %d", c.Name, next, c.Length)
	}
	return nil
}

// SetCoverage partitions a per-base depth array over the contig's splits and
// summarizes the whole contig.
func (c *Contig) SetCoverage(depth []int) error {
	if len(depth) != c.Length {
		return fmt.Errorf("depth of %s has %d positions, contig length is %d", c.Name, len(depth), c.Length)
	}

	for _, s := range c.Splits {
		s.Coverage = Coverage{C: append([]int(nil), depth[s.Start:s.End]...)}
		s.Coverage.summarize()
	}

	whole := Coverage{C: depth}
	whole.summarize()
	c.Coverage = Coverage{Mean: whole.Mean, Std: whole.Std}
	return nil
}

// Depth is the per-base depth of the contig, concatenated from its splits.
func (c *Contig) Depth() []int {
	depth := make([]int, 0, c.Length)
	for _, s := range c.Splits {
		depth = append(depth, s.Coverage.C...)
	}
	return depth
}

// summarize fills Mean and Std from C.
func (cov *Coverage) summarize() {
	cov.Mean, cov.Std = MeanStd(cov.C)
}

// MeanStd is the mean and standard deviation of a depth array. Both are 0
// for an empty array and the deviation is 0 for a single position.
func MeanStd(depth []int) (mean, std float64) {
	if len(depth) == 0 {
		return 0, 0
	}

	x := make([]float64, len(depth))
	for i, d := range depth {
		x[i] = float64(d)
	}
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
