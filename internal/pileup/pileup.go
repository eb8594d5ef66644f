// Package pileup turns alignment records into per-base read depth and
// nucleotide counts along a reference.
package pileup

import (
	"github.com/biogo/hts/sam"
)

// DefaultExclude are the flags of records that never contribute to a pileup.
const DefaultExclude = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate | sam.Supplementary

// Filter decides which records take part in a pileup.
type Filter struct {
	// MinMapQ is the lowest mapping quality kept
	MinMapQ byte

	// Exclude drops records with any of these flags set
	Exclude sam.Flags
}

// Keep reports whether the record passes the filter.
func (f Filter) Keep(r *sam.Record) bool {
	return r.Flags&f.Exclude == 0 && r.MapQ >= f.MinMapQ && r.Pos >= 0
}

// Depth accumulates per-base read depth over one reference. Only aligned
// bases (M, = and X operations) count toward depth.
type Depth struct {
	depth  []int
	filter Filter
}

// NewDepth creates a Depth for a reference of the given length.
func NewDepth(length int, f Filter) *Depth {
	return &Depth{depth: make([]int, length), filter: f}
}

// Add adds the aligned bases of a record. Its signature fits alignment cursors.
func (d *Depth) Add(r *sam.Record) error {
	if !d.filter.Keep(r) {
		return nil
	}

	pos := r.Pos
	for _, co := range r.Cigar {
		t, n := co.Type(), co.Len()
		if aligned(t) {
			for p := pos; p < pos+n; p++ {
				if p >= 0 && p < len(d.depth) {
					d.depth[p]++
				}
			}
		}
		pos += n * t.Consumes().Reference
	}
	return nil
}

// Depth is the accumulated per-base depth.
func (d *Depth) Depth() []int {
	return d.depth
}

// Bases accumulates the nucleotides seen at each position of one reference.
type Bases struct {
	counts []Counts
	filter Filter
}

// NewBases creates a Bases for a reference of the given length.
func NewBases(length int, f Filter) *Bases {
	return &Bases{counts: make([]Counts, length), filter: f}
}

// Add adds the aligned nucleotides of a record.
func (b *Bases) Add(r *sam.Record) error {
	if !b.filter.Keep(r) {
		return nil
	}

	seq := r.Seq.Expand()
	pos, q := r.Pos, 0
	for _, co := range r.Cigar {
		t, n := co.Type(), co.Len()
		consumes := t.Consumes()
		if aligned(t) {
			for i := 0; i < n; i++ {
				p := pos + i
				if p < 0 || p >= len(b.counts) || q+i >= len(seq) {
					continue
				}
				b.counts[p][baseIndex(seq[q+i])]++
			}
		}
		pos += n * consumes.Reference
		q += n * consumes.Query
	}
	return nil
}

// At is the counts at a reference position.
func (b *Bases) At(pos int) Counts {
	return b.counts[pos]
}

func aligned(t sam.CigarOpType) bool {
	return t == sam.CigarMatch || t == sam.CigarEqual || t == sam.CigarMismatch
}
