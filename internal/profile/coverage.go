package profile

import (
	"fmt"

	"github.com/yinx843/anvio/internal/alignment"
	"github.com/yinx843/anvio/internal/contig"
	"github.com/yinx843/anvio/internal/pileup"
)

// filter is the read filter of a run.
func (rc *Context) filter() pileup.Filter {
	return pileup.Filter{MinMapQ: byte(rc.MinMapQ), Exclude: pileup.DefaultExclude}
}

// cover is the depth pass: it fills the coverage of a contig and its splits.
func cover(src alignment.Source, c *contig.Contig, f pileup.Filter) error {
	d := pileup.NewDepth(c.Length, f)
	if err := src.Fetch(c.Name, d.Add); err != nil {
		return fmt.Errorf("failed to read alignments on %s: %v", c.Name, err)
	}
	return c.SetCoverage(d.Depth())
}

// vary is the variability pass: it profiles the nucleotides at every
// position with enough depth and records the variable ones on the splits.
// It returns the number of recorded positions.
func vary(src alignment.Source, c *contig.Contig, rc *Context) (int, error) {
	bases := pileup.NewBases(c.Length, rc.filter())
	if err := src.Fetch(c.Name, bases.Add); err != nil {
		return 0, fmt.Errorf("failed to read alignments on %s: %v", c.Name, err)
	}

	recorded := 0
	for _, s := range c.Splits {
		s.Auxiliary.V = make([]float64, s.Len())
		for i := range s.Auxiliary.V {
			counts := bases.At(s.Start + i)
			depth := counts.Coverage()
			if depth == 0 || (!rc.ReportVariabilityFull && depth < rc.MinCoverageForVariability) {
				continue
			}

			col := counts.Profile()
			s.Auxiliary.V[i] = col.N2N1Ratio
			if !rc.ReportVariabilityFull && !rc.Noise.Variable(col) {
				continue
			}

			s.Auxiliary.Record(contig.ColumnProfile{
				Split:       s.Name,
				Pos:         i,
				PosInContig: s.Start + i,
				Coverage:    col.Coverage,
				A:           col.Counts[0],
				C:           col.Counts[1],
				G:           col.Counts[2],
				T:           col.Counts[3],
				N:           col.Counts[4],
				Consensus:   string(col.Consensus),
				Competing:   col.Competing,
				N2N1Ratio:   col.N2N1Ratio,
			})
			recorded++
		}
	}
	return recorded, nil
}
