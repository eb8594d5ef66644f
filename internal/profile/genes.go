package profile

import (
	"github.com/yinx843/anvio/internal/annotation"
	"github.com/yinx843/anvio/internal/contig"
	"github.com/yinx843/anvio/internal/store"
)

// geneCoverages summarizes the depth under every gene called on the
// contigs. Contigs without genes are skipped.
func geneCoverages(contigs []*contig.Contig, genes annotation.Genes, sampleID string) []store.GeneCoverage {
	var rows []store.GeneCoverage
	for _, c := range contigs {
		calls, ok := genes[c.Name]
		if !ok {
			continue
		}

		depth := c.Depth()
		for _, g := range calls {
			start, stop := g.Start, g.Stop
			if start < 0 {
				start = 0
			}
			if stop > len(depth) {
				stop = len(depth)
			}
			if start >= stop {
				continue
			}

			slice := depth[start:stop]
			mean, std := contig.MeanStd(slice)
			rows = append(rows, store.GeneCoverage{
				Contig:    c.Name,
				Gene:      g.ID,
				SampleID:  sampleID,
				Start:     g.Start,
				Stop:      g.Stop,
				Mean:      mean,
				Std:       std,
				Detection: detection(slice),
			})
		}
	}
	return rows
}

// detection is the fraction of positions with any depth.
func detection(depth []int) float64 {
	if len(depth) == 0 {
		return 0
	}
	covered := 0
	for _, d := range depth {
		if d > 0 {
			covered++
		}
	}
	return float64(covered) / float64(len(depth))
}
