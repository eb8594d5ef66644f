package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yinx843/anvio/internal/contig"
	"github.com/yinx843/anvio/internal/store"
)

// Names of the artifacts in an output directory.
const (
	ProfileDB    = "PROFILE.db"
	SnapshotFile = "PROFILE.snapshot"
	SummaryDir   = "SUMMARY"
	SummaryFile  = "SUMMARY.json"
	RunInfoFile  = "RUNINFO.json"
)

// splitSummary is the content of one summary file, keyed by sample id.
type splitSummary map[string]sampleSummary

type sampleSummary struct {
	Coverage             []int          `json:"coverage"`
	Variability          []float64      `json:"variability"`
	CompetingNucleotides map[int]string `json:"competing_nucleotides"`
}

// writeSummaries writes one numbered summary file per split and an index
// from split names to their files, relative to out.
func writeSummaries(out, sampleID string, contigs []*contig.Contig) (map[string]string, error) {
	if err := os.MkdirAll(filepath.Join(out, SummaryDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create summary directory: %v", err)
	}

	index := make(map[string]string)
	n := 0
	for _, c := range contigs {
		for _, s := range c.Splits {
			n++
			rel := filepath.Join(SummaryDir, fmt.Sprintf("%06d.json", n))

			competing := s.Auxiliary.CompetingNucleotides
			if competing == nil {
				competing = map[int]string{}
			}
			b, err := json.Marshal(splitSummary{
				sampleID: {
					Coverage:             s.Coverage.C,
					Variability:          s.Auxiliary.V,
					CompetingNucleotides: competing,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to serialize summary of %s: %v", s.Name, err)
			}
			if err := os.WriteFile(filepath.Join(out, rel), b, 0644); err != nil {
				return nil, fmt.Errorf("failed to write summary of %s: %v", s.Name, err)
			}
			index[s.Name] = rel
		}
	}

	b, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(out, SummaryFile), b, 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary index: %v", err)
	}
	return index, nil
}

// writeRunInfo writes the flat record of a run's decisions and counts.
func writeRunInfo(out string, info map[string]interface{}) error {
	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run info: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out, RunInfoFile), b, 0644); err != nil {
		return fmt.Errorf("failed to write run info: %v", err)
	}
	return nil
}

// variablePositions are the variability rows of the contigs, by split and position.
func variablePositions(contigs []*contig.Contig, sampleID string) []store.VariablePosition {
	var rows []store.VariablePosition
	for _, c := range contigs {
		for _, s := range c.Splits {
			positions := make([]int, 0, len(s.Auxiliary.ColumnProfiles))
			for pos := range s.Auxiliary.ColumnProfiles {
				positions = append(positions, pos)
			}
			sort.Ints(positions)

			for _, pos := range positions {
				rows = append(rows, store.VariablePosition{SampleID: sampleID, ColumnProfile: s.Auxiliary.ColumnProfiles[pos]})
			}
		}
	}
	return rows
}

// splitMetadata is a metadata row per split.
func splitMetadata(contigs []*contig.Contig, sampleID string) []store.SplitMetadata {
	var rows []store.SplitMetadata
	for _, c := range contigs {
		for _, s := range c.Splits {
			row := store.SplitMetadata{
				Split:             s.Name,
				Contig:            c.Name,
				SampleID:          sampleID,
				Length:            s.Len(),
				MeanCoverage:      s.Coverage.Mean,
				StdCoverage:       s.Coverage.Std,
				Abundance:         s.Abundance,
				VariablePositions: len(s.Auxiliary.ColumnProfiles),
			}
			if len(s.Auxiliary.V) > 0 {
				row.MeanVariability = stat.Mean(s.Auxiliary.V, nil)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// withStore opens the profile store for one phase and closes it after.
func withStore(path string, fn func(*store.DB) error) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	if err := fn(db); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}
