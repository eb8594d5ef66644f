package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/biogo/hts/sam"

	"github.com/yinx843/anvio/internal/alignment"
	"github.com/yinx843/anvio/internal/annotation"
	"github.com/yinx843/anvio/internal/contig"
)

// twoSplits is a 40 base contig cut at 20 with a variable position at 25
// and a single mismatching read over 30..39.
func twoSplits(t *testing.T) (*fakeSource, *contig.Contig) {
	t.Helper()
	c := contig.New("c1", 40, 20)
	c.AddSplit("c1_split_00001", 0, 0, 20)
	c.AddSplit("c1_split_00002", 1, 20, 40)

	var rs []*sam.Record
	rs = append(rs, reads(12, 0, 40, 'A')...)
	rs = append(rs, reads(4, 25, 1, 'G')...)
	rs = append(rs, reads(1, 30, 10, 'T')...)

	return &fakeSource{
		refs:  []alignment.Reference{{Name: "c1", Length: 40}},
		reads: map[string][]*sam.Record{"c1": rs},
	}, c
}

func TestCover(t *testing.T) {
	src, c := twoSplits(t)
	rc := DefaultContext()

	if err := cover(src, c, rc.filter()); err != nil {
		t.Fatal(err)
	}

	depth := c.Depth()
	if depth[0] != 12 || depth[25] != 16 || depth[30] != 13 || depth[39] != 13 {
		t.Errorf("cover() depth = %v", depth)
	}
	if c.Splits[0].Coverage.Mean != 12 {
		t.Errorf("cover() first split mean = %v, want 12", c.Splits[0].Coverage.Mean)
	}
	if c.Splits[0].Auxiliary.V != nil {
		t.Error("cover() filled variability")
	}
}

func TestVary(t *testing.T) {
	tests := []struct {
		name      string
		minCov    int
		full      bool
		wantPos   []int
		wantSplit string
		wantV     float64
	}{
		{"default", 10, false, []int{5}, "c1_split_00002", 1.0 / 12},
		{"too shallow", 20, false, nil, "", 0},
		{"full", 10, true, nil, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, c := twoSplits(t)
			rc := DefaultContext()
			rc.MinCoverageForVariability = tt.minCov
			rc.ReportVariabilityFull = tt.full

			if err := cover(src, c, rc.filter()); err != nil {
				t.Fatal(err)
			}
			n, err := vary(src, c, &rc)
			if err != nil {
				t.Fatal(err)
			}

			if tt.full {
				// every covered position is reported
				if n != 40 {
					t.Errorf("vary() recorded %d positions, want 40", n)
				}
				return
			}

			if n != len(tt.wantPos) {
				t.Fatalf("vary() recorded %d positions, want %d", n, len(tt.wantPos))
			}
			for _, pos := range tt.wantPos {
				cp, ok := c.Splits[1].Auxiliary.ColumnProfiles[pos]
				if !ok {
					t.Fatalf("no column profile at %d", pos)
				}
				want := contig.ColumnProfile{
					Split: tt.wantSplit, Pos: 5, PosInContig: 25, Coverage: 16,
					A: 12, G: 4, Consensus: "A", Competing: "AG", N2N1Ratio: 4.0 / 12,
				}
				if !reflect.DeepEqual(cp, want) {
					t.Errorf("vary() column = %+v, want %+v", cp, want)
				}
				if c.Splits[1].Auxiliary.CompetingNucleotides[pos] != "AG" {
					t.Errorf("vary() competing = %v", c.Splits[1].Auxiliary.CompetingNucleotides)
				}
			}

			// positions 30..39 have one T in 13, under the noise floor of 0.05 + 1/13
			if v := c.Splits[1].Auxiliary.V[10]; v != tt.wantV {
				t.Errorf("vary() V at 30 = %v, want %v", v, tt.wantV)
			}
		})
	}
}

func TestGeneCoverages(t *testing.T) {
	c := contig.New("c1", 10, 5)
	c.AddSplit("c1_split_00001", 0, 0, 5)
	c.AddSplit("c1_split_00002", 1, 5, 10)
	if err := c.SetCoverage([]int{0, 0, 2, 2, 4, 4, 6, 6, 8, 8}); err != nil {
		t.Fatal(err)
	}

	genes := annotation.Genes{
		"c1": {{ID: "g1", Start: 0, Stop: 4}, {ID: "g2", Start: 6, Stop: 12}, {ID: "g3", Start: 12, Stop: 14}},
		"c9": {{ID: "g9", Start: 0, Stop: 4}},
	}
	got := geneCoverages([]*contig.Contig{c}, genes, "S1")

	if len(got) != 2 {
		t.Fatalf("geneCoverages() = %+v, want 2 rows", got)
	}
	if got[0].Gene != "g1" || got[0].Mean != 1 || got[0].Detection != 0.5 {
		t.Errorf("geneCoverages() g1 = %+v", got[0])
	}
	// g2 runs past the contig and is clamped to [6, 10)
	if got[1].Gene != "g2" || got[1].Mean != 7 || got[1].Stop != 12 || got[1].Detection != 1 {
		t.Errorf("geneCoverages() g2 = %+v", got[1])
	}
}

func TestWriteSummaries(t *testing.T) {
	src, c := twoSplits(t)
	rc := DefaultContext()
	if err := cover(src, c, rc.filter()); err != nil {
		t.Fatal(err)
	}
	if _, err := vary(src, c, &rc); err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	index, err := writeSummaries(out, "S1", []*contig.Contig{c})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"c1_split_00001": filepath.Join(SummaryDir, "000001.json"),
		"c1_split_00002": filepath.Join(SummaryDir, "000002.json"),
	}
	if !reflect.DeepEqual(index, want) {
		t.Errorf("writeSummaries() = %v, want %v", index, want)
	}

	b, err := os.ReadFile(filepath.Join(out, index["c1_split_00002"]))
	if err != nil {
		t.Fatal(err)
	}
	var summary splitSummary
	if err := json.Unmarshal(b, &summary); err != nil {
		t.Fatal(err)
	}
	s, ok := summary["S1"]
	if !ok || len(s.Coverage) != 20 || len(s.Variability) != 20 || s.CompetingNucleotides[5] != "AG" {
		t.Errorf("summary of c1_split_00002 = %+v", summary)
	}
}

func TestSplitMetadata(t *testing.T) {
	src, c := twoSplits(t)
	rc := DefaultContext()
	if err := cover(src, c, rc.filter()); err != nil {
		t.Fatal(err)
	}
	if _, err := vary(src, c, &rc); err != nil {
		t.Fatal(err)
	}
	contig.SetAbundance([]*contig.Contig{c})

	rows := splitMetadata([]*contig.Contig{c}, "S1")
	if len(rows) != 2 {
		t.Fatalf("splitMetadata() = %+v", rows)
	}
	if rows[0].VariablePositions != 0 || rows[1].VariablePositions != 1 || rows[0].Length != 20 {
		t.Errorf("splitMetadata() = %+v", rows)
	}
	if rows[1].MeanVariability <= 0 {
		t.Errorf("splitMetadata() mean variability = %v", rows[1].MeanVariability)
	}

	variable := variablePositions([]*contig.Contig{c}, "S1")
	if len(variable) != 1 || variable[0].PosInContig != 25 || variable[0].SampleID != "S1" {
		t.Errorf("variablePositions() = %+v", variable)
	}
}
