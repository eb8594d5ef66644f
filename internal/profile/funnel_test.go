package profile

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/yinx843/anvio/internal/alignment"
	"github.com/yinx843/anvio/internal/annotation"
	"github.com/yinx843/anvio/internal/contig"
)

func names(contigs []*contig.Contig) []string {
	var out []string
	for _, c := range contigs {
		out = append(out, c.Name)
	}
	return out
}

func TestFilterContigs(t *testing.T) {
	logger := log.New(io.Discard)
	contigs := []*contig.Contig{
		contig.New("c1", 30000, 10000),
		contig.New("c2", 5000, 10000),
		contig.New("c3", 12000, 10000),
		contig.New("c4", 9000, 10000),
	}

	interest := map[string]bool{"c1": true, "c2": true, "c3": true}
	stages := []struct {
		name string
		keep func(*contig.Contig) bool
	}{
		{"interest", func(c *contig.Contig) bool { return interest[c.Name] }},
		{"length", func(c *contig.Contig) bool { return c.Length >= 10000 }},
		{"long", func(c *contig.Contig) bool { return c.Length >= 20000 }},
	}

	prev := contigs
	for _, s := range stages {
		kept, err := filterContigs(logger, s.name, prev, s.keep)
		if err != nil {
			t.Fatal(err)
		}

		before := make(map[string]bool)
		for _, c := range prev {
			before[c.Name] = true
		}
		for _, c := range kept {
			if !before[c.Name] {
				t.Errorf("stage %s kept %s, which the previous stage dropped", s.name, c.Name)
			}
		}
		prev = kept
	}
	if !reflect.DeepEqual(names(prev), []string{"c1"}) {
		t.Errorf("filterContigs() = %v, want [c1]", names(prev))
	}

	_, err := filterContigs(logger, "none", prev, func(*contig.Contig) bool { return false })
	if !isConfigError(err) || !strings.Contains(err.Error(), "0 contigs to work with") {
		t.Errorf("filterContigs() error = %v", err)
	}
}

func TestReadInterest(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "interest.txt")
	if err := os.WriteFile(path, []byte("# gut contigs\ncontig_1\n\n  contig_3  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := readInterest(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]bool{"contig_1": true, "contig_3": true}) {
		t.Errorf("readInterest() = %v", got)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("# nothing\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readInterest(empty); !isConfigError(err) {
		t.Errorf("readInterest() error = %v, want a config error", err)
	}
}

func TestCheckReferences(t *testing.T) {
	tests := []struct {
		name    string
		refs    []alignment.Reference
		wantErr bool
	}{
		{"ok", []alignment.Reference{{Name: "c1", Length: 10}, {Name: "c2", Length: 20}}, false},
		{"empty", nil, true},
		{"unnamed", []alignment.Reference{{Name: "", Length: 10}}, true},
		{"duplicate", []alignment.Reference{{Name: "c1", Length: 10}, {Name: "c1", Length: 20}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := checkReferences(tt.refs); (err != nil) != tt.wantErr {
				t.Errorf("checkReferences() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckAnnotated(t *testing.T) {
	lengths := map[string]int{"c1": 100, "c2": 200}

	if err := checkAnnotated([]*contig.Contig{contig.New("c1", 100, 50)}, lengths, "a.db"); err != nil {
		t.Error(err)
	}

	err := checkAnnotated([]*contig.Contig{contig.New("c1", 120, 50)}, lengths, "a.db")
	if !isConfigError(err) || !strings.Contains(err.Error(), "120") {
		t.Errorf("checkAnnotated() error = %v, want a length mismatch", err)
	}
}

func TestAttachSplits(t *testing.T) {
	logger := log.New(io.Discard)
	index := map[string][]annotation.Split{
		"c1": {
			{Name: "c1_split_00002", Parent: "c1", Order: 1, Start: 50, End: 100},
			{Name: "c1_split_00001", Parent: "c1", Order: 0, Start: 0, End: 50},
		},
		"c2": {
			{Name: "c2_split_00001", Parent: "c2", Order: 0, Start: 0, End: 40},
		},
	}

	contigs := []*contig.Contig{contig.New("c1", 100, 50), contig.New("c3", 100, 50)}
	kept, err := attachSplits(logger, contigs, index)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names(kept), []string{"c1"}) {
		t.Errorf("attachSplits() = %v, want [c1]", names(kept))
	}
	if len(kept[0].Splits) != 2 || kept[0].Splits[0].Name != "c1_split_00001" {
		t.Errorf("attachSplits() splits = %+v", kept[0].Splits)
	}

	// c2's single split does not reach its end
	if _, err := attachSplits(logger, []*contig.Contig{contig.New("c2", 50, 50)}, index); !isConfigError(err) {
		t.Errorf("attachSplits() error = %v, want a config error", err)
	}
}

func TestUnannotated(t *testing.T) {
	logger := log.New(io.Discard)
	contigs := []*contig.Contig{contig.New("c1", 10, 10), contig.New("c3", 10, 10)}

	if w := unannotated(logger, contigs, annotation.Genes{"c1": nil, "c3": nil}); w != "" {
		t.Errorf("unannotated() = %q, want no warning", w)
	}
	if w := unannotated(logger, contigs, annotation.Genes{"c1": nil}); !strings.Contains(w, "1 of 2") || !strings.Contains(w, "c3") {
		t.Errorf("unannotated() = %q", w)
	}
}
