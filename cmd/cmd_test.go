package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/yinx843/anvio/config"
	"github.com/yinx843/anvio/internal/annotation"
)

func Test_parseProfileFlags(t *testing.T) {
	viper.Reset()
	if err := config.Setup(""); err != nil {
		t.Fatal(err)
	}
	c := config.NewConfig()
	c.Profile.MinContigLength = 2500

	flags := profileCmd.Flags()
	for name, value := range map[string]string{
		"input":           "sample.bam",
		"annotation":      "contigs.db",
		"sample-id":       "S9",
		"cluster-contigs": "true",
	} {
		if err := flags.Set(name, value); err != nil {
			t.Fatal(err)
		}
	}

	rc, err := parseProfileFlags(profileCmd, c)
	if err != nil {
		t.Fatal(err)
	}

	if rc.Input != "sample.bam" || rc.Annotation != "contigs.db" || rc.SampleID != "S9" || !rc.ClusterContigs {
		t.Errorf("parseProfileFlags() = %+v", rc)
	}
	if rc.MinContigLength != 2500 || rc.MinCoverageForVariability != 10 {
		t.Errorf("parseProfileFlags() thresholds = %+v", rc)
	}
	if rc.Noise.Base != 0.05 || len(rc.Clusterings) != 2 || rc.DefaultClustering != "cov-ward" {
		t.Errorf("parseProfileFlags() noise or clusterings = %+v", rc)
	}
}

func Test_annotate(t *testing.T) {
	dir := t.TempDir()
	fastaPath := filepath.Join(dir, "contigs.fa")
	gffPath := filepath.Join(dir, "genes.gff")
	out := filepath.Join(dir, "contigs.db")

	fa := ">c1\n" + strings.Repeat("ACGT", 25) + "\n>c2\n" + strings.Repeat("A", 30) + "\n"
	gff := "##gff-version 3\nc1\tprodigal\tCDS\t1\t30\t.\t+\t0\tID=g1\n"
	if err := os.WriteFile(fastaPath, []byte(fa), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(gffPath, []byte(gff), 0644); err != nil {
		t.Fatal(err)
	}

	if err := annotate(fastaPath, gffPath, "CDS", out, 40); err != nil {
		t.Fatal(err)
	}

	s, err := annotation.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	contigs, err := s.Contigs()
	if err != nil {
		t.Fatal(err)
	}
	if contigs["c1"] != 100 || contigs["c2"] != 30 {
		t.Errorf("annotate() contigs = %v", contigs)
	}
	genes, err := s.Genes()
	if err != nil {
		t.Fatal(err)
	}
	if len(genes["c1"]) != 1 {
		t.Errorf("annotate() genes = %v", genes)
	}

	if err := annotate(fastaPath, "", "", out, 40); err == nil {
		t.Error("expected an error writing over an existing store")
	}
	if err := annotate(fastaPath, "", "", filepath.Join(dir, "other.db"), 0); err == nil {
		t.Error("expected an error for a zero split length")
	}
}

func Test_filePrepender(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"root", "docs/anvio.md", "---\nlayout: default\ntitle: anvio\nnav_order: 0\nhas_children: true\npermalink: /\n---\n"},
		{"child", "docs/anvio_profile.md", "---\nlayout: default\ntitle: profile\nparent: anvio\nnav_order: 0\n---\n"},
		{"unknown", "docs/anvio_help.md", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filePrepender(tt.filename); got != tt.want {
				t.Errorf("filePrepender() = %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_linkHandler(t *testing.T) {
	if got := linkHandler("anvio.md"); got != "/" {
		t.Errorf("linkHandler() = %s, want /", got)
	}
	if got := linkHandler("anvio_index.md"); got != "anvio_index" {
		t.Errorf("linkHandler() = %s, want anvio_index", got)
	}
}
