package profile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/yinx843/anvio/internal/alignment"
	"github.com/yinx843/anvio/internal/annotation"
	"github.com/yinx843/anvio/internal/contig"
	"github.com/yinx843/anvio/internal/store"
)

// Summary is what a run did.
type Summary struct {
	// RunID is unique to the run
	RunID string

	SampleID string

	// Output is the absolute path of the output directory
	Output string

	// Contigs are the names of the profiled contigs, in alignment header order
	Contigs []string

	// Listed are the references printed in list mode, longest first
	Listed []alignment.Reference

	Splits int

	TotalLength int

	TotalReadsMapped uint64

	VariablePositions int

	GeneCoverages int

	// Clusterings has a result per clustering configuration that was run
	Clusterings []Result

	// DefaultClustering is empty if no clustering succeeded
	DefaultClustering string

	// Warnings that did not stop the run
	Warnings []string
}

// Version of the profile format and the profiler that writes it.
const Version = "0.1.0"

// Profiler runs profiles. Its openers are swapped in tests.
type Profiler struct {
	logger *log.Logger
	out    io.Writer

	openAlignment  func(path string) (alignment.Source, error)
	openAnnotation func(path string) (*annotation.Store, error)
}

// New creates a Profiler that logs to logger and prints listings to out.
func New(logger *log.Logger, out io.Writer) *Profiler {
	return &Profiler{
		logger: logger,
		out:    out,
		openAlignment: func(path string) (alignment.Source, error) {
			b, err := alignment.Open(path)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		openAnnotation: annotation.Open,
	}
}

// annotations is what a run reads from the annotation store.
type annotations struct {
	path    string
	meta    annotation.Meta
	lengths map[string]int
	splits  map[string][]annotation.Split
	genes   annotation.Genes
}

// Run profiles one sample. Problems with the inputs are returned as a *ConfigError.
func (p *Profiler) Run(ctx context.Context, rc *Context) (*Summary, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	sampleID, err := resolveSampleID(rc)
	if err != nil {
		return nil, err
	}
	sum := &Summary{SampleID: sampleID}

	var (
		src  alignment.Source
		snap *contig.Snapshot
		refs []alignment.Reference
	)
	if rc.Input != "" {
		if src, err = p.openAlignment(rc.Input); err != nil {
			if err == alignment.ErrNotIndexed {
				return nil, configErrorf("%s is not indexed, run 'anvio index %s' first", rc.Input, rc.Input)
			}
			return nil, configErrorf("failed to read %s, is it a BAM file? %v", rc.Input, err)
		}
		defer src.Close()

		refs = src.References()
		if err := checkReferences(refs); err != nil {
			return nil, err
		}
		if sum.TotalReadsMapped, err = src.Mapped(); err != nil {
			return nil, configErrorf("failed to count mapped reads in %s: %v", rc.Input, err)
		}
	} else {
		if snap, err = contig.LoadSnapshot(rc.Profile); err != nil {
			return nil, configErrorf("failed to load profile snapshot %s: %v", rc.Profile, err)
		}
		for _, c := range snap.Contigs {
			refs = append(refs, alignment.Reference{Name: c.Name, Length: c.Length})
		}
		sum.TotalReadsMapped = snap.TotalReadsMapped
	}

	if rc.ListContigs {
		sum.Listed = p.listContigs(refs)
		return sum, nil
	}

	var ann *annotations
	if rc.Annotation != "" {
		if ann, err = p.readAnnotations(rc.Annotation); err != nil {
			return nil, err
		}
	}

	out, err := createOutput(rc)
	if err != nil {
		return nil, err
	}
	sum.Output = out
	sum.RunID = uuid.NewString()
	dbPath := filepath.Join(out, ProfileDB)

	if err := withStore(dbPath, func(db *store.DB) error {
		return db.Create(p.meta(rc, sum, ann))
	}); err != nil {
		return nil, err
	}

	var contigs []*contig.Contig
	if snap != nil {
		contigs = snap.Contigs
	} else {
		for _, r := range refs {
			contigs = append(contigs, contig.New(r.Name, r.Length, ann.meta.SplitLength))
		}
	}

	if contigs, err = p.funnel(rc, sum, contigs, ann); err != nil {
		return nil, err
	}

	if snap == nil {
		if contigs, err = attachSplits(p.logger, contigs, ann.splits); err != nil {
			return nil, err
		}
		if contigs, err = p.profileContigs(ctx, rc, src, contigs); err != nil {
			return nil, err
		}
	}
	contig.SetAbundance(contigs)

	if snap == nil {
		path := filepath.Join(out, SnapshotFile)
		s := &contig.Snapshot{SampleID: sampleID, TotalReadsMapped: sum.TotalReadsMapped, Contigs: contigs}
		if err := contig.SaveSnapshot(path, s); err != nil {
			return nil, err
		}
		p.logger.Info("saved snapshot", "path", path)
	}

	index, err := writeSummaries(out, sampleID, contigs)
	if err != nil {
		return nil, err
	}

	universe := make(map[string]bool, len(index))
	for _, c := range contigs {
		sum.Contigs = append(sum.Contigs, c.Name)
		sum.TotalLength += c.Length
		sum.Splits += len(c.Splits)
		for _, s := range c.Splits {
			universe[s.Name] = true
		}
	}

	if err := p.persist(dbPath, sum, contigs, ann); err != nil {
		return nil, err
	}

	if rc.ClusterContigs {
		if err := withStore(dbPath, func(db *store.DB) error {
			results, err := clusterSplits(p.logger, db, rc.Clusterings, universe)
			if err != nil {
				return err
			}
			sum.Clusterings = results
			sum.DefaultClustering, _, err = storeClusterings(db, results, rc.DefaultClustering)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if err := writeRunInfo(out, p.runInfo(rc, sum, ann, snap == nil)); err != nil {
		return nil, err
	}
	p.logger.Info("profiled sample", "sample", sampleID, "contigs", len(sum.Contigs), "splits", sum.Splits, "output", out)
	return sum, nil
}

// funnel applies the interest filter, the annotation warning, the length
// filter and the annotation store name check.
func (p *Profiler) funnel(rc *Context, sum *Summary, contigs []*contig.Contig, ann *annotations) ([]*contig.Contig, error) {
	var err error
	if rc.ContigsOfInterest != "" {
		interest, err := readInterest(rc.ContigsOfInterest)
		if err != nil {
			return nil, err
		}
		if contigs, err = filterContigs(p.logger, "contigs of interest", contigs, func(c *contig.Contig) bool {
			return interest[c.Name]
		}); err != nil {
			return nil, err
		}
	}

	if ann != nil {
		if w := unannotated(p.logger, contigs, ann.genes); w != "" {
			sum.Warnings = append(sum.Warnings, w)
		}
	}

	if contigs, err = filterContigs(p.logger, "minimum contig length", contigs, func(c *contig.Contig) bool {
		return c.Length >= rc.MinContigLength
	}); err != nil {
		return nil, err
	}

	if ann != nil {
		if err := checkAnnotated(contigs, ann.lengths, ann.path); err != nil {
			return nil, err
		}
	}
	return contigs, nil
}

// profileContigs runs the depth pass on every contig, drops those under the
// mean coverage threshold and runs the variability pass on the rest.
func (p *Profiler) profileContigs(ctx context.Context, rc *Context, src alignment.Source, contigs []*contig.Contig) ([]*contig.Contig, error) {
	f := rc.filter()
	for i, c := range contigs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := cover(src, c, f); err != nil {
			return nil, configErrorf("%v", err)
		}
		p.logger.Debug("covered contig", "contig", c.Name, "n", i+1, "of", len(contigs), "mean", c.Coverage.Mean)
	}

	contigs, err := filterContigs(p.logger, "minimum mean coverage", contigs, func(c *contig.Contig) bool {
		return c.Coverage.Mean >= rc.MinMeanCoverage
	})
	if err != nil {
		return nil, err
	}

	for _, c := range contigs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := vary(src, c, rc)
		if err != nil {
			return nil, configErrorf("%v", err)
		}
		p.logger.Info("contig profiled", "contig", c.Name, "mean", c.Coverage.Mean, "variable", n)
	}
	return contigs, nil
}

// persist writes the variability, gene coverage and split metadata tables,
// each phase with its own store handle.
func (p *Profiler) persist(dbPath string, sum *Summary, contigs []*contig.Contig, ann *annotations) error {
	variable := variablePositions(contigs, sum.SampleID)
	sum.VariablePositions = len(variable)
	if err := withStore(dbPath, func(db *store.DB) error {
		return db.AddVariablePositions(variable)
	}); err != nil {
		return fmt.Errorf("failed to store variable positions: %v", err)
	}

	if ann != nil {
		genes := geneCoverages(contigs, ann.genes, sum.SampleID)
		sum.GeneCoverages = len(genes)
		if err := withStore(dbPath, func(db *store.DB) error {
			return db.AddGeneCoverages(genes)
		}); err != nil {
			return fmt.Errorf("failed to store gene coverages: %v", err)
		}
	}

	return withStore(dbPath, func(db *store.DB) error {
		if err := db.AddSplitMetadata(splitMetadata(contigs, sum.SampleID)); err != nil {
			return fmt.Errorf("failed to store split metadata: %v", err)
		}
		if err := db.AddView("single", store.SplitMetadataTable); err != nil {
			return err
		}
		for k, v := range map[string]string{
			"num_splits":         strconv.Itoa(sum.Splits),
			"num_contigs":        strconv.Itoa(len(sum.Contigs)),
			"total_length":       strconv.Itoa(sum.TotalLength),
			"total_reads_mapped": strconv.FormatUint(sum.TotalReadsMapped, 10),
		} {
			if err := db.SetMeta(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// readAnnotations reads everything the run needs from the annotation store
// and closes it.
func (p *Profiler) readAnnotations(path string) (*annotations, error) {
	s, err := p.openAnnotation(path)
	if err != nil {
		return nil, configErrorf("failed to open annotation store: %v", err)
	}
	defer s.Close()

	ann := &annotations{path: path}
	if ann.meta, err = s.Meta(); err != nil {
		return nil, configErrorf("failed to read annotation store %s: %v", path, err)
	}
	if ann.lengths, err = s.Contigs(); err != nil {
		return nil, configErrorf("failed to read contigs from %s: %v", path, err)
	}
	if ann.splits, err = s.Splits(); err != nil {
		return nil, configErrorf("failed to read splits from %s: %v", path, err)
	}
	if ann.genes, err = s.Genes(); err != nil {
		return nil, configErrorf("failed to read genes from %s: %v", path, err)
	}
	p.logger.Info("read annotation store", "path", path, "contigs", len(ann.lengths), "split_length", ann.meta.SplitLength)
	return ann, nil
}

// listContigs prints the references, longest first.
func (p *Profiler) listContigs(refs []alignment.Reference) []alignment.Reference {
	sorted := append([]alignment.Reference(nil), refs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Length > sorted[j].Length })

	w := tabwriter.NewWriter(p.out, 0, 4, 3, ' ', 0)
	fmt.Fprintf(w, "contig\tlength\n")
	for _, r := range sorted {
		fmt.Fprintf(w, "%s\t%d\n", r.Name, r.Length)
	}
	w.Flush()
	return sorted
}

// createOutput makes the output directory and returns its absolute path.
func createOutput(rc *Context) (string, error) {
	out := rc.Output
	if out == "" {
		out = rc.Input + "-PROFILE"
	}
	out, err := filepath.Abs(out)
	if err != nil {
		return "", configErrorf("bad output directory %s: %v", out, err)
	}

	if _, err := os.Stat(out); err == nil {
		if !rc.Overwrite {
			return "", configErrorf("output directory %s exists, use --overwrite to replace it", out)
		}
		if err := os.RemoveAll(out); err != nil {
			return "", configErrorf("failed to remove %s: %v", out, err)
		}
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return "", configErrorf("failed to create output directory %s: %v", out, err)
	}
	return out, nil
}

// meta is the first record of a profile store.
func (p *Profiler) meta(rc *Context, sum *Summary, ann *annotations) map[string]string {
	m := map[string]string{
		"db_type":                      "profile",
		"run_id":                       sum.RunID,
		"sample_id":                    sum.SampleID,
		"merged":                       "false",
		"default_view":                 "single",
		"creation_date":                time.Now().UTC().Format(time.RFC3339),
		"min_contig_length":            strconv.Itoa(rc.MinContigLength),
		"min_mean_coverage":            strconv.FormatFloat(rc.MinMeanCoverage, 'g', -1, 64),
		"min_coverage_for_variability": strconv.Itoa(rc.MinCoverageForVariability),
		"min_mapq":                     strconv.Itoa(rc.MinMapQ),
		"noise_base":                   strconv.FormatFloat(rc.Noise.Base, 'g', -1, 64),
		"noise_scale":                  strconv.FormatFloat(rc.Noise.Scale, 'g', -1, 64),
		"report_variability_full":      strconv.FormatBool(rc.ReportVariabilityFull),
		"cluster_contigs":              strconv.FormatBool(rc.ClusterContigs),
		"threads":                      strconv.Itoa(rc.Threads),
		"default_clustering":           "",
		"available_clusterings":        "",
		"annotation_hash":              "",
		"split_length":                 "",
	}
	if ann != nil {
		m["annotation_hash"] = ann.meta.Hash
		m["split_length"] = strconv.Itoa(ann.meta.SplitLength)
	}
	return m
}

// runInfo is the flat record of the run's decisions, with paths relative
// to the output directory.
func (p *Profiler) runInfo(rc *Context, sum *Summary, ann *annotations, fresh bool) map[string]interface{} {
	var available []string
	for _, r := range sum.Clusterings {
		if r.Err == nil {
			available = append(available, r.Name)
		}
	}
	sort.Strings(available)

	info := map[string]interface{}{
		"run_id":                       sum.RunID,
		"sample_id":                    sum.SampleID,
		"input":                        rc.Input,
		"profile":                      rc.Profile,
		"annotation":                   rc.Annotation,
		"contigs_of_interest":          rc.ContigsOfInterest,
		"output_dir":                   ".",
		"cmd_line":                     rc.CmdLine,
		"profiler_version":             Version,
		"profile_db":                   ProfileDB,
		"summary_index":                SummaryFile,
		"min_contig_length":            rc.MinContigLength,
		"min_mean_coverage":            rc.MinMeanCoverage,
		"min_coverage_for_variability": rc.MinCoverageForVariability,
		"min_mapq":                     rc.MinMapQ,
		"report_variability_full":      rc.ReportVariabilityFull,
		"cluster_contigs":              rc.ClusterContigs,
		"threads":                      rc.Threads,
		"num_contigs":                  len(sum.Contigs),
		"num_splits":                   sum.Splits,
		"total_length":                 sum.TotalLength,
		"total_reads_mapped":           sum.TotalReadsMapped,
		"variable_positions":           sum.VariablePositions,
		"gene_coverages":               sum.GeneCoverages,
		"available_clusterings":        strings.Join(available, ","),
		"default_clustering":           sum.DefaultClustering,
		"warnings":                     strings.Join(sum.Warnings, "; "),
	}
	if fresh {
		info["snapshot"] = SnapshotFile
	}
	if ann != nil {
		info["split_length"] = ann.meta.SplitLength
		info["annotation_hash"] = ann.meta.Hash
	}
	return info
}
