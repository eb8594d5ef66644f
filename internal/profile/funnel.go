package profile

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/yinx843/anvio/internal/alignment"
	"github.com/yinx843/anvio/internal/annotation"
	"github.com/yinx843/anvio/internal/contig"
)

// filterContigs keeps the contigs that pass keep, in order. It fails if none do.
func filterContigs(logger *log.Logger, stage string, contigs []*contig.Contig, keep func(*contig.Contig) bool) ([]*contig.Contig, error) {
	var kept []*contig.Contig
	for _, c := range contigs {
		if keep(c) {
			kept = append(kept, c)
		}
	}

	logger.Info("filtered contigs", "stage", stage, "kept", len(kept), "dropped", len(contigs)-len(kept))
	if len(kept) == 0 {
		return nil, configErrorf("0 contigs to work with after the %s filter", stage)
	}
	return kept, nil
}

// readInterest reads a file of contig names, one per line. Blank lines and
// lines starting with '#' are skipped.
func readInterest(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, configErrorf("failed to open contigs of interest %s: %v", path, err)
	}
	defer f.Close()

	names := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names[line] = true
	}
	if err := sc.Err(); err != nil {
		return nil, configErrorf("failed to read contigs of interest %s: %v", path, err)
	}
	if len(names) == 0 {
		return nil, configErrorf("no contig names in %s", path)
	}
	return names, nil
}

// unannotated warns once about contigs without gene calls. It does not
// drop any contig.
func unannotated(logger *log.Logger, contigs []*contig.Contig, genes annotation.Genes) string {
	var missing []string
	for _, c := range contigs {
		if _, ok := genes[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) == 0 {
		return ""
	}

	msg := fmt.Sprintf("%d of %d contigs have no genes in the annotation store, e.g. %s", len(missing), len(contigs), missing[0])
	logger.Warn(msg)
	return msg
}

// checkReferences rejects alignment headers with empty or repeated names.
func checkReferences(refs []alignment.Reference) error {
	if len(refs) == 0 {
		return configErrorf("the alignment header has no references")
	}

	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r.Name == "" {
			return configErrorf("the alignment header has a reference without a name")
		}
		if seen[r.Name] {
			return configErrorf("reference %s is in the alignment header more than once", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// checkAnnotated requires every contig to be in the annotation store with
// the same length.
func checkAnnotated(contigs []*contig.Contig, lengths map[string]int, storePath string) error {
	var example string
	for name := range lengths {
		if example == "" || name < example {
			example = name
		}
	}

	for _, c := range contigs {
		length, ok := lengths[c.Name]
		if !ok {
			return configErrorf(
				"contig %s is in the alignments but not in the annotation store %s, which has contigs like %s. Were the reads mapped to the contigs the store was built from?",
				c.Name, storePath, example,
			)
		}
		if length != c.Length {
			return configErrorf("contig %s is %d bases in the alignments and %d in the annotation store %s", c.Name, c.Length, length, storePath)
		}
	}
	return nil
}

// attachSplits builds each contig's splits from the split index. Contigs
// without splits are dropped.
func attachSplits(logger *log.Logger, contigs []*contig.Contig, index map[string][]annotation.Split) ([]*contig.Contig, error) {
	var kept []*contig.Contig
	for _, c := range contigs {
		rows, ok := index[c.Name]
		if !ok {
			logger.Warn("contig has no splits, dropping it", "contig", c.Name)
			continue
		}

		sort.Slice(rows, func(i, j int) bool { return rows[i].Order < rows[j].Order })
		for _, r := range rows {
			c.AddSplit(r.Name, r.Order, r.Start, r.End)
		}
		if err := c.Validate(); err != nil {
			return nil, configErrorf("bad splits in the annotation store: %v", err)
		}
		kept = append(kept, c)
	}

	if len(kept) == 0 {
		return nil, configErrorf("0 contigs to work with after attaching splits")
	}
	return kept, nil
}
