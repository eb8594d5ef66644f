package annotation

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/featio"
	"github.com/biogo/biogo/io/featio/gff"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"golang.org/x/crypto/blake2b"

	"github.com/yinx843/anvio/internal/contig"
)

// ReadContigs reads the names and lengths of the sequences in a FASTA file.
func ReadContigs(r io.Reader) ([]Contig, error) {
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA)))

	var contigs []Contig
	seen := make(map[string]bool)
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		if seen[s.Name()] {
			return nil, fmt.Errorf("contig %s is in the FASTA more than once", s.Name())
		}
		seen[s.Name()] = true
		contigs = append(contigs, Contig{Name: s.Name(), Length: s.Len()})
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("failed to parse FASTA: %v", err)
	}
	if len(contigs) == 0 {
		return nil, fmt.Errorf("failed to parse any contigs from the FASTA")
	}
	return contigs, nil
}

// ReadGenes reads gene calls from a GFF2 or GFF3 file. Only features of
// featureType are kept, all features are kept if it is empty.
func ReadGenes(r io.Reader, featureType string) (Genes, error) {
	gff2, err := toGFF2(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GFF: %v", err)
	}
	sc := featio.NewScanner(gff.NewReader(gff2))

	genes := make(Genes)
	for sc.Next() {
		f, ok := sc.Feat().(*gff.Feature)
		if !ok {
			continue
		}
		if featureType != "" && f.Feature != featureType {
			continue
		}

		id := attribute(f, "ID")
		if id == "" {
			id = attribute(f, "Name")
		}
		if id == "" {
			id = f.SeqName + "_" + strconv.Itoa(f.FeatStart) + "_" + strconv.Itoa(f.FeatEnd)
		}
		genes[f.SeqName] = append(genes[f.SeqName], Gene{ID: id, Start: f.FeatStart, Stop: f.FeatEnd})
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("failed to parse GFF: %v", err)
	}

	for _, gs := range genes {
		sort.SliceStable(gs, func(i, j int) bool { return gs[i].Start < gs[j].Start })
	}
	return genes, nil
}

// attribute is the unquoted, unescaped value of a feature's tag.
func attribute(f *gff.Feature, tag string) string {
	v := strings.Trim(f.FeatAttributes.Get(tag), `"`)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// toGFF2 rewrites GFF3 into the GFF2 the gff reader parses: pragmas and
// comments are dropped, an embedded FASTA section ends the features, and
// tag=value attributes become tag "value". GFF2 lines pass through.
func toGFF2(r io.Reader) (io.Reader, error) {
	var out bytes.Buffer
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "##FASTA"):
			return &out, nil
		case strings.TrimSpace(line) == "", strings.HasPrefix(line, "#"):
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) == 9 && gff3Attributes.MatchString(fields[8]) {
			fields[8] = gff2Attributes(fields[8])
		}
		out.WriteString(strings.Join(fields, "\t"))
		out.WriteByte('\n')
	}
	return &out, sc.Err()
}

// gff2Attributes converts GFF3 attributes. Tags the gff reader can't parse
// are dropped.
func gff2Attributes(attrs string) string {
	var kept []string
	for _, kv := range strings.Split(attrs, ";") {
		tag, value, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok || !gffTag.MatchString(tag) {
			continue
		}
		kept = append(kept, tag+` "`+strings.ReplaceAll(value, `"`, "%22")+`"`)
	}
	return strings.Join(kept, "; ")
}

var (
	gffTag         = regexp.MustCompile(`^[A-Za-z_]+$`)
	gff3Attributes = regexp.MustCompile(`^\s*[^\s=;"]+=`)
)

// Hash identifies a set of contigs cut at a split length.
func Hash(contigs []Contig, splitLength int) string {
	sorted := append([]Contig(nil), contigs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%d\n", splitLength)
	for _, c := range sorted {
		fmt.Fprintf(h, "%s\t%d\n", c.Name, c.Length)
	}
	return "hash" + hex.EncodeToString(h.Sum(nil)[:4])
}

// Create writes a new annotation store: contigs, their split windows and the
// genes called on them. Genes on contigs that are not in contigs are an error.
func Create(path string, splitLength int, contigs []Contig, genes Genes) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("annotation store %s already exists", path)
	}

	lengths := make(map[string]int, len(contigs))
	for _, c := range contigs {
		lengths[c.Name] = c.Length
	}
	for name, gs := range genes {
		length, ok := lengths[name]
		if !ok {
			return nil, fmt.Errorf("genes were called on %s, which is not among the contigs", name)
		}
		for _, g := range gs {
			if g.Start < 0 || g.Stop > length || g.Start >= g.Stop {
				return nil, fmt.Errorf("gene %s has bad coordinates [%d, %d) on %s (length %d)", g.ID, g.Start, g.Stop, name, length)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := write(db, splitLength, contigs, genes); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}
	return &Store{db: db}, nil
}

func write(db *sql.DB, splitLength int, contigs []Contig, genes Genes) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create annotation schema: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	self := [][2]string{
		{"split_length", strconv.Itoa(splitLength)},
		{"annotation_hash", Hash(contigs, splitLength)},
		{"num_contigs", strconv.Itoa(len(contigs))},
	}
	for _, kv := range self {
		if _, err := tx.Exec(`INSERT INTO self VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}

	for _, c := range contigs {
		windows := contig.Windows(c.Length, splitLength)
		if _, err := tx.Exec(`INSERT INTO contigs_info VALUES (?, ?, ?)`, c.Name, c.Length, len(windows)); err != nil {
			return fmt.Errorf("failed to insert contig %s: %v", c.Name, err)
		}
		for order, w := range windows {
			name := contig.SplitName(c.Name, order)
			if _, err := tx.Exec(`INSERT INTO splits_info VALUES (?, ?, ?, ?, ?)`, name, c.Name, order, w.Start, w.End); err != nil {
				return fmt.Errorf("failed to insert split %s: %v", name, err)
			}
		}
	}

	for name, gs := range genes {
		for _, g := range gs {
			if _, err := tx.Exec(`INSERT INTO genes_in_contigs VALUES (?, ?, ?, ?)`, g.ID, name, g.Start, g.Stop); err != nil {
				return fmt.Errorf("failed to insert gene %s: %v", g.ID, err)
			}
		}
	}

	return tx.Commit()
}
