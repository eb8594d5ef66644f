// Package annotation is the store of contigs, split windows and gene calls
// that a profile is computed against.
package annotation

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE self (key TEXT PRIMARY KEY, value TEXT);
CREATE TABLE contigs_info (contig TEXT PRIMARY KEY, length INTEGER, num_splits INTEGER);
CREATE TABLE splits_info (split TEXT PRIMARY KEY, parent TEXT, order_in_parent INTEGER, start INTEGER, "end" INTEGER);
CREATE TABLE genes_in_contigs (gene TEXT PRIMARY KEY, contig TEXT, start INTEGER, stop INTEGER);
`

// Meta is the store-wide information in the self table.
type Meta struct {
	// SplitLength is the length used to cut contigs into splits
	SplitLength int

	// Hash identifies the set of contigs the store was built from
	Hash string
}

// Contig is a contig name and its length.
type Contig struct {
	Name   string
	Length int
}

// Split is one row of the split table.
type Split struct {
	Name   string
	Parent string
	Order  int
	Start  int
	End    int
}

// Gene is a gene call on a contig, [Start, Stop) 0-based.
type Gene struct {
	ID    string
	Start int
	Stop  int
}

// Genes maps contig names to the genes called on them, ordered by start.
// Contigs without gene calls have no entry.
type Genes map[string][]Gene

// Store is an annotation database on disk.
type Store struct {
	db *sql.DB
}

// Open opens an existing annotation store.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if _, err := s.Meta(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s is not an annotation store: %v", path, err)
	}
	return s, nil
}

// Meta reads the self table.
func (s *Store) Meta() (Meta, error) {
	rows, err := s.db.Query(`SELECT key, value FROM self`)
	if err != nil {
		return Meta{}, err
	}
	defer rows.Close()

	var m Meta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, err
		}
		switch key {
		case "split_length":
			if m.SplitLength, err = strconv.Atoi(value); err != nil {
				return Meta{}, fmt.Errorf("bad split_length %q: %v", value, err)
			}
		case "annotation_hash":
			m.Hash = value
		}
	}
	return m, rows.Err()
}

// Contigs maps the name of every contig in the store to its length.
func (s *Store) Contigs() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT contig, length FROM contigs_info`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contigs := make(map[string]int)
	for rows.Next() {
		var name string
		var length int
		if err := rows.Scan(&name, &length); err != nil {
			return nil, err
		}
		contigs[name] = length
	}
	return contigs, rows.Err()
}

// Splits indexes the split table by parent contig. The splits of each
// contig are in ascending order.
func (s *Store) Splits() (map[string][]Split, error) {
	rows, err := s.db.Query(`SELECT split, parent, order_in_parent, start, "end" FROM splits_info ORDER BY parent, order_in_parent`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	splits := make(map[string][]Split)
	for rows.Next() {
		var sp Split
		if err := rows.Scan(&sp.Name, &sp.Parent, &sp.Order, &sp.Start, &sp.End); err != nil {
			return nil, err
		}
		splits[sp.Parent] = append(splits[sp.Parent], sp)
	}
	return splits, rows.Err()
}

// Genes indexes the gene calls by contig.
func (s *Store) Genes() (Genes, error) {
	rows, err := s.db.Query(`SELECT gene, contig, start, stop FROM genes_in_contigs ORDER BY contig, start, gene`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genes := make(Genes)
	for rows.Next() {
		var g Gene
		var contig string
		if err := rows.Scan(&g.ID, &contig, &g.Start, &g.Stop); err != nil {
			return nil, err
		}
		genes[contig] = append(genes[contig], g)
	}
	return genes, rows.Err()
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}
