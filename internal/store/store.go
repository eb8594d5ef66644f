// Package store is the profile database: the tables a profiling run writes,
// kept in a badger key/value store. Every table is a key prefix and every
// row is a JSON value.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/yinx843/anvio/internal/contig"
)

// Tables of the profile database.
const (
	MetaTable          = "meta"
	VariabilityTable   = "variable_positions"
	GeneCoverageTable  = "gene_coverages"
	SplitMetadataTable = "metadata_splits"
	ClusteringTable    = "clusterings"
	ViewsTable         = "views"
)

// VariablePosition is a row of the variability table.
type VariablePosition struct {
	SampleID string `json:"sample_id"`
	contig.ColumnProfile
}

// GeneCoverage is a row of the gene coverage table.
type GeneCoverage struct {
	Contig    string  `json:"contig"`
	Gene      string  `json:"gene"`
	SampleID  string  `json:"sample_id"`
	Start     int     `json:"start"`
	Stop      int     `json:"stop"`
	Mean      float64 `json:"mean_coverage"`
	Std       float64 `json:"std_coverage"`
	Detection float64 `json:"detection"`
}

// SplitMetadata is a row of the split metadata table. Its numeric fields
// are the features clustering configurations can use.
type SplitMetadata struct {
	Split             string  `json:"split"`
	Contig            string  `json:"contig"`
	SampleID          string  `json:"sample_id"`
	Length            int     `json:"length"`
	MeanCoverage      float64 `json:"mean_coverage"`
	StdCoverage       float64 `json:"std_coverage"`
	Abundance         float64 `json:"abundance"`
	VariablePositions int     `json:"variable_positions"`
	MeanVariability   float64 `json:"mean_variability"`
}

// DB is an open profile database.
type DB struct {
	path string
	db   *badger.DB
}

// Open opens the profile database at path, creating it if needed.
func Open(path string) (*DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database %s: %v", path, err)
	}
	return &DB{path: path, db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Create writes the first metadata record. It fails if the database was
// already created.
func (d *DB) Create(meta map[string]string) error {
	if _, err := d.MetaValue("db_type"); err == nil {
		return fmt.Errorf("%s is already a profile database", d.path)
	}

	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for k, v := range meta {
		if err := wb.Set(key(MetaTable, k), []byte(v)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// SetMeta sets a single metadata value.
func (d *DB) SetMeta(k, v string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(MetaTable, k), []byte(v))
	})
}

// MetaValue reads a single metadata value.
func (d *DB) MetaValue(k string) (string, error) {
	var v string
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(MetaTable, k))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v = string(val)
			return nil
		})
	})
	return v, err
}

// Meta reads the whole metadata table.
func (d *DB) Meta() (map[string]string, error) {
	return d.strings(MetaTable)
}

// AddVariablePositions appends rows to the variability table.
func (d *DB) AddVariablePositions(rows []VariablePosition) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range rows {
		if err := setJSON(wb, key(VariabilityTable, r.Split, fmt.Sprintf("%010d", r.Pos)), r); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// VariablePositions reads the variability table, ordered by split and position.
func (d *DB) VariablePositions() ([]VariablePosition, error) {
	var rows []VariablePosition
	err := d.scan(VariabilityTable, func(val []byte) error {
		var r VariablePosition
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

// AddGeneCoverages appends rows to the gene coverage table.
func (d *DB) AddGeneCoverages(rows []GeneCoverage) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range rows {
		if err := setJSON(wb, key(GeneCoverageTable, r.Contig, r.Gene), r); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// GeneCoverages reads the gene coverage table, ordered by contig and gene.
func (d *DB) GeneCoverages() ([]GeneCoverage, error) {
	var rows []GeneCoverage
	err := d.scan(GeneCoverageTable, func(val []byte) error {
		var r GeneCoverage
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

// AddSplitMetadata appends rows to the split metadata table.
func (d *DB) AddSplitMetadata(rows []SplitMetadata) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range rows {
		if err := setJSON(wb, key(SplitMetadataTable, r.Split), r); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// SplitMetadata reads the split metadata table, ordered by split name.
func (d *DB) SplitMetadata() ([]SplitMetadata, error) {
	var rows []SplitMetadata
	err := d.scan(SplitMetadataTable, func(val []byte) error {
		var r SplitMetadata
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

// AddClustering stores the dendrogram of a clustering configuration.
func (d *DB) AddClustering(name, newick string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(ClusteringTable, name), []byte(newick))
	})
}

// Clusterings maps clustering configuration names to their dendrograms.
func (d *DB) Clusterings() (map[string]string, error) {
	return d.strings(ClusteringTable)
}

// AddView registers a view and the table backing it.
func (d *DB) AddView(name, table string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(ViewsTable, name), []byte(table))
	})
}

// Views maps view names to their tables.
func (d *DB) Views() (map[string]string, error) {
	return d.strings(ViewsTable)
}

// strings reads a table of plain string values keyed by a single name.
func (d *DB) strings(table string) (map[string]string, error) {
	out := make(map[string]string)
	prefix := key(table, "")
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				out[name] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// scan calls fn with every value of a table in key order.
func (d *DB) scan(table string, fn func(val []byte) error) error {
	prefix := key(table, "")
	return d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func setJSON(wb *badger.WriteBatch, k []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return wb.Set(k, b)
}

// key joins a table and the parts of a row key. Parts are separated by a
// zero byte so names containing '/' cannot collide.
func key(table string, parts ...string) []byte {
	k := []byte(table + "/")
	for i, p := range parts {
		if i > 0 {
			k = append(k, 0)
		}
		k = append(k, p...)
	}
	return k
}
