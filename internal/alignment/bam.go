// Package alignment reads indexed BAM files one reference at a time.
package alignment

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/sam"
)

// ErrNotIndexed is returned when a BAM file has no index next to it.
var ErrNotIndexed = errors.New("BAM file is not indexed")

// Reference is a sequence that reads were mapped onto.
type Reference struct {
	Name   string
	Length int
}

// Source is a set of alignments that can be walked one reference at a time.
type Source interface {
	// References in the order of the alignment header
	References() []Reference

	// Mapped is the total number of mapped reads
	Mapped() (uint64, error)

	// Fetch calls fn with every record on a reference, in coordinate order
	Fetch(reference string, fn func(*sam.Record) error) error

	Close() error
}

// BAM is an indexed BAM file.
type BAM struct {
	path string
	f    *os.File
	r    *bam.Reader
	idx  *bam.Index
	refs map[string]*sam.Reference
}

// IndexPath is where the index of a BAM file is expected.
func IndexPath(path string) string {
	return path + ".bai"
}

// Open opens a BAM file and its index.
func Open(path string) (*BAM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := bam.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read BAM header: %v", err)
	}

	b := &BAM{path: path, f: f, r: r, refs: make(map[string]*sam.Reference)}
	for _, ref := range r.Header().Refs() {
		b.refs[ref.Name()] = ref
	}

	idxFile, err := os.Open(IndexPath(path))
	if err != nil {
		b.Close()
		if os.IsNotExist(err) {
			return nil, ErrNotIndexed
		}
		return nil, err
	}
	defer idxFile.Close()

	if b.idx, err = bam.ReadIndex(idxFile); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to read BAM index %s: %v", IndexPath(path), err)
	}
	if b.idx == nil {
		b.Close()
		return nil, fmt.Errorf("BAM index %s has no references, %s has no placed reads", IndexPath(path), path)
	}
	return b, nil
}

// References returns the references of the BAM header.
func (b *BAM) References() []Reference {
	var refs []Reference
	for _, ref := range b.r.Header().Refs() {
		refs = append(refs, Reference{Name: ref.Name(), Length: ref.Len()})
	}
	return refs
}

// Mapped is the number of mapped reads recorded in the index.
func (b *BAM) Mapped() (uint64, error) {
	var mapped uint64
	for _, ref := range b.r.Header().Refs() {
		stats, ok := b.stats(ref)
		if !ok {
			continue
		}
		mapped += stats.Mapped
	}
	return mapped, nil
}

// Fetch walks the records on a reference using the index.
func (b *BAM) Fetch(reference string, fn func(*sam.Record) error) error {
	ref, ok := b.refs[reference]
	if !ok {
		return fmt.Errorf("no reference %s in %s", reference, b.path)
	}

	// references without reads have no bins in the index
	if stats, ok := b.stats(ref); !ok || stats.Mapped+stats.Unmapped == 0 {
		return nil
	}

	chunks, err := b.idx.Chunks(ref, 0, ref.Len())
	if err != nil {
		return fmt.Errorf("failed to query index for %s: %v", reference, err)
	}

	it, err := bam.NewIterator(b.r, chunks)
	if err != nil {
		return err
	}
	for it.Next() {
		rec := it.Record()
		if rec.Ref == nil || rec.Ref.ID() != ref.ID() {
			continue
		}
		if err := fn(rec); err != nil {
			it.Close()
			return err
		}
	}
	if err := it.Error(); err != nil {
		it.Close()
		return err
	}
	return it.Close()
}

// stats are the index statistics of a reference. The index only covers
// references up to the last one with a placed read.
func (b *BAM) stats(ref *sam.Reference) (index.ReferenceStats, bool) {
	if ref.ID() < 0 || ref.ID() >= b.idx.NumRefs() {
		return index.ReferenceStats{}, false
	}
	return b.idx.ReferenceStats(ref.ID())
}

// Close closes the BAM file.
func (b *BAM) Close() error {
	b.r.Close()
	return b.f.Close()
}

// Index writes the index of a coordinate sorted BAM file next to it.
func Index(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := bam.NewReader(f, 1)
	if err != nil {
		return fmt.Errorf("failed to read BAM header: %v", err)
	}
	defer r.Close()

	var idx bam.Index
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %v", path, err)
		}
		if err := idx.Add(rec, r.LastChunk()); err != nil {
			return fmt.Errorf("failed to index %s (is it sorted by coordinate?): %v", path, err)
		}
	}

	out, err := os.Create(IndexPath(path))
	if err != nil {
		return err
	}
	if err := bam.WriteIndex(out, &idx); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
