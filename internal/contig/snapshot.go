package contig

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// SnapshotVersion is the version of the snapshot format written by WriteSnapshot.
// Bump it whenever Contig, Split or their payloads change shape.
const SnapshotVersion uint16 = 1

// snapshotMagic leads every snapshot file.
var snapshotMagic = [8]byte{'A', 'N', 'V', 'I', 'O', 'P', 'R', 'F'}

// ErrNotSnapshot is returned when a file does not start with the snapshot header.
var ErrNotSnapshot = errors.New("not a profile snapshot")

// Snapshot is the full contig/split tree of one profiling run.
type Snapshot struct {
	// SampleID is the sample the tree was profiled from
	SampleID string

	// TotalReadsMapped is the number of mapped reads in the alignments
	TotalReadsMapped uint64

	// Contigs in the order they were profiled
	Contigs []*Contig
}

// WriteSnapshot writes the header, then the snapshot as a zstd compressed gob stream.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return fmt.Errorf("failed to write snapshot header: %v", err)
	}
	if err := binary.Write(w, binary.BigEndian, SnapshotVersion); err != nil {
		return fmt.Errorf("failed to write snapshot version: %v", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(zw).Encode(s); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode snapshot: %v", err)
	}
	return zw.Close()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot. Snapshots of any
// other version are rejected.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != snapshotMagic {
		return nil, ErrNotSnapshot
	}

	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, ErrNotSnapshot
	}
	if version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is not supported (expected %d)", version, SnapshotVersion)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	s := &Snapshot{}
	if err := gob.NewDecoder(zr).Decode(s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %v", err)
	}
	return s, nil
}

// SaveSnapshot writes a snapshot to a file.
func SaveSnapshot(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	if err := WriteSnapshot(bw, s); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadSnapshot reads a snapshot from a file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadSnapshot(bufio.NewReader(f))
}
