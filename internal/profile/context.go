// Package profile turns the alignments of one sample into a coverage and
// variability profile of its contigs and persists it.
package profile

import (
	"fmt"
	"os"

	"github.com/yinx843/anvio/internal/cluster"
	"github.com/yinx843/anvio/internal/pileup"
)

// Context is the configuration of one profiling run. It is not modified
// once the run starts.
type Context struct {
	// SampleID names the sample. Derived from Input or Profile when empty
	SampleID string

	// Input is the path to an indexed BAM file
	Input string

	// Profile is the path to a snapshot of an earlier run, reused instead of Input
	Profile string

	// Annotation is the path to the annotation store with splits and genes
	Annotation string

	// Output is the directory the profile is written to
	Output string

	// ContigsOfInterest is a file of contig names, one per line, to limit the run to
	ContigsOfInterest string

	// MinContigLength drops contigs shorter than this before any coverage work
	MinContigLength int

	// MinMeanCoverage drops contigs with a lower mean coverage before variability
	MinMeanCoverage float64

	// MinCoverageForVariability is the depth a position needs to be profiled
	MinCoverageForVariability int

	// ReportVariabilityFull profiles and reports every covered position
	ReportVariabilityFull bool

	// ClusterContigs runs the clustering configurations after persistence
	ClusterContigs bool

	// ListContigs prints contig names and lengths and stops
	ListContigs bool

	// Overwrite replaces an existing output directory
	Overwrite bool

	// Threads is recorded in the run info only
	Threads int

	// MinMapQ is the lowest mapping quality of a read that is counted
	MinMapQ int

	// Noise is the floor a position's n2n1 ratio has to reach to be reported
	Noise pileup.Noise

	// Clusterings are the clustering configurations run with ClusterContigs
	Clusterings []cluster.Config

	// DefaultClustering is preferred as the default if it succeeds
	DefaultClustering string

	// CmdLine is the command line that started the run, recorded in the run info
	CmdLine string
}

// DefaultContext is a Context with the default thresholds.
func DefaultContext() Context {
	return Context{
		MinContigLength:           10000,
		MinMeanCoverage:           0,
		MinCoverageForVariability: 10,
		Threads:                   1,
		Noise:                     pileup.Noise{Base: 0.05, Scale: 1},
	}
}

// ConfigError is a problem with the run's inputs that the user has to fix.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "Config Error: " + e.Reason
}

func configErrorf(format string, a ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, a...)}
}

// Validate checks the run's inputs before anything is read or written.
func (rc *Context) Validate() error {
	switch {
	case rc.Input == "" && rc.Profile == "":
		return configErrorf("no input: set either a BAM file or a profile snapshot")
	case rc.Input != "" && rc.Profile != "":
		return configErrorf("a BAM file and a profile snapshot can't be profiled together, pick one")
	case rc.Profile != "" && rc.Output == "":
		return configErrorf("reusing a profile snapshot needs an output directory")
	case rc.Input != "" && rc.Annotation == "" && !rc.ListContigs:
		return configErrorf("profiling a BAM file needs an annotation store for the split boundaries")
	}

	for _, f := range []struct{ what, path string }{
		{"BAM file", rc.Input},
		{"profile snapshot", rc.Profile},
		{"annotation store", rc.Annotation},
		{"contigs of interest file", rc.ContigsOfInterest},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); err != nil {
			return configErrorf("%s %s does not exist", f.what, f.path)
		}
	}

	switch {
	case rc.MinContigLength < 0:
		return configErrorf("minimum contig length can't be negative: %d", rc.MinContigLength)
	case rc.MinMeanCoverage < 0:
		return configErrorf("minimum mean coverage can't be negative: %v", rc.MinMeanCoverage)
	case rc.MinCoverageForVariability < 0:
		return configErrorf("minimum coverage for variability can't be negative: %d", rc.MinCoverageForVariability)
	case rc.MinMapQ < 0 || rc.MinMapQ > 255:
		return configErrorf("minimum mapping quality has to be between 0 and 255: %d", rc.MinMapQ)
	case rc.Threads < 0:
		return configErrorf("number of threads can't be negative: %d", rc.Threads)
	case rc.Noise.Base < 0 || rc.Noise.Scale < 0:
		return configErrorf("noise floor parameters can't be negative: %+v", rc.Noise)
	}

	if rc.SampleID != "" {
		if err := ValidateSampleID(rc.SampleID); err != nil {
			return err
		}
	}
	return nil
}
