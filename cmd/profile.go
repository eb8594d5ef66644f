package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yinx843/anvio/config"
	"github.com/yinx843/anvio/internal/pileup"
	"github.com/yinx843/anvio/internal/profile"
)

// profileCmd is for profiling the reads of a sample
var profileCmd = &cobra.Command{
	Use:                        "profile",
	Short:                      "Profile the coverage and variability of contigs from an indexed BAM file",
	Run:                        profileExec,
	SuggestionsMinimumDistance: 3,
	Long: `
Profile the reads of one sample, mapped onto contigs, into the coverage and
nucleotide variability of every split of every contig.

Contigs are filtered in order: by the contigs of interest file, by length,
then by mean coverage once it is known. Variability is only profiled for
contigs that pass all three.

A profile snapshot from an earlier run can be reused with --profile instead
of a BAM file, to write a new profile from a subset of its contigs.`,
}

// set flags
func init() {
	profileCmd.Flags().StringP("input", "i", "", "indexed BAM file of the sample's reads")
	profileCmd.Flags().StringP("profile", "p", "", "profile snapshot of an earlier run to reuse")
	profileCmd.Flags().StringP("annotation", "a", "", "annotation store from 'anvio annotate'")
	profileCmd.Flags().StringP("output", "o", "", "output directory (default <input>-PROFILE)")
	profileCmd.Flags().StringP("sample-id", "S", "", "sample id (default derived from the input)")
	profileCmd.Flags().String("contigs-of-interest", "", "file with the names of the contigs to profile, one per line")
	profileCmd.Flags().IntP("min-contig-length", "M", 10000, "minimum length of a contig to profile")
	profileCmd.Flags().Float64P("min-mean-coverage", "C", 0, "minimum mean coverage of a contig to profile its variability")
	profileCmd.Flags().IntP("min-coverage-for-variability", "V", 10, "minimum depth of a position to profile its variability")
	profileCmd.Flags().Int("min-mapq", 0, "minimum mapping quality of a read")
	profileCmd.Flags().IntP("threads", "T", 1, "number of threads (recorded only)")
	profileCmd.Flags().Bool("report-variability-full", false, "report every covered position, not only variable ones")
	profileCmd.Flags().Bool("cluster-contigs", false, "cluster splits with the configured clusterings")
	profileCmd.Flags().Bool("list-contigs", false, "list the contigs and their lengths, then quit")
	profileCmd.Flags().BoolP("overwrite", "W", false, "replace the output directory if it exists")

	viper.BindPFlag("profile.min-contig-length", profileCmd.Flags().Lookup("min-contig-length"))
	viper.BindPFlag("profile.min-mean-coverage", profileCmd.Flags().Lookup("min-mean-coverage"))
	viper.BindPFlag("profile.min-coverage-for-variability", profileCmd.Flags().Lookup("min-coverage-for-variability"))
	viper.BindPFlag("profile.min-mapq", profileCmd.Flags().Lookup("min-mapq"))
	viper.BindPFlag("profile.threads", profileCmd.Flags().Lookup("threads"))
	viper.BindPFlag("profile.report-variability-full", profileCmd.Flags().Lookup("report-variability-full"))

	RootCmd.AddCommand(profileCmd)
}

// profileExec runs a profile from the command's flags
func profileExec(cmd *cobra.Command, args []string) {
	rc, err := parseProfileFlags(cmd, config.NewConfig())
	if err != nil {
		logger.Fatal(err)
	}

	rc.CmdLine = strings.Join(os.Args, " ")

	sum, err := profile.New(logger, cmd.OutOrStdout()).Run(cmd.Context(), rc)
	if err != nil {
		var ce *profile.ConfigError
		if errors.As(err, &ce) {
			cmd.Help()
			logger.Fatal(ce.Reason)
		}
		logger.Fatal("profiling failed", "err", err)
	}

	if !rc.ListContigs {
		logger.Info("profile written", "output", sum.Output, "variable_positions", sum.VariablePositions, "gene_coverages", sum.GeneCoverages)
	}
}

// parseProfileFlags gathers the run context from a cobra cmd object and the
// settings, which already include the threshold flags
func parseProfileFlags(cmd *cobra.Command, c config.Config) (*profile.Context, error) {
	rc := profile.DefaultContext()
	flags := cmd.Flags()

	for _, s := range []struct {
		name string
		dst  *string
	}{
		{"input", &rc.Input},
		{"profile", &rc.Profile},
		{"annotation", &rc.Annotation},
		{"output", &rc.Output},
		{"sample-id", &rc.SampleID},
		{"contigs-of-interest", &rc.ContigsOfInterest},
	} {
		v, err := flags.GetString(s.name)
		if err != nil {
			return nil, err
		}
		*s.dst = v
	}

	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"cluster-contigs", &rc.ClusterContigs},
		{"list-contigs", &rc.ListContigs},
		{"overwrite", &rc.Overwrite},
	} {
		v, err := flags.GetBool(b.name)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	rc.MinContigLength = c.Profile.MinContigLength
	rc.MinMeanCoverage = c.Profile.MinMeanCoverage
	rc.MinCoverageForVariability = c.Profile.MinCoverageForVariability
	rc.ReportVariabilityFull = c.Profile.ReportVariabilityFull
	rc.MinMapQ = c.Profile.MinMapQ
	rc.Threads = c.Profile.Threads
	rc.Noise = pileup.Noise{Base: c.Profile.Noise.Base, Scale: c.Profile.Noise.Scale}

	clusterings, err := c.Clustering()
	if err != nil {
		return nil, err
	}
	rc.Clusterings = clusterings
	rc.DefaultClustering = c.DefaultClustering
	return &rc, nil
}
