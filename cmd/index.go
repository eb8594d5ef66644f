package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yinx843/anvio/internal/alignment"
)

// indexCmd is for indexing a BAM file before it's profiled
var indexCmd = &cobra.Command{
	Use:                        "index [bam]",
	Short:                      "Index a coordinate sorted BAM file",
	Args:                       cobra.ExactArgs(1),
	SuggestionsMinimumDistance: 3,
	Run: func(cmd *cobra.Command, args []string) {
		if err := alignment.Index(args[0]); err != nil {
			logger.Fatal("failed to index", "bam", args[0], "err", err)
		}
		logger.Info("index written", "index", alignment.IndexPath(args[0]))
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)
}
