package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yinx843/anvio/config"
	"github.com/yinx843/anvio/internal/annotation"
)

// annotateCmd is for building an annotation store from contigs and genes
var annotateCmd = &cobra.Command{
	Use:                        "annotate",
	Short:                      "Build an annotation store from a contigs FASTA and a GFF of gene calls",
	Run:                        annotateExec,
	SuggestionsMinimumDistance: 3,
	Long: `
Build the annotation store that "anvio profile" reads: the contigs and their
lengths from a FASTA file, their splits at the split length, and the genes
called on them from an optional GFF file.`,
}

// set flags
func init() {
	annotateCmd.Flags().StringP("fasta", "f", "", "FASTA file of the contigs")
	annotateCmd.Flags().StringP("gff", "g", "", "GFF file of the genes called on the contigs")
	annotateCmd.Flags().StringP("feature-type", "t", "CDS", "GFF feature type of genes, empty for all")
	annotateCmd.Flags().IntP("split-length", "L", 20000, "length contigs are split at")
	annotateCmd.Flags().StringP("out", "o", "", "path of the annotation store")

	viper.BindPFlag("split-length", annotateCmd.Flags().Lookup("split-length"))

	RootCmd.AddCommand(annotateCmd)
}

func annotateExec(cmd *cobra.Command, args []string) {
	fastaPath, _ := cmd.Flags().GetString("fasta")
	gffPath, _ := cmd.Flags().GetString("gff")
	featureType, _ := cmd.Flags().GetString("feature-type")
	out, _ := cmd.Flags().GetString("out")
	splitLength := config.NewConfig().SplitLength

	if fastaPath == "" || out == "" {
		cmd.Help()
		logger.Fatal("both --fasta and --out are required")
	}

	if err := annotate(fastaPath, gffPath, featureType, out, splitLength); err != nil {
		logger.Fatal(err)
	}
	logger.Info("annotation store written", "out", out, "split_length", splitLength)
}

// annotate reads the contigs and genes and writes them to a new store at out
func annotate(fastaPath, gffPath, featureType, out string, splitLength int) error {
	if splitLength < 1 {
		return fmt.Errorf("split length must be positive, got %d", splitLength)
	}

	f, err := os.Open(fastaPath)
	if err != nil {
		return fmt.Errorf("failed to open contigs: %v", err)
	}
	defer f.Close()
	contigs, err := annotation.ReadContigs(f)
	if err != nil {
		return err
	}

	genes := make(annotation.Genes)
	if gffPath != "" {
		g, err := os.Open(gffPath)
		if err != nil {
			return fmt.Errorf("failed to open genes: %v", err)
		}
		defer g.Close()
		if genes, err = annotation.ReadGenes(g, featureType); err != nil {
			return err
		}
	}

	s, err := annotation.Create(out, splitLength, contigs, genes)
	if err != nil {
		return err
	}
	return s.Close()
}
