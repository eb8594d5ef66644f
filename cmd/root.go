// Package cmd is for command line interactions with the anvio application
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yinx843/anvio/config"
	"github.com/yinx843/anvio/internal/profile"
)

// logger is for progress and errors, on stderr
var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
})

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "anvio",
	Short: "Profile the coverage and variability of contigs in a sample",
	Long: `Profile the coverage and nucleotide variability of contigs from the
reads of one sample mapped onto them.

Contigs are cut into splits by an annotation store ("anvio annotate"), reads
come from an indexed BAM file ("anvio index"), and the profile is written to
an output directory ("anvio profile").`,
	Version: profile.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		logger.Fatal(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringP("settings", "s", "", "YAML settings file")
	RootCmd.PersistentFlags().String("log-level", "info", "one of debug, info, warn, error")

	viper.BindPFlag("log-level", RootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads the settings and sets up the logger before any command runs
func initConfig() {
	settings, _ := RootCmd.PersistentFlags().GetString("settings")
	if err := config.Setup(settings); err != nil {
		logger.Fatal(err)
	}

	level, err := log.ParseLevel(config.NewConfig().LogLevel)
	if err != nil {
		logger.Fatal("bad log level", "err", err)
	}
	logger.SetLevel(level)

	styles := log.DefaultStyles()
	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Bold(true).
		MaxWidth(4).
		Foreground(lipgloss.Color("208"))
	logger.SetStyles(styles)
}
