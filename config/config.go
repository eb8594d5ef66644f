// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yinx843/anvio/internal/cluster"
)

// EnvPrefix is the prefix of environment variables that override settings,
// e.g. ANVIO_PROFILE_MIN_CONTIG_LENGTH.
const EnvPrefix = "ANVIO"

// ClusteringConfig is a named clustering recipe
type ClusteringConfig struct {
	// the name the dendrogram is stored under
	Name string `mapstructure:"name"`

	// split metadata columns used as features
	Features []string `mapstructure:"features"`

	// distance metric: euclidean, manhattan, cosine or correlation
	Distance string `mapstructure:"distance"`

	// linkage method: single, complete, average or ward
	Linkage string `mapstructure:"linkage"`

	// whether to scale every feature by its maximum first
	Normalize bool `mapstructure:"normalize"`
}

// NoiseConfig is the floor below which a position's variation is noise
type NoiseConfig struct {
	// the floor at infinite coverage
	Base float64 `mapstructure:"base"`

	// divided by the coverage and added to the base
	Scale float64 `mapstructure:"scale"`
}

// ProfileConfig are the thresholds of a profiling run
type ProfileConfig struct {
	// contigs shorter than this are not profiled
	MinContigLength int `mapstructure:"min-contig-length"`

	// contigs with a lower mean coverage are dropped before variability
	MinMeanCoverage float64 `mapstructure:"min-mean-coverage"`

	// the depth a position needs for its variability to be profiled
	MinCoverageForVariability int `mapstructure:"min-coverage-for-variability"`

	// whether to report every covered position
	ReportVariabilityFull bool `mapstructure:"report-variability-full"`

	// reads under this mapping quality are skipped
	MinMapQ int `mapstructure:"min-mapq"`

	// recorded, not used
	Threads int `mapstructure:"threads"`

	Noise NoiseConfig `mapstructure:"noise"`
}

// Config is the root-level settings struct and is a mix
// of settings available in a settings file, the environment
// and those available from the command line
type Config struct {
	// one of debug, info, warn, error
	LogLevel string `mapstructure:"log-level"`

	// the length contigs are cut into splits at by "annotate"
	SplitLength int `mapstructure:"split-length"`

	// profile thresholds
	Profile ProfileConfig `mapstructure:"profile"`

	// clustering recipes run with --cluster-contigs
	Clusterings []ClusteringConfig `mapstructure:"clusterings"`

	// the preferred default dendrogram
	DefaultClustering string `mapstructure:"default-clustering"`
}

// SetDefaults registers the default settings with viper
func SetDefaults() {
	viper.SetDefault("log-level", "info")
	viper.SetDefault("split-length", 20000)

	viper.SetDefault("profile.min-contig-length", 10000)
	viper.SetDefault("profile.min-mean-coverage", 0)
	viper.SetDefault("profile.min-coverage-for-variability", 10)
	viper.SetDefault("profile.report-variability-full", false)
	viper.SetDefault("profile.min-mapq", 0)
	viper.SetDefault("profile.threads", 1)
	viper.SetDefault("profile.noise.base", 0.05)
	viper.SetDefault("profile.noise.scale", 1.0)

	viper.SetDefault("default-clustering", "cov-ward")
	viper.SetDefault("clusterings", []map[string]interface{}{
		{
			"name":      "cov-ward",
			"features":  []string{"mean_coverage", "abundance", "mean_variability"},
			"distance":  cluster.Euclidean,
			"linkage":   cluster.Ward,
			"normalize": true,
		},
		{
			"name":     "cov-average",
			"features": []string{"mean_coverage", "std_coverage"},
			"distance": cluster.Euclidean,
			"linkage":  cluster.Average,
		},
	})
}

// Setup loads a .env file if there is one, the settings file if set, and
// the environment into viper
func Setup(settings string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %v", err)
	}

	SetDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if settings == "" {
		return nil
	}
	viper.SetConfigFile(settings)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read settings file %s: %v", settings, err)
	}
	return nil
}

// NewConfig returns a new Config struct populated by
// Viper settings (either from a settings file, the environment)
// and/or command line arguments
func NewConfig() Config {
	var c Config

	err := viper.Unmarshal(&c)
	if err != nil {
		log.Fatalf("unable to decode into struct, %v", err)
	}

	return c
}

// Clustering converts the clustering recipes, rejecting unnamed and
// repeated ones
func (c Config) Clustering() ([]cluster.Config, error) {
	seen := make(map[string]bool)
	configs := make([]cluster.Config, 0, len(c.Clusterings))
	for i, cc := range c.Clusterings {
		if cc.Name == "" {
			return nil, fmt.Errorf("clustering %d has no name", i+1)
		}
		if seen[cc.Name] {
			return nil, fmt.Errorf("clustering %s is configured more than once", cc.Name)
		}
		seen[cc.Name] = true

		configs = append(configs, cluster.Config{
			Name:      cc.Name,
			Features:  cc.Features,
			Distance:  cc.Distance,
			Linkage:   cc.Linkage,
			Normalize: cc.Normalize,
		})
	}
	return configs, nil
}
