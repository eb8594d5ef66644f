// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/viper"

	"github.com/yinx843/anvio/internal/cluster"
)

func TestNewConfig_defaults(t *testing.T) {
	viper.Reset()
	if err := Setup(""); err != nil {
		t.Fatal(err)
	}

	c := NewConfig()
	want := ProfileConfig{
		MinContigLength:           10000,
		MinMeanCoverage:           0,
		MinCoverageForVariability: 10,
		Threads:                   1,
		Noise:                     NoiseConfig{Base: 0.05, Scale: 1},
	}
	if !reflect.DeepEqual(c.Profile, want) {
		t.Errorf("NewConfig().Profile = %+v, want %+v", c.Profile, want)
	}
	if c.SplitLength != 20000 || c.LogLevel != "info" || c.DefaultClustering != "cov-ward" {
		t.Errorf("NewConfig() = %+v", c)
	}
	if len(c.Clusterings) != 2 || c.Clusterings[0].Name != "cov-ward" || !c.Clusterings[0].Normalize {
		t.Errorf("NewConfig().Clusterings = %+v", c.Clusterings)
	}
}

func TestNewConfig_settingsAndEnv(t *testing.T) {
	viper.Reset()

	settings := filepath.Join(t.TempDir(), "settings.yaml")
	yaml := `split-length: 5000
profile:
  min-contig-length: 2500
  noise:
    base: 0.1
clusterings:
  - name: corr
    features: [mean_coverage, std_coverage]
    distance: correlation
    linkage: complete
`
	if err := os.WriteFile(settings, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANVIO_PROFILE_MIN_MAPQ", "20")

	if err := Setup(settings); err != nil {
		t.Fatal(err)
	}
	c := NewConfig()

	if c.SplitLength != 5000 || c.Profile.MinContigLength != 2500 {
		t.Errorf("NewConfig() = %+v", c)
	}
	if c.Profile.Noise != (NoiseConfig{Base: 0.1, Scale: 1}) {
		t.Errorf("NewConfig().Profile.Noise = %+v", c.Profile.Noise)
	}
	if c.Profile.MinMapQ != 20 {
		t.Errorf("NewConfig().Profile.MinMapQ = %d, want 20 from the environment", c.Profile.MinMapQ)
	}

	want := []ClusteringConfig{{
		Name:     "corr",
		Features: []string{"mean_coverage", "std_coverage"},
		Distance: "correlation",
		Linkage:  "complete",
	}}
	if !reflect.DeepEqual(c.Clusterings, want) {
		t.Errorf("NewConfig().Clusterings = %+v, want %+v", c.Clusterings, want)
	}
}

func TestSetup_missingSettings(t *testing.T) {
	viper.Reset()
	if err := Setup(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing settings file")
	}
}

func TestConfig_Clustering(t *testing.T) {
	type fields struct {
		Clusterings []ClusteringConfig
	}

	tests := []struct {
		name    string
		fields  fields
		want    []cluster.Config
		wantErr bool
	}{
		{
			"converts",
			fields{[]ClusteringConfig{{Name: "cov", Features: []string{"mean_coverage"}, Distance: "euclidean", Linkage: "ward", Normalize: true}}},
			[]cluster.Config{{Name: "cov", Features: []string{"mean_coverage"}, Distance: "euclidean", Linkage: "ward", Normalize: true}},
			false,
		},
		{
			"empty",
			fields{nil},
			[]cluster.Config{},
			false,
		},
		{
			"unnamed",
			fields{[]ClusteringConfig{{Features: []string{"mean_coverage"}}}},
			nil,
			true,
		},
		{
			"repeated",
			fields{[]ClusteringConfig{{Name: "cov"}, {Name: "cov"}}},
			nil,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{
				Clusterings: tt.fields.Clusterings,
			}
			got, err := c.Clustering()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Config.Clustering() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Config.Clustering() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
