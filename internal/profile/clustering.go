package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/yinx843/anvio/internal/cluster"
	"github.com/yinx843/anvio/internal/store"
)

// Result is the outcome of one clustering configuration. Err is set when
// the configuration failed; Newick is set otherwise.
type Result struct {
	Name   string
	Newick string
	Err    error
}

// features are the split metadata columns clustering configurations can use.
var features = map[string]func(store.SplitMetadata) float64{
	"length":             func(m store.SplitMetadata) float64 { return float64(m.Length) },
	"mean_coverage":      func(m store.SplitMetadata) float64 { return m.MeanCoverage },
	"std_coverage":       func(m store.SplitMetadata) float64 { return m.StdCoverage },
	"abundance":          func(m store.SplitMetadata) float64 { return m.Abundance },
	"variable_positions": func(m store.SplitMetadata) float64 { return float64(m.VariablePositions) },
	"mean_variability":   func(m store.SplitMetadata) float64 { return m.MeanVariability },
}

// clusterSplits runs every configuration over the splits in the store that
// are in universe. A failing configuration is logged and does not stop the others.
func clusterSplits(logger *log.Logger, db *store.DB, configs []cluster.Config, universe map[string]bool) ([]Result, error) {
	rows, err := db.SplitMetadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read split metadata: %v", err)
	}

	var kept []store.SplitMetadata
	for _, r := range rows {
		if universe[r.Split] {
			kept = append(kept, r)
		}
	}

	results := make([]Result, 0, len(configs))
	for _, conf := range configs {
		newick, err := clusterOne(kept, conf)
		if err != nil {
			logger.Warn("clustering failed", "config", conf.Name, "err", err)
		} else {
			logger.Info("clustered splits", "config", conf.Name, "splits", len(kept))
		}
		results = append(results, Result{Name: conf.Name, Newick: newick, Err: err})
	}
	return results, nil
}

func clusterOne(rows []store.SplitMetadata, conf cluster.Config) (string, error) {
	if len(conf.Features) == 0 {
		return "", fmt.Errorf("no features")
	}

	m := cluster.Matrix{
		Rows: make([]string, len(rows)),
		Data: make([][]float64, len(rows)),
	}
	for i, r := range rows {
		m.Rows[i] = r.Split
		m.Data[i] = make([]float64, len(conf.Features))
		for j, name := range conf.Features {
			feature, ok := features[name]
			if !ok {
				return "", fmt.Errorf("unknown feature %q", name)
			}
			m.Data[i][j] = feature(r)
		}
	}
	if conf.Normalize {
		m = m.Normalize()
	}
	return cluster.Newick(m, conf.Distance, conf.Linkage)
}

// storeClusterings writes the successful dendrograms and records the
// default and available clusterings, even when there are none.
func storeClusterings(db *store.DB, results []Result, preferred string) (string, []string, error) {
	var available []string
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if err := db.AddClustering(r.Name, r.Newick); err != nil {
			return "", nil, fmt.Errorf("failed to store clustering %s: %v", r.Name, err)
		}
		available = append(available, r.Name)
	}
	sort.Strings(available)

	def := ""
	for _, name := range available {
		if name == preferred {
			def = name
		}
	}
	if def == "" && len(available) > 0 {
		def = available[0]
	}

	if err := db.SetMeta("default_clustering", def); err != nil {
		return "", nil, err
	}
	if err := db.SetMeta("available_clusterings", strings.Join(available, ",")); err != nil {
		return "", nil, err
	}
	return def, available, nil
}
