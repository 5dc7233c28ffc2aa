// Package registry holds the catalog of The Global Fund datasets managed by
// the backend. The built-in catalog mirrors the data-service download URLs;
// deployments can replace it with a YAML file.
package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dataset is a single downloadable dataset.
type Dataset struct {
	// File is the staging filename, e.g. "gf_results.csv".
	File string `yaml:"file"`
	// URL is the upstream download location.
	URL string `yaml:"url"`
}

// Name returns the dataset name without the .csv suffix.
func (d Dataset) Name() string {
	return strings.TrimSuffix(d.File, ".csv")
}

// Registry is an ordered dataset catalog with name lookup.
type Registry struct {
	datasets []Dataset
	byFile   map[string]Dataset
}

// New builds a registry from the given datasets. Order is preserved; files
// must be unique, end in .csv, and carry an http(s) URL.
func New(datasets []Dataset) (*Registry, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("registry cannot be empty")
	}

	byFile := make(map[string]Dataset, len(datasets))
	for _, ds := range datasets {
		if !strings.HasSuffix(ds.File, ".csv") {
			return nil, fmt.Errorf("dataset file must end in .csv: %q", ds.File)
		}
		if !strings.HasPrefix(ds.URL, "http://") && !strings.HasPrefix(ds.URL, "https://") {
			return nil, fmt.Errorf("dataset %s has invalid url: %q", ds.File, ds.URL)
		}
		if _, dup := byFile[ds.File]; dup {
			return nil, fmt.Errorf("duplicate dataset file: %q", ds.File)
		}
		byFile[ds.File] = ds
	}

	return &Registry{
		datasets: datasets,
		byFile:   byFile,
	}, nil
}

// BuiltIn returns the default Global Fund catalog.
func BuiltIn() *Registry {
	reg, err := New(builtinDatasets())
	if err != nil {
		// The built-in catalog is static; a construction failure is a bug.
		panic(fmt.Sprintf("built-in dataset registry is invalid: %v", err))
	}
	return reg
}

// registryFile is the on-disk YAML shape.
type registryFile struct {
	Datasets []Dataset `yaml:"datasets"`
}

// LoadFile reads a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	reg, err := New(file.Datasets)
	if err != nil {
		return nil, fmt.Errorf("invalid registry file %s: %w", path, err)
	}
	return reg, nil
}

// Load returns the registry at path, or the built-in catalog when path is
// empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return BuiltIn(), nil
	}
	return LoadFile(path)
}

// All returns the datasets in catalog order.
func (r *Registry) All() []Dataset {
	out := make([]Dataset, len(r.datasets))
	copy(out, r.datasets)
	return out
}

// Len returns the number of datasets in the catalog.
func (r *Registry) Len() int {
	return len(r.datasets)
}

// Lookup finds a dataset by name or filename; "gf_results" and
// "gf_results.csv" resolve to the same entry.
func (r *Registry) Lookup(name string) (Dataset, bool) {
	if !strings.HasSuffix(name, ".csv") {
		name += ".csv"
	}
	ds, ok := r.byFile[name]
	return ds, ok
}

// builtinDatasets lists The Global Fund extracts in their canonical order.
func builtinDatasets() []Dataset {
	base := "https://data-service.theglobalfund.org/file_download"
	return []Dataset{
		{File: "gf_results.csv", URL: base + "/gf_reported_results_dataset/CSV"},
		{File: "gf_pledges_contributions.csv", URL: base + "/pledges_contributions_reference_rate_dataset/CSV"},
		{File: "gf_eligibility.csv", URL: base + "/eligibility_dataset/CSV"},
		{File: "gf_allocations.csv", URL: base + "/allocations_dataset/CSV"},
		{File: "gf_grant_implementation.csv", URL: base + "/grant_implementation_periods/CSV"},
		{File: "gf_grant_commitments.csv", URL: base + "/grant_commitments_reference_rate_dataset/CSV"},
		{File: "gf_grant_disbursements.csv", URL: base + "/grant_disbursements_reference_rate_dataset/CSV"},
		{File: "gf_grant_budgets.csv", URL: base + "/grant_budgets_reference_rate/CSV"},
		{File: "gf_grant_expenditures_modules_interventions.csv", URL: base + "/grant_expendituress_modules_interventions_reference_rate_dataset/CSV"},
		{File: "gf_grant_expenditures_investment_landscape.csv", URL: base + "/grant_expendituress_investment_landscape_reference_rate_dataset/CSV"},
		{File: "gf_grant_targets_results.csv", URL: base + "/grant_targets_results_dataset/CSV"},
	}
}
