package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltInCatalog(t *testing.T) {
	reg := BuiltIn()

	assert.Equal(t, 11, reg.Len())

	// First and last entries stay in canonical order.
	all := reg.All()
	assert.Equal(t, "gf_results.csv", all[0].File)
	assert.Equal(t, "gf_grant_targets_results.csv", all[len(all)-1].File)

	for _, ds := range all {
		assert.Contains(t, ds.URL, "data-service.theglobalfund.org")
	}
}

func TestLookupByNameAndFile(t *testing.T) {
	reg := BuiltIn()

	byName, ok := reg.Lookup("gf_allocations")
	require.True(t, ok)

	byFile, ok := reg.Lookup("gf_allocations.csv")
	require.True(t, ok)

	assert.Equal(t, byName, byFile)
	assert.Equal(t, "gf_allocations", byName.Name())

	_, ok = reg.Lookup("no_such_dataset")
	assert.False(t, ok)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New([]Dataset{{File: "data.txt", URL: "https://example.org/x"}})
	assert.Error(t, err)

	_, err = New([]Dataset{{File: "data.csv", URL: "ftp://example.org/x"}})
	assert.Error(t, err)

	_, err = New([]Dataset{
		{File: "data.csv", URL: "https://example.org/a"},
		{File: "data.csv", URL: "https://example.org/b"},
	})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")

	content := `datasets:
  - file: custom_one.csv
    url: https://example.org/one
  - file: custom_two.csv
    url: https://example.org/two
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	ds, ok := reg.Lookup("custom_one")
	require.True(t, ok)
	assert.Equal(t, "https://example.org/one", ds.URL)
}

func TestLoadFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets: []\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadEmptyPathFallsBackToBuiltIn(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 11, reg.Len())
}
