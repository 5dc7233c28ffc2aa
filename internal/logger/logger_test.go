package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "json", Output: "stdout"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml", Output: "stdout"})
	assert.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "backend.log")

	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("hello", Field{Key: "dataset", Value: "gf_results"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "gf_results", record["dataset"])
}

func TestDebugFilteredAtInfoLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend.log")

	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Debug("hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWithCarriesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend.log")

	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.With(Field{Key: "run_id", Value: "abc"}).Info("refresh started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "abc", record["run_id"])
}
