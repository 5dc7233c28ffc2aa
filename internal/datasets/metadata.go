// Package datasets implements the Global Fund dataset refresh pipeline:
// download, hash comparison, staging, preprocessing, and metadata tracking.
package datasets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
)

// MetadataFilename is the metadata file kept next to staged datasets.
const MetadataFilename = "metadata.json"

// Entry records when a dataset file last changed and the hash of its payload.
type Entry struct {
	DateTimeUpdated string `json:"DateTimeUpdated"`
	Hash            string `json:"hash"`
}

// Metadata tracks the last refresh time and one entry per dataset file.
// On disk it is a single JSON object whose "DateTimeUpdated" key is the run
// timestamp and whose remaining keys are dataset filenames.
type Metadata struct {
	DateTimeUpdated string
	Datasets        map[string]Entry
}

// NewMetadata returns an empty metadata document.
func NewMetadata() *Metadata {
	return &Metadata{
		Datasets: make(map[string]Entry),
	}
}

// MarshalJSON flattens the document into the on-disk shape.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(m.Datasets)+1)
	doc["DateTimeUpdated"] = m.DateTimeUpdated
	for file, entry := range m.Datasets {
		doc[file] = entry
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the flattened on-disk shape.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	m.Datasets = make(map[string]Entry, len(doc))
	for key, raw := range doc {
		if key == "DateTimeUpdated" {
			if err := json.Unmarshal(raw, &m.DateTimeUpdated); err != nil {
				return fmt.Errorf("invalid DateTimeUpdated: %w", err)
			}
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("invalid entry for %s: %w", key, err)
		}
		m.Datasets[key] = entry
	}
	return nil
}

// MetadataStore persists metadata.json in the staging directory.
type MetadataStore struct {
	filePath string
	log      *logger.Logger
}

// NewMetadataStore creates a store rooted at the staging directory.
func NewMetadataStore(stagingDir string, log *logger.Logger) *MetadataStore {
	return &MetadataStore{
		filePath: filepath.Join(stagingDir, MetadataFilename),
		log:      log,
	}
}

// Load reads metadata.json. A missing or unreadable file yields a fresh
// empty document; a refresh run starts over instead of failing.
func (s *MetadataStore) Load() *Metadata {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		s.log.Info("no existing metadata, starting fresh",
			logger.Field{Key: "file", Value: s.filePath},
			logger.Field{Key: "reason", Value: err.Error()})
		return NewMetadata()
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.log.Warn("metadata file is corrupt, starting fresh",
			logger.Field{Key: "file", Value: s.filePath},
			logger.Field{Key: "reason", Value: err.Error()})
		return NewMetadata()
	}
	if meta.Datasets == nil {
		meta.Datasets = make(map[string]Entry)
	}
	return &meta
}

// Save writes metadata.json atomically: the document goes to a temporary
// file which is synced and renamed over the real one, so a crash never
// leaves a half-written metadata file behind.
func (s *MetadataStore) Save(meta *Metadata) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temporary metadata file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close metadata file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}

	return nil
}

// Path returns the metadata file location.
func (s *MetadataStore) Path() string {
	return s.filePath
}
