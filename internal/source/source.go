// Package source reads raw CRM records out of flat files (CSV, JSON, XLSX)
// in bounded-size batches. Readers are finite, ordered, and restartable by
// reopening; parsing is lenient — per-field validation happens downstream.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
)

// DefaultBatchSize bounds how many records a single Next call returns.
const DefaultBatchSize = 1000

// ErrNoSource is returned by Locate when no source file exists for an entity.
var ErrNoSource = eris.New("source: no input file for entity")

// Reader yields raw records for one entity type in batches.
type Reader interface {
	// Entity returns the entity type this reader feeds.
	Entity() model.EntityType

	// Next returns the next batch of records, or io.EOF when the source is
	// exhausted. A returned batch is never empty.
	Next(ctx context.Context) ([]model.RawRecord, error)

	Close() error
}

// extensions lists the supported source formats in lookup order.
var extensions = []string{".csv", ".json", ".xlsx"}

// Locate finds the source file for an entity inside dir, trying
// <entity>.csv, <entity>.json, <entity>.xlsx in that order.
func Locate(dir string, entity model.EntityType) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(dir, string(entity)+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", eris.Wrapf(ErrNoSource, "source: %s in %s", entity, dir)
}

// Open creates a Reader for the given file, dispatching on extension.
func Open(path string, entity model.EntityType, batchSize int) (Reader, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return openCSV(path, entity, batchSize)
	case ".json":
		return openJSON(path, entity, batchSize)
	case ".xlsx":
		return openXLSX(path, entity, batchSize)
	default:
		return nil, eris.Errorf("source: unsupported file type %q", filepath.Ext(path))
	}
}
