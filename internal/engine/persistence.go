package engine

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "engine")

// Persistence handles the disk I/O for the MemStore.
// Each collection lives in its own <collection>.json file.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	saved   map[string]uint64
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Annotatef(err, "creating data dir %q", dir)
	}
	return &Persistence{DataDir: dir, saved: make(map[string]uint64)}, nil
}

// SaveCollection writes a collection snapshot to disk atomically. Snapshots
// older than the last one written for the same collection are dropped.
func (p *Persistence) SaveCollection(collection string, gen uint64, data map[string]Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen < p.saved[collection] {
		return nil
	}

	filePath := filepath.Join(p.DataDir, collection+".json")
	tempPath := filePath + ".tmp"

	// Compact encoding keeps each document's bytes as stored.
	content, err := json.Marshal(data)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return errors.Trace(err)
	}
	// Rename is atomic: readers see either the old file or the new one.
	if err := os.Rename(tempPath, filePath); err != nil {
		return errors.Trace(err)
	}
	p.saved[collection] = gen
	return nil
}

// LoadAll returns all collections found in the data directory.
func (p *Persistence) LoadAll() (map[string]map[string]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string]map[string]Record)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, errors.Trace(err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		collection := strings.TrimSuffix(file.Name(), ".json")

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			logger.WithError(err).WithField("file", file.Name()).Warn("could not read collection file")
			continue
		}

		var docs map[string]Record
		if err := json.Unmarshal(content, &docs); err != nil {
			logger.WithError(err).WithField("file", file.Name()).Warn("could not decode collection file")
			continue
		}
		for id, rec := range docs {
			var compact bytes.Buffer
			if err := json.Compact(&compact, rec.Doc); err != nil {
				return nil, errors.Annotatef(err, "compacting %s %q", collection, id)
			}
			rec.ID = id
			rec.Doc = compact.Bytes()
			docs[id] = rec
		}
		allData[collection] = docs
	}
	return allData, nil
}
