package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Persistence mirrors memory tables to one JSON file per table.
type Persistence struct {
	DataDir string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewPersistence ensures dir exists and returns a handler writing into it.
func NewPersistence(dir string, logger *zap.Logger) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{DataDir: dir, logger: logger}, nil
}

// SaveTable writes rows atomically: a temp file is written then renamed over
// the previous snapshot, so readers see either the old or the new table.
func (p *Persistence) SaveTable(table string, rows []Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := filepath.Join(p.DataDir, table+".json")
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode table %s: %w", table, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write table %s: %w", table, err)
	}
	return os.Rename(tmp, path)
}

// LoadAll reads every table file in the data directory. Unreadable files are
// skipped with a warning.
func (p *Persistence) LoadAll() (map[string][]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Record)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		table := strings.TrimSuffix(e.Name(), ".json")
		content, err := os.ReadFile(filepath.Join(p.DataDir, e.Name()))
		if err != nil {
			p.logger.Warn("could not read table file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		var rows []Record
		if err := json.Unmarshal(content, &rows); err != nil {
			p.logger.Warn("could not decode table file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		out[table] = rows
	}
	return out, nil
}
