// Package backup writes whole-store JSON snapshots to disk and restores them.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

const (
	snapshotVersion = 1
	filePrefix      = "backup-"
	fileSuffix      = ".json"
	timeLayout      = "20060102T150405Z"
	maxSameSecond   = 99
)

var (
	// ErrInvalidSnapshot means the file is not a snapshot this package wrote.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrNoSnapshots is returned by RestoreLatest when the directory is empty.
	ErrNoSnapshots = errors.New("no snapshots")
	// ErrBusy is returned by TryCreate when another backup or restore holds the lock.
	ErrBusy = errors.New("backup in progress")
)

var reasonSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type Snapshot struct {
	Version     int                       `json:"version"`
	GeneratedAt string                    `json:"generated_at"`
	Reason      string                    `json:"reason"`
	Tables      map[string][]store.Record `json:"tables"`
}

type FileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Manager serializes backup, cleanup and restore behind one mutex.
type Manager struct {
	store     store.TableAdmin
	dir       string
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewManager(s store.TableAdmin, dir string, retentionDays int, logger *zap.Logger) *Manager {
	return &Manager{
		store:     s,
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger.Named("backup"),
		now:       time.Now,
	}
}

func (m *Manager) Dir() string { return m.dir }

// Create writes a snapshot of every table and prunes expired files.
func (m *Manager) Create(ctx context.Context, reason string) (*FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(ctx, reason)
}

// TryCreate is Create for scheduled firings: it gives up with ErrBusy instead of waiting.
func (m *Manager) TryCreate(ctx context.Context, reason string) (*FileInfo, error) {
	if !m.mu.TryLock() {
		return nil, ErrBusy
	}
	defer m.mu.Unlock()
	return m.create(ctx, reason)
}

func (m *Manager) create(ctx context.Context, reason string) (*FileInfo, error) {
	now := m.now().UTC()
	snap := Snapshot{
		Version:     snapshotVersion,
		GeneratedAt: now.Format(time.RFC3339),
		Reason:      reason,
		Tables:      make(map[string][]store.Record),
	}
	records := 0
	for _, table := range models.Names() {
		rows, err := m.store.Dump(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", table, err)
		}
		if rows == nil {
			rows = []store.Record{}
		}
		snap.Tables[table] = rows
		records += len(rows)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	name, path, err := m.publish(now, reason, data)
	if err != nil {
		return nil, err
	}
	m.logger.Info("snapshot written",
		zap.String("path", path),
		zap.String("reason", reason),
		zap.Int("records", records),
	)

	if _, err := m.cleanup(now); err != nil {
		m.logger.Warn("retention cleanup failed", zap.Error(err))
	}
	return &FileInfo{Name: name, Path: path, Size: int64(len(data)), Modified: now}, nil
}

// publish writes data to a temporary file and hard-links it under the first
// free snapshot name, so a snapshot taken in the same second with the same
// reason never replaces an earlier one.
func (m *Manager) publish(now time.Time, reason string, data []byte) (string, string, error) {
	tmp, err := os.CreateTemp(m.dir, filePrefix+"*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", fmt.Errorf("write snapshot: %w", err)
	}

	for seq := 1; seq <= maxSameSecond; seq++ {
		name := fileName(now, reason, seq)
		path := filepath.Join(m.dir, name)
		err := os.Link(tmp.Name(), path)
		if err == nil {
			return name, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("finalize snapshot: %w", err)
		}
	}
	return "", "", fmt.Errorf("finalize snapshot: %d snapshots already named for %s", maxSameSecond, now.Format(timeLayout))
}

// fileName builds backup-<stamp>-<reason>.json. Later snapshots in the same
// second get a _NN suffix on the stamp, which also sorts them after the first.
func fileName(t time.Time, reason string, seq int) string {
	reason = strings.Trim(reasonSanitizer.ReplaceAllString(reason, "-"), "-")
	if reason == "" {
		reason = "manual"
	}
	stamp := t.Format(timeLayout)
	if seq > 1 {
		stamp += fmt.Sprintf("_%02d", seq)
	}
	return filePrefix + stamp + "-" + reason + fileSuffix
}

// List returns snapshots newest first. A missing directory is an empty list.
func (m *Manager) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, err
	}
	files := []FileInfo{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:     name,
			Path:     filepath.Join(m.dir, name),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	// The timestamp in the name breaks ties between files written in the same second.
	sort.Slice(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Restore replaces every table with the snapshot's contents. Tables missing
// from the snapshot end up empty.
func (m *Manager) Restore(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := Read(path)
	if err != nil {
		return err
	}
	for name := range snap.Tables {
		if !models.Known(name) {
			m.logger.Warn("skipping unknown table in snapshot", zap.String("table", name))
		}
	}

	restored := 0
	for _, table := range models.Names() {
		if err := m.store.Clear(ctx, table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		rows := snap.Tables[table]
		if len(rows) == 0 {
			continue
		}
		if err := m.store.Insert(ctx, table, rows); err != nil {
			return fmt.Errorf("restore %s: %w", table, err)
		}
		restored += len(rows)
	}
	m.logger.Info("snapshot restored", zap.String("path", path), zap.Int("records", restored))
	return nil
}

// RestoreLatest restores the newest snapshot and returns its path.
func (m *Manager) RestoreLatest(ctx context.Context) (string, error) {
	files, err := m.List()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", ErrNoSnapshots
	}
	return files[0].Path, m.Restore(ctx, files[0].Path)
}

// Cleanup removes snapshots older than the retention window and reports how
// many were deleted. A zero retention keeps everything.
func (m *Manager) Cleanup(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanup(now)
}

func (m *Manager) cleanup(now time.Time) (int, error) {
	if m.retention <= 0 {
		return 0, nil
	}
	files, err := m.List()
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-m.retention)
	removed := 0
	for _, f := range files {
		if !f.Modified.Before(cutoff) {
			continue
		}
		if err := os.Remove(f.Path); err != nil {
			return removed, err
		}
		removed++
		m.logger.Info("expired snapshot removed", zap.String("path", f.Path))
	}
	return removed, nil
}

// Read decodes and checks a snapshot file without touching the store.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	tables, ok := raw["tables"]
	if !ok || len(tables) == 0 || tables[0] != '{' {
		return nil, fmt.Errorf("%w: tables must be an object", ErrInvalidSnapshot)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return &snap, nil
}
