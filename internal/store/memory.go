package store

import (
	"context"
	"sync"
)

type memTable struct {
	rows  map[string]Record
	order []string
}

// memoryBackend keeps every table in process. With a Persistence attached each
// mutated table is rewritten to disk before the call returns.
type memoryBackend struct {
	mu        sync.RWMutex
	tables    map[string]*memTable
	persister *Persistence
	closed    bool
}

// NewMemory returns an in-process store. p may be nil for a purely volatile store;
// otherwise the tables found in p's directory are loaded first.
func NewMemory(p *Persistence) (Store, error) {
	b := &memoryBackend{tables: make(map[string]*memTable), persister: p}
	if p != nil {
		initial, err := p.LoadAll()
		if err != nil {
			return nil, err
		}
		for table, rows := range initial {
			t := b.table(table)
			for _, rec := range rows {
				id, _ := rec["id"].(string)
				if id == "" {
					continue
				}
				if _, exists := t.rows[id]; !exists {
					t.order = append(t.order, id)
				}
				t.rows[id] = rec
			}
		}
	}
	return newEntityStore(b), nil
}

// table must be called with mu held for writing, or on an already-existing table.
func (m *memoryBackend) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]Record)}
		m.tables[name] = t
	}
	return t
}

func (m *memoryBackend) fetchAll(_ context.Context, table string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}
	t, ok := m.tables[table]
	if !ok {
		return []Record{}, nil
	}
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, copyRecord(t.rows[id]))
	}
	return out, nil
}

func (m *memoryBackend) fetch(_ context.Context, table, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}
	t, ok := m.tables[table]
	if !ok {
		return nil, nil
	}
	rec, ok := t.rows[id]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (m *memoryBackend) put(_ context.Context, table string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	t := m.table(table)
	id, _ := rec["id"].(string)
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = copyRecord(rec)
	return m.persist(table, t)
}

func (m *memoryBackend) remove(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	if _, exists := t.rows[id]; !exists {
		return nil
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return m.persist(table, t)
}

func (m *memoryBackend) truncate(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	t := m.table(table)
	t.rows = make(map[string]Record)
	t.order = nil
	return m.persist(table, t)
}

func (m *memoryBackend) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// persist must be called with mu held.
func (m *memoryBackend) persist(table string, t *memTable) error {
	if m.persister == nil {
		return nil
	}
	rows := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		rows = append(rows, t.rows[id])
	}
	return m.persister.SaveTable(table, rows)
}

// copyRecord is shallow. Nested values are replaced by the entity layer, never mutated.
func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
