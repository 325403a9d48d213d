// Package store implements the entity store behind every Healthy City facade.
// All backends share the same record semantics; only the storage medium differs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
)

// ErrUnknownEntity is returned when a caller names a table the registry does not know.
var ErrUnknownEntity = models.ErrUnknownEntity

// Record is one untyped row of an entity table. Every record has a string "id".
type Record = map[string]any

// EntityReader defines the read side of the entity contract.
type EntityReader interface {
	List(ctx context.Context, entity, orderBy string) ([]Record, error)
	Filter(ctx context.Context, entity string, query Record, orderBy string, limit int) ([]Record, error)
	// Get returns (nil, nil) when no record has the id.
	Get(ctx context.Context, entity, id string) (Record, error)
}

// EntityWriter defines the write side of the entity contract.
type EntityWriter interface {
	Create(ctx context.Context, entity string, data Record) (Record, error)
	// Update shallow-merges partial into the stored record. Returns (nil, nil) when absent.
	Update(ctx context.Context, entity, id string, partial Record) (Record, error)
	Delete(ctx context.Context, entity, id string) error
}

// TableAdmin exposes the whole-table primitives used by backup and seeding.
type TableAdmin interface {
	Dump(ctx context.Context, table string) ([]Record, error)
	Clear(ctx context.Context, table string) error
	Insert(ctx context.Context, table string, records []Record) error
}

// Store combines the full contract. Every backend returned by Open implements it.
type Store interface {
	EntityReader
	EntityWriter
	TableAdmin
	Close() error
}

// backend is the minimal medium-specific surface each storage variant provides.
// Ordering, filtering, id assignment and merging live in entityStore.
type backend interface {
	fetchAll(ctx context.Context, table string) ([]Record, error)
	fetch(ctx context.Context, table, id string) (Record, error)
	put(ctx context.Context, table string, rec Record) error
	remove(ctx context.Context, table, id string) error
	truncate(ctx context.Context, table string) error
	close() error
}

type entityStore struct {
	b backend
}

func newEntityStore(b backend) *entityStore {
	return &entityStore{b: b}
}

func checkEntity(entity string) error {
	if !models.Known(entity) {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return nil
}

func (s *entityStore) List(ctx context.Context, entity, orderBy string) ([]Record, error) {
	return s.Filter(ctx, entity, nil, orderBy, 0)
}

func (s *entityStore) Filter(ctx context.Context, entity string, query Record, orderBy string, limit int) ([]Record, error) {
	if err := checkEntity(entity); err != nil {
		return nil, err
	}
	all, err := s.b.fetchAll(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", entity, err)
	}
	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if Matches(rec, query) {
			out = append(out, rec)
		}
	}
	SortRecords(out, orderBy)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *entityStore) Get(ctx context.Context, entity, id string) (Record, error) {
	if err := checkEntity(entity); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return s.b.fetch(ctx, entity, id)
}

func (s *entityStore) Create(ctx context.Context, entity string, data Record) (Record, error) {
	if err := checkEntity(entity); err != nil {
		return nil, err
	}
	rec, err := normalize(data)
	if err != nil {
		return nil, err
	}
	if id, _ := rec["id"].(string); id == "" {
		rec["id"] = uuid.NewString()
	}
	if err := s.b.put(ctx, entity, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", entity, err)
	}
	return rec, nil
}

func (s *entityStore) Update(ctx context.Context, entity, id string, partial Record) (Record, error) {
	if err := checkEntity(entity); err != nil {
		return nil, err
	}
	current, err := s.b.fetch(ctx, entity, id)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", entity, err)
	}
	if current == nil {
		return nil, nil
	}
	patch, err := normalize(partial)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		current[k] = v
	}
	current["id"] = id
	if err := s.b.put(ctx, entity, current); err != nil {
		return nil, fmt.Errorf("update %s: %w", entity, err)
	}
	return current, nil
}

func (s *entityStore) Delete(ctx context.Context, entity, id string) error {
	if err := checkEntity(entity); err != nil {
		return err
	}
	if err := s.b.remove(ctx, entity, id); err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	return nil
}

func (s *entityStore) Dump(ctx context.Context, table string) ([]Record, error) {
	if err := checkEntity(table); err != nil {
		return nil, err
	}
	return s.b.fetchAll(ctx, table)
}

func (s *entityStore) Clear(ctx context.Context, table string) error {
	if err := checkEntity(table); err != nil {
		return err
	}
	return s.b.truncate(ctx, table)
}

// Insert writes records as-is, keeping their ids. Records without an id get one.
func (s *entityStore) Insert(ctx context.Context, table string, records []Record) error {
	if err := checkEntity(table); err != nil {
		return err
	}
	for i, r := range records {
		rec, err := normalize(r)
		if err != nil {
			return fmt.Errorf("insert %s[%d]: %w", table, i, err)
		}
		if id, _ := rec["id"].(string); id == "" {
			rec["id"] = uuid.NewString()
		}
		if err := s.b.put(ctx, table, rec); err != nil {
			return fmt.Errorf("insert %s[%d]: %w", table, i, err)
		}
	}
	return nil
}

func (s *entityStore) Close() error {
	return s.b.close()
}

// normalize deep-copies a record through JSON so every backend holds the same
// value types (string, float64, bool, []any, map[string]any, nil).
func normalize(in Record) (Record, error) {
	if in == nil {
		return Record{}, nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	out := Record{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if id, ok := out["id"]; ok {
		switch v := id.(type) {
		case string:
		case nil:
			delete(out, "id")
		default:
			out["id"] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func decodeRecord(data []byte) (Record, error) {
	rec := Record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

var errClosed = errors.New("store closed")
