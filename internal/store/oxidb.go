package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/db"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/pkg/oxidb"
)

// collectionPrefix namespaces entity collections on a shared OxiDB server.
const collectionPrefix = "hc_"

// oxidbBackend stores one collection per entity. The record id lives in an
// "id" field guarded by a unique index; the server's own _id only fixes
// insertion order.
type oxidbBackend struct {
	pool *db.Pool

	mu      sync.Mutex
	ensured map[string]bool
}

// NewOxiDB wraps an open pool. The pool is closed with the store.
func NewOxiDB(ctx context.Context, pool *db.Pool) (Store, error) {
	b := &oxidbBackend{pool: pool, ensured: map[string]bool{}}
	existing, err := pool.Get().ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	for _, name := range existing {
		b.ensured[name] = true
	}
	return newEntityStore(b), nil
}

func (o *oxidbBackend) collection(ctx context.Context, table string) (string, error) {
	name := collectionPrefix + table
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ensured[name] {
		return name, nil
	}
	c := o.pool.Get()
	if err := c.CreateCollection(ctx, name); err != nil && !oxidb.IsConflict(err) {
		return "", fmt.Errorf("create collection %s: %w", name, err)
	}
	if err := c.CreateUniqueIndex(ctx, name, "id"); err != nil && !oxidb.IsConflict(err) {
		return "", fmt.Errorf("index %s.id: %w", name, err)
	}
	o.ensured[name] = true
	return name, nil
}

func (o *oxidbBackend) fetchAll(ctx context.Context, table string) ([]Record, error) {
	name, err := o.collection(ctx, table)
	if err != nil {
		return nil, err
	}
	docs, err := o.pool.Get().Find(ctx, name, map[string]any{}, &oxidb.FindOptions{Sort: map[string]any{"_id": 1}})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, stripInternal(d))
	}
	return out, nil
}

func (o *oxidbBackend) fetch(ctx context.Context, table, id string) (Record, error) {
	name, err := o.collection(ctx, table)
	if err != nil {
		return nil, err
	}
	doc, err := o.pool.Get().FindOne(ctx, name, map[string]any{"id": id})
	if err != nil || doc == nil {
		return nil, err
	}
	return stripInternal(doc), nil
}

func (o *oxidbBackend) put(ctx context.Context, table string, rec Record) error {
	name, err := o.collection(ctx, table)
	if err != nil {
		return err
	}
	c := o.pool.Get()
	query := map[string]any{"id": rec["id"]}
	n, err := c.Count(ctx, name, query)
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = c.Insert(ctx, name, rec)
		if !oxidb.IsConflict(err) {
			return err
		}
	}
	_, err = c.UpdateOne(ctx, name, query, map[string]any{"$set": rec})
	return err
}

func (o *oxidbBackend) remove(ctx context.Context, table, id string) error {
	name, err := o.collection(ctx, table)
	if err != nil {
		return err
	}
	_, err = o.pool.Get().Delete(ctx, name, map[string]any{"id": id})
	return err
}

func (o *oxidbBackend) truncate(ctx context.Context, table string) error {
	name, err := o.collection(ctx, table)
	if err != nil {
		return err
	}
	_, err = o.pool.Get().Delete(ctx, name, map[string]any{})
	return err
}

func (o *oxidbBackend) close() error {
	o.pool.Close()
	return nil
}

func stripInternal(doc map[string]any) Record {
	delete(doc, "_id")
	delete(doc, "_version")
	return doc
}
