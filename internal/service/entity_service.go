package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/auth"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

// systemFields are owned by the service and ignored when a caller sends them.
var systemFields = []string{"id", "created_date", "updated_date", "created_by"}

// oneWayFlags may go from false to true but never back.
var oneWayFlags = map[string][]string{
	models.EntityTask:             {"reminder_sent"},
	models.EntityVerificationCode: {"verified"},
}

// EntityService is the validated entry point for generic entity CRUD. It
// hashes passwords, stamps dates and keeps internal entities out of reach.
type EntityService struct {
	store store.Store
	now   func() time.Time

	// bootstrap serializes CreateIfEmpty across every caller sharing this service.
	bootstrap sync.Mutex
}

func NewEntityService(s store.Store) *EntityService {
	return &EntityService{store: s, now: time.Now}
}

func (s *EntityService) public(entity string) error {
	if !models.Known(entity) || models.Internal(entity) {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return nil
}

func (s *EntityService) List(ctx context.Context, entity string, query map[string]any, orderBy string, limit int) ([]store.Record, error) {
	if err := s.public(entity); err != nil {
		return nil, err
	}
	records, err := s.store.Filter(ctx, entity, query, orderBy, limit)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		sanitize(entity, r)
	}
	return records, nil
}

func (s *EntityService) Get(ctx context.Context, entity, id string) (store.Record, error) {
	if err := s.public(entity); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return sanitize(entity, rec), nil
}

func (s *EntityService) Create(ctx context.Context, entity string, data store.Record, actor string) (store.Record, error) {
	if err := s.public(entity); err != nil {
		return nil, err
	}
	return s.create(ctx, entity, data, actor)
}

// create skips the public check so server-side flows can reuse it.
func (s *EntityService) create(ctx context.Context, entity string, data store.Record, actor string) (store.Record, error) {
	rec, err := prepare(entity, data)
	if err != nil {
		return nil, err
	}
	if id, ok := data["id"].(string); ok && id != "" {
		existing, err := s.store.Get(ctx, entity, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%s %s: %w", entity, id, ErrConflict)
		}
		rec["id"] = id
	}
	now := s.now().UTC().Format(time.RFC3339)
	rec["created_date"] = now
	rec["updated_date"] = now
	if actor != "" {
		rec["created_by"] = actor
	}
	if err := models.Validate(entity, rec); err != nil {
		return nil, err
	}
	created, err := s.store.Create(ctx, entity, rec)
	if err != nil {
		return nil, err
	}
	return sanitize(entity, created), nil
}

// CreateIfEmpty creates data only while entity holds no records. created is
// false, with a nil record, when the table was already populated.
func (s *EntityService) CreateIfEmpty(ctx context.Context, entity string, data store.Record, actor string) (rec store.Record, created bool, err error) {
	if err := s.public(entity); err != nil {
		return nil, false, err
	}
	return s.createIfEmpty(ctx, entity, data, actor)
}

func (s *EntityService) createIfEmpty(ctx context.Context, entity string, data store.Record, actor string) (store.Record, bool, error) {
	s.bootstrap.Lock()
	defer s.bootstrap.Unlock()
	existing, err := s.store.Filter(ctx, entity, nil, "", 1)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return nil, false, nil
	}
	rec, err := s.create(ctx, entity, data, actor)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *EntityService) Update(ctx context.Context, entity, id string, partial store.Record) (store.Record, error) {
	if err := s.public(entity); err != nil {
		return nil, err
	}
	current, err := s.store.Get(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	patch, err := prepare(entity, partial)
	if err != nil {
		return nil, err
	}
	if err := checkOneWay(entity, current, patch); err != nil {
		return nil, err
	}
	patch["updated_date"] = s.now().UTC().Format(time.RFC3339)

	merged := store.Record{}
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	if err := models.Validate(entity, merged); err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, entity, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return sanitize(entity, updated), nil
}

// Delete is idempotent: removing an absent record succeeds.
func (s *EntityService) Delete(ctx context.Context, entity, id string) error {
	if err := s.public(entity); err != nil {
		return err
	}
	return s.store.Delete(ctx, entity, id)
}

// prepare copies caller data, drops system fields and turns a plaintext
// password into a bcrypt hash.
func prepare(entity string, data store.Record) (store.Record, error) {
	rec := make(store.Record, len(data))
	for k, v := range data {
		rec[k] = v
	}
	for _, f := range systemFields {
		delete(rec, f)
	}
	delete(rec, "password_hash")
	if pw, ok := rec["password"]; ok {
		delete(rec, "password")
		if entity != models.EntityTeamMember {
			return nil, fmt.Errorf("%w: password is only accepted on %s", ErrValidation, models.EntityTeamMember)
		}
		plain, _ := pw.(string)
		if plain == "" {
			return nil, fmt.Errorf("%w: password must be a non-empty string", ErrValidation)
		}
		hash, err := auth.HashPassword(plain)
		if err != nil {
			return nil, err
		}
		rec["password_hash"] = hash
	}
	return rec, nil
}

func checkOneWay(entity string, current, patch store.Record) error {
	for _, field := range oneWayFlags[entity] {
		v, ok := patch[field]
		if !ok {
			continue
		}
		if was, _ := current[field].(bool); was && v != true {
			return fmt.Errorf("%w: %s cannot be reset once true", ErrValidation, field)
		}
	}
	return nil
}

func sanitize(entity string, rec store.Record) store.Record {
	if entity == models.EntityTeamMember {
		delete(rec, "password_hash")
	}
	return rec
}
