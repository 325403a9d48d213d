package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

func TestEntityCreateThenGet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.entities.now = fixedClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	input := store.Record{"title": "Audit clinics", "status": "pending", "priority": "high"}
	created, err := e.entities.Create(ctx, models.EntityTask, input, "u1")
	require.NoError(t, err)
	id := created["id"].(string)

	got, err := e.entities.Get(ctx, models.EntityTask, id)
	require.NoError(t, err)
	for k, v := range input {
		assert.Equal(t, v, got[k], k)
	}
	assert.Equal(t, "2025-01-02T03:04:05Z", got["created_date"])
	assert.Equal(t, "u1", got["created_by"])
}

func TestEntityCreateKeepsExplicitID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.entities.Create(ctx, models.EntityCommittee, store.Record{"id": "c-1", "name": "Health"}, "")
	require.NoError(t, err)
	assert.Equal(t, "c-1", created["id"])

	_, err = e.entities.Create(ctx, models.EntityCommittee, store.Record{"id": "c-1", "name": "Again"}, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEntityUpdateKeepsIDAndFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.entities.Create(ctx, models.EntityTask, store.Record{"title": "t", "priority": "low"}, "")
	require.NoError(t, err)
	id := created["id"].(string)

	updated, err := e.entities.Update(ctx, models.EntityTask, id, store.Record{"id": "other", "status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, id, updated["id"])
	assert.Equal(t, "t", updated["title"])
	assert.Equal(t, "low", updated["priority"])
	assert.Equal(t, "completed", updated["status"])
	assert.Equal(t, created["created_date"], updated["created_date"])

	_, err = e.entities.Update(ctx, models.EntityTask, "missing", store.Record{"status": "completed"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityUpdateValidatesMergedRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.entities.Create(ctx, models.EntityTask, store.Record{"title": "t"}, "")
	require.NoError(t, err)
	_, err = e.entities.Update(ctx, models.EntityTask, created["id"].(string), store.Record{"status": "exploded"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEntityUpdateCannotClearReminderSent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.entities.Create(ctx, models.EntityTask, store.Record{"title": "t", "reminder_sent": true}, "")
	require.NoError(t, err)
	id := created["id"].(string)

	_, err = e.entities.Update(ctx, models.EntityTask, id, store.Record{"reminder_sent": false})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.entities.Update(ctx, models.EntityTask, id, store.Record{"reminder_sent": nil})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := e.entities.Get(ctx, models.EntityTask, id)
	require.NoError(t, err)
	assert.Equal(t, true, got["reminder_sent"])

	_, err = e.entities.Update(ctx, models.EntityTask, id, store.Record{"reminder_sent": true, "status": "completed"})
	assert.NoError(t, err)

	fresh, err := e.entities.Create(ctx, models.EntityTask, store.Record{"title": "u"}, "")
	require.NoError(t, err)
	_, err = e.entities.Update(ctx, models.EntityTask, fresh["id"].(string), store.Record{"reminder_sent": false})
	assert.NoError(t, err)
}

func TestEntityDeleteThenGet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.entities.Create(ctx, models.EntityBudget, store.Record{"name": "2025", "total_amount": 1000}, "")
	require.NoError(t, err)
	id := created["id"].(string)

	require.NoError(t, e.entities.Delete(ctx, models.EntityBudget, id))
	_, err = e.entities.Get(ctx, models.EntityBudget, id)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, e.entities.Delete(ctx, models.EntityBudget, id))
}

func TestEntityPasswordIsHashedAndHidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	member := e.seedMember(t, store.Record{"full_name": "A", "national_id": "9", "role": "member", "password": "secret"})
	assert.NotContains(t, member, "password")
	assert.NotContains(t, member, "password_hash")

	stored, err := e.store.Get(ctx, models.EntityTeamMember, member["id"].(string))
	require.NoError(t, err)
	assert.NotEqual(t, "secret", stored["password_hash"])
	assert.NotEmpty(t, stored["password_hash"])

	listed, err := e.entities.List(ctx, models.EntityTeamMember, nil, "", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotContains(t, listed[0], "password_hash")

	_, err = e.entities.Create(ctx, models.EntityTeamMember, store.Record{"full_name": "B", "national_id": "8", "role": "member", "password_hash": "forged"}, "")
	require.NoError(t, err)
	forged, err := e.store.Filter(ctx, models.EntityTeamMember, store.Record{"national_id": "8"}, "", 1)
	require.NoError(t, err)
	assert.NotContains(t, forged[0], "password_hash")

	_, err = e.entities.Create(ctx, models.EntityTask, store.Record{"title": "t", "password": "x"}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEntityInternalAndUnknownRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.entities.List(ctx, models.EntityVerificationCode, nil, "", 0)
	assert.ErrorIs(t, err, ErrUnknownEntity)
	_, err = e.entities.Create(ctx, "Spaceship", store.Record{}, "")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestEntityValidationOnCreate(t *testing.T) {
	e := newEnv(t)
	_, err := e.entities.Create(context.Background(), models.EntityTeamMember, store.Record{"full_name": "A"}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEntityListFilterOrderLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, title := range []string{"b", "a", "c"} {
		_, err := e.entities.Create(ctx, models.EntityTask, store.Record{"title": title, "status": "pending"}, "")
		require.NoError(t, err)
	}
	_, err := e.entities.Create(ctx, models.EntityTask, store.Record{"title": "z", "status": "completed"}, "")
	require.NoError(t, err)

	got, err := e.entities.List(ctx, models.EntityTask, map[string]any{"status": "pending"}, "-title", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0]["title"])
	assert.Equal(t, "b", got[1]["title"])
}
