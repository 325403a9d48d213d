package oxidb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/pkg/oxidb"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/pkg/oxidb/oxidbtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func getClient(t *testing.T) (*oxidb.Client, *oxidbtest.Server) {
	t.Helper()
	srv, err := oxidbtest.NewServer()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	c, err := oxidb.Connect(srv.Host(), srv.Port(), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestPing(t *testing.T) {
	c, _ := getClient(t)
	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", pong)
}

func TestCollections(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateCollection(ctx, "Task"))
	cols, err := c.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, cols, "Task")
}

func TestCRUD(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	_, err := c.Insert(ctx, "Task", map[string]any{"id": "a", "title": "first", "rank": 2})
	require.NoError(t, err)
	_, err = c.Insert(ctx, "Task", map[string]any{"id": "b", "title": "second", "rank": 1})
	require.NoError(t, err)

	docs, err := c.Find(ctx, "Task", map[string]any{}, &oxidb.FindOptions{Sort: map[string]any{"_id": 1}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["id"])

	limit := 1
	docs, err = c.Find(ctx, "Task", map[string]any{}, &oxidb.FindOptions{Sort: map[string]any{"rank": 1}, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0]["id"])

	doc, err := c.FindOne(ctx, "Task", map[string]any{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "first", doc["title"])

	_, err = c.UpdateOne(ctx, "Task", map[string]any{"id": "a"}, map[string]any{"$set": map[string]any{"title": "renamed"}})
	require.NoError(t, err)
	doc, err = c.FindOne(ctx, "Task", map[string]any{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", doc["title"])

	n, err := c.Count(ctx, "Task", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = c.Delete(ctx, "Task", map[string]any{"id": "a"})
	require.NoError(t, err)
	doc, err = c.FindOne(ctx, "Task", map[string]any{"id": "a"})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestUniqueIndexConflict(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateUniqueIndex(ctx, "TeamMember", "id"))
	_, err := c.Insert(ctx, "TeamMember", map[string]any{"id": "x"})
	require.NoError(t, err)
	_, err = c.Insert(ctx, "TeamMember", map[string]any{"id": "x"})
	require.Error(t, err)
	assert.True(t, oxidb.IsConflict(err))
}

func TestCanceledContext(t *testing.T) {
	c, _ := getClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDroppedConnection(t *testing.T) {
	c, srv := getClient(t)
	srv.DropConnections()
	_, err := c.Ping(context.Background())
	assert.Error(t, err)
}
