package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/pkg/oxidb/oxidbtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newServer(t *testing.T) *oxidbtest.Server {
	t.Helper()
	srv, err := oxidbtest.NewServer()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func TestPoolRoundRobin(t *testing.T) {
	srv := newServer(t)
	p, err := NewPool(Options{Host: srv.Host(), Port: srv.Port(), Size: 3, Keepalive: time.Hour})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 3, p.Size())
	a, b, c, d := p.Get(), p.Get(), p.Get(), p.Get()
	assert.NotSame(t, a, b)
	assert.NotSame(t, b, c)
	assert.Same(t, a, d)
}

func TestPoolReconnectsAfterDrop(t *testing.T) {
	srv := newServer(t)
	p, err := NewPool(Options{Host: srv.Host(), Port: srv.Port(), Size: 2, Keepalive: time.Hour})
	require.NoError(t, err)
	defer p.Close()

	srv.DropConnections()
	require.NoError(t, p.Ping(context.Background()))

	for i := 0; i < p.Size(); i++ {
		pong, err := p.Get().Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "pong", pong)
	}
}

func TestPoolConnectFailure(t *testing.T) {
	srv := newServer(t)
	host, port := srv.Host(), srv.Port()
	srv.Close()

	_, err := NewPool(Options{Host: host, Port: port, Size: 1})
	assert.Error(t, err)
}

func TestPoolCloseIdempotent(t *testing.T) {
	srv := newServer(t)
	p, err := NewPool(Options{Host: srv.Host(), Port: srv.Port(), Size: 1, Keepalive: 10 * time.Millisecond})
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	p.Close()
	p.Close()
}
