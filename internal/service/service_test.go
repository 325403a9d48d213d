package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/mailer"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type env struct {
	store    store.Store
	entities *EntityService
	funcs    *Functions
	auth     *AuthService
	mail     *fakeMailer
}

func newEnv(t *testing.T, opts ...func(*env)) *env {
	t.Helper()
	s, err := store.NewMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := &env{store: s, mail: &fakeMailer{}}
	e.entities = NewEntityService(s)
	e.funcs = NewFunctions(s, e.entities, e.mail, true, zap.NewNop())
	e.auth = NewAuthService(s, e.funcs, AuthOptions{Secret: "test"}, zap.NewNop())
	for _, o := range opts {
		o(e)
	}
	return e
}

// pendingCode returns the single unconsumed code stored for email.
func (e *env) pendingCode(t *testing.T, email string) string {
	t.Helper()
	codes, err := e.store.Filter(context.Background(), models.EntityVerificationCode, store.Record{"email": email, "verified": false}, "", 0)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	return codes[0]["code"].(string)
}

func (e *env) seedMember(t *testing.T, rec store.Record) store.Record {
	t.Helper()
	m, err := e.entities.Create(context.Background(), models.EntityTeamMember, rec, "")
	require.NoError(t, err)
	return m
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
