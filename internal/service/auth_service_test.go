package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

func TestLoginIssuesSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	member := e.seedMember(t, store.Record{"full_name": "A", "national_id": "1", "role": "governor", "password": "p"})

	res, err := e.auth.Login(ctx, "1", "p")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.False(t, res.PendingVerification)
	assert.NotContains(t, res.User, "password_hash")

	me, err := e.auth.Me(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, member["id"], me["id"])
	assert.NotContains(t, me, "password_hash")
	assert.True(t, e.auth.IsAuthenticated(ctx, res.Token))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedMember(t, store.Record{"full_name": "A", "national_id": "1", "role": "member", "password": "p"})

	_, err := e.auth.Login(ctx, "1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.auth.Login(ctx, "2", "p")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsInactiveMember(t *testing.T) {
	e := newEnv(t)
	e.seedMember(t, store.Record{"full_name": "A", "national_id": "1", "role": "member", "status": "inactive", "password": "p"})
	_, err := e.auth.Login(context.Background(), "1", "p")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMeWithoutSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.auth.Me(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = e.auth.Me(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, e.auth.IsAuthenticated(ctx, "garbage"))
	assert.False(t, e.auth.IsAuthenticated(ctx, ""))
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedMember(t, store.Record{"full_name": "A", "national_id": "1", "role": "member", "password": "p"})

	res, err := e.auth.Login(ctx, "1", "p")
	require.NoError(t, err)

	redirect := e.auth.Logout(ctx, res.Token, "/login")
	assert.Equal(t, "/login", redirect)
	assert.False(t, e.auth.IsAuthenticated(ctx, res.Token))
	_, err = e.auth.Me(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other, err := e.auth.Login(ctx, "1", "p")
	require.NoError(t, err)
	assert.True(t, e.auth.IsAuthenticated(ctx, other.Token))
}

func TestSessionEndsWhenMemberDeactivated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	member := e.seedMember(t, store.Record{"full_name": "A", "national_id": "1", "role": "member", "password": "p"})

	res, err := e.auth.Login(ctx, "1", "p")
	require.NoError(t, err)

	_, err = e.entities.Update(ctx, models.EntityTeamMember, member["id"].(string), store.Record{"status": "inactive"})
	require.NoError(t, err)
	assert.False(t, e.auth.IsAuthenticated(ctx, res.Token))
}

func TestLoginWithEmailCode(t *testing.T) {
	e := newEnv(t, func(e *env) {
		e.auth = NewAuthService(e.store, e.funcs, AuthOptions{Secret: "test", RequireEmailCode: true}, zap.NewNop())
	})
	ctx := context.Background()
	e.seedMember(t, store.Record{"full_name": "A", "national_id": "1", "email": "A@x.com", "role": "coordinator", "password": "p"})

	res, err := e.auth.Login(ctx, "1", "p")
	require.NoError(t, err)
	assert.True(t, res.PendingVerification)
	assert.Empty(t, res.Token)
	assert.Equal(t, "a@x.com", res.Email)

	_, err = e.auth.VerifyLogin(ctx, "a@x.com", "000000x")
	assert.ErrorIs(t, err, ErrInvalidCode)

	code := e.pendingCode(t, "a@x.com")
	done, err := e.auth.VerifyLogin(ctx, "a@x.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, done.Token)
	assert.True(t, e.auth.IsAuthenticated(ctx, done.Token))
}

func TestVerifyUsesCurrentRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	member := e.seedMember(t, store.Record{"full_name": "A", "national_id": "1", "role": "member", "password": "p"})
	res, err := e.auth.Login(ctx, "1", "p")
	require.NoError(t, err)

	_, err = e.entities.Update(ctx, models.EntityTeamMember, member["id"].(string), store.Record{"role": "governor"})
	require.NoError(t, err)
	claims, err := e.auth.Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleGovernor, claims.Role)
}
