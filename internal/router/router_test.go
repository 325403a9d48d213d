package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/backup"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/config"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/handler"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/mailer"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/seed"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

type testServer struct {
	t        *testing.T
	handler  http.Handler
	store    store.Store
	entities *service.EntityService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	s, err := store.NewMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	entities := service.NewEntityService(s)
	funcs := service.NewFunctions(s, entities, &mailer.LogMailer{Logger: logger}, true, logger)
	authSvc := service.NewAuthService(s, funcs, service.AuthOptions{Secret: "router-test"}, logger)
	seeder, err := seed.New(s, entities, config.SeedConfig{
		AdminNationalID: "1000000000", AdminPassword: "admin123", AdminName: "Governor", AdminEmail: "gov@x.com",
	}, logger)
	require.NoError(t, err)
	backups := backup.NewManager(s, t.TempDir(), 0, logger)

	h := New(logger, authSvc, Handlers{
		Auth:      handler.NewAuthHandler(authSvc, logger),
		Entities:  handler.NewEntityHandler(entities, logger),
		Functions: handler.NewFunctionHandler(funcs, logger),
		Admin:     handler.NewAdminHandler(seeder, backups, logger),
		Dashboard: handler.NewDashboardHandler(service.NewReportService(s), logger),
	})
	return &testServer{t: t, handler: h, store: s, entities: entities}
}

func (ts *testServer) do(method, path, token string, body any) (int, any) {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out any
	if rec.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (ts *testServer) member(role, nationalID string) {
	ts.t.Helper()
	_, err := ts.entities.Create(context.Background(), models.EntityTeamMember, store.Record{
		"full_name": role, "national_id": nationalID, "password": "pw-" + nationalID, "role": role,
	}, "")
	require.NoError(ts.t, err)
}

func (ts *testServer) login(nationalID, password string) string {
	ts.t.Helper()
	code, body := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"national_id": nationalID, "password": password,
	})
	require.Equal(ts.t, http.StatusOK, code, body)
	return body.(map[string]any)["token"].(string)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.(map[string]any)["status"])
}

func TestFirstGovernorThenLogin(t *testing.T) {
	ts := newTestServer(t)

	payload := map[string]string{"full_name": "G", "national_id": "1", "email": "g@x.com", "password": "secret"}
	code, body := ts.do(http.MethodPost, "/api/functions/createFirstGovernor", "", payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body.(map[string]any)["success"])
	assert.NotContains(t, body.(map[string]any), "token")

	code, body = ts.do(http.MethodPost, "/api/functions/createFirstGovernor", "", payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, service.MsgAlreadyRegistered, body.(map[string]any)["error"])

	code, _ = ts.do(http.MethodPost, "/api/functions/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"national_id": "1", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	token := ts.login("1", "secret")

	code, body = ts.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	me := body.(map[string]any)
	assert.Equal(t, "G", me["full_name"])
	assert.NotContains(t, me, "password_hash")

	code, body = ts.do(http.MethodGet, "/api/auth/status", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body.(map[string]any)["authenticated"])

	code, body = ts.do(http.MethodPost, "/api/auth/logout", token, map[string]string{"redirect_url": "/login"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/login", body.(map[string]any)["redirect_url"])

	code, _ = ts.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, body = ts.do(http.MethodGet, "/api/auth/status", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body.(map[string]any)["authenticated"])
}

func TestEntityCRUD(t *testing.T) {
	ts := newTestServer(t)
	ts.member(models.RoleCoordinator, "10")
	token := ts.login("10", "pw-10")

	code, _ := ts.do(http.MethodGet, "/api/entities/Task", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	for _, task := range []map[string]any{
		{"title": "b", "due_date": "2025-03-01", "status": "pending"},
		{"title": "a", "due_date": "2025-01-01", "status": "pending"},
		{"title": "c", "due_date": "2025-02-01", "status": "completed"},
	} {
		code, body := ts.do(http.MethodPost, "/api/entities/Task", token, task)
		require.Equal(t, http.StatusCreated, code, body)
		created := body.(map[string]any)
		assert.NotEmpty(t, created["id"])
		assert.NotEmpty(t, created["created_date"])
	}

	code, body := ts.do(http.MethodGet, "/api/entities/Task?order=-due_date&limit=2", token, nil)
	require.Equal(t, http.StatusOK, code)
	list := body.([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].(map[string]any)["title"])
	assert.Equal(t, "c", list[1].(map[string]any)["title"])

	code, body = ts.do(http.MethodGet, "/api/entities/Task?status=pending&order=title", token, nil)
	require.Equal(t, http.StatusOK, code)
	list = body.([]any)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, "a", first["title"])
	id := first["id"].(string)

	code, body = ts.do(http.MethodPatch, "/api/entities/Task/"+id, token, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "in_progress", body.(map[string]any)["status"])
	assert.Equal(t, id, body.(map[string]any)["id"])

	code, _ = ts.do(http.MethodPatch, "/api/entities/Task/"+id, token, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodDelete, "/api/entities/Task/"+id, token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(http.MethodGet, "/api/entities/Task/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(http.MethodDelete, "/api/entities/Task/"+id, token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestEntityErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.member(models.RoleGovernor, "1")
	token := ts.login("1", "pw-1")

	code, _ := ts.do(http.MethodGet, "/api/entities/Nope", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(http.MethodGet, "/api/entities/VerificationCode", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(http.MethodPost, "/api/entities/Task", token, map[string]any{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(http.MethodGet, "/api/entities/Task?limit=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodPost, "/api/entities/Task", token, map[string]any{"id": "t1", "title": "x"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = ts.do(http.MethodPost, "/api/entities/Task", token, map[string]any{"id": "t1", "title": "y"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestPermissions(t *testing.T) {
	ts := newTestServer(t)
	ts.member(models.RoleVolunteer, "20")
	ts.member(models.RoleMember, "21")
	volunteer := ts.login("20", "pw-20")
	member := ts.login("21", "pw-21")

	code, _ := ts.do(http.MethodGet, "/api/entities/Task", volunteer, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(http.MethodPost, "/api/entities/Task", volunteer, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(http.MethodPost, "/api/entities/TeamMember", member, map[string]any{
		"full_name": "x", "national_id": "99", "role": "governor",
	})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodPost, "/api/entities/Evidence", member, map[string]any{"standard_id": "s", "status": "approved"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodPost, "/api/entities/Evidence", member, map[string]any{"standard_id": "s", "title": "photo"})
	assert.Equal(t, http.StatusCreated, code)

	code, _ = ts.do(http.MethodPost, "/api/seed", member, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodGet, "/api/backups", member, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodGet, "/api/reports/summary", member, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCoordinatorCannotGrantHigherRoles(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.member(models.RoleGovernor, "1")
	ts.member(models.RoleCoordinator, "10")
	ts.member(models.RoleCoordinator, "11")
	coordinator := ts.login("10", "pw-10")

	idOf := func(nationalID string) string {
		recs, err := ts.store.Filter(ctx, models.EntityTeamMember, store.Record{"national_id": nationalID}, "", 1)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		return recs[0]["id"].(string)
	}
	self, peer, governor := idOf("10"), idOf("11"), idOf("1")

	code, _ := ts.do(http.MethodPost, "/api/entities/TeamMember", coordinator, map[string]any{
		"full_name": "x", "national_id": "98", "password": "p", "role": models.RoleGovernor,
	})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodPatch, "/api/entities/TeamMember/"+self, coordinator, map[string]any{"role": models.RoleGovernor})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodPatch, "/api/entities/TeamMember/"+governor, coordinator, map[string]any{"role": models.RoleVolunteer})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodPatch, "/api/entities/TeamMember/"+peer, coordinator, map[string]any{"phone": "0550000000"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodDelete, "/api/entities/TeamMember/"+governor, coordinator, nil)
	assert.Equal(t, http.StatusForbidden, code)

	got, err := ts.store.Get(ctx, models.EntityTeamMember, self)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoordinator, got["role"])

	code, body := ts.do(http.MethodPost, "/api/entities/TeamMember", coordinator, map[string]any{
		"full_name": "Vol", "national_id": "97", "password": "p", "role": models.RoleVolunteer,
	})
	require.Equal(t, http.StatusCreated, code, body)
	vol := body.(map[string]any)["id"].(string)
	code, _ = ts.do(http.MethodPatch, "/api/entities/TeamMember/"+vol, coordinator, map[string]any{"role": models.RoleMember})
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(http.MethodPatch, "/api/entities/TeamMember/"+self, coordinator, map[string]any{"phone": "0551111111"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(http.MethodDelete, "/api/entities/TeamMember/"+vol, coordinator, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestSeedAndBackups(t *testing.T) {
	ts := newTestServer(t)
	ts.member(models.RoleGovernor, "1")
	token := ts.login("1", "pw-1")

	code, body := ts.do(http.MethodPost, "/api/seed", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	stats := body.(map[string]any)
	assert.Equal(t, false, stats["governor_created"])
	assert.Equal(t, float64(80), stats["standards_created"])

	code, _ = ts.do(http.MethodPost, "/api/seed?clear=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(http.MethodPost, "/api/backups", token, map[string]string{"reason": "before-clear"})
	require.Equal(t, http.StatusCreated, code, body)
	name := body.(map[string]any)["name"].(string)

	code, body = ts.do(http.MethodPost, "/api/seed?clear=all", token, nil)
	require.Equal(t, http.StatusOK, code, body)

	code, body = ts.do(http.MethodGet, "/api/backups", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body.(map[string]any)["backups"], 1)

	code, _ = ts.do(http.MethodPost, "/api/backups/restore", token, map[string]string{"name": "missing.json"})
	assert.Equal(t, http.StatusNotFound, code)
	code, body = ts.do(http.MethodPost, "/api/backups/restore", token, map[string]string{"name": name})
	require.Equal(t, http.StatusOK, code, body)
	code, _ = ts.do(http.MethodPost, "/api/backups/restore-latest", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = ts.do(http.MethodGet, "/api/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(80), body.(map[string]any)["standards"])
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not found", body.(map[string]any)["error"])
}
