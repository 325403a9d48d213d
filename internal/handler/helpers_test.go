package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/auth"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/backup"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("create: %w", service.ErrValidation), http.StatusBadRequest},
		{backup.ErrInvalidSnapshot, http.StatusBadRequest},
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("Task x: %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrUnknownEntity, http.StatusNotFound},
		{service.ErrUnknownFunction, http.StatusNotFound},
		{service.ErrConflict, http.StatusConflict},
		{backup.ErrBusy, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFor(c.err), c.err.Error())
	}
}

func TestWriteServiceErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestReadJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	v := map[string]any{"kept": true}
	require.NoError(t, readJSON(req, &v))
	assert.Equal(t, true, v["kept"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.Error(t, readJSON(req, &v))
}

func TestAllowedWrite(t *testing.T) {
	volunteer := &auth.Claims{Role: models.RoleVolunteer}
	head := &auth.Claims{Role: models.RoleCommitteeHead}
	governor := &auth.Claims{Role: models.RoleGovernor}
	coordinator := &auth.Claims{Role: models.RoleCoordinator}

	assert.False(t, allowedWrite(nil, models.EntityTask, nil))
	assert.True(t, allowedWrite(head, models.EntityTask, nil))
	assert.False(t, allowedWrite(head, models.EntityTeamMember, nil))
	assert.True(t, allowedWrite(governor, models.EntityTeamMember, nil))
	assert.True(t, allowedWrite(governor, models.EntityTeamMember, store.Record{"role": models.RoleGovernor}))
	assert.False(t, allowedWrite(coordinator, models.EntityTeamMember, store.Record{"role": models.RoleGovernor}))
	assert.False(t, allowedWrite(coordinator, models.EntityTeamMember, store.Record{"role": models.RoleCoordinator}))
	assert.False(t, allowedWrite(coordinator, models.EntityTeamMember, store.Record{"role": 7}))
	assert.True(t, allowedWrite(coordinator, models.EntityTeamMember, store.Record{"role": models.RoleMember}))
	assert.True(t, allowedWrite(coordinator, models.EntityTeamMember, store.Record{"phone": "055"}))
	assert.False(t, allowedWrite(head, models.EntitySettings, nil))
	assert.True(t, allowedWrite(head, models.EntityEvidence, store.Record{"status": "approved"}))
	assert.False(t, allowedWrite(&auth.Claims{Role: models.RoleMember}, models.EntityKpiEvidence, store.Record{"status": "approved"}))
	assert.True(t, allowedWrite(volunteer, models.EntityEvidence, store.Record{"title": "x"}))
}
