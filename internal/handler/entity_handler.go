package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/auth"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

// reserved query parameters; everything else is an equality filter.
const (
	paramOrder = "order"
	paramLimit = "limit"
)

type EntityHandler struct {
	svc    *service.EntityService
	logger *zap.Logger
}

func NewEntityHandler(svc *service.EntityService, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{svc: svc, logger: logger}
}

func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	q := r.URL.Query()

	limit := 0
	if v := q.Get(paramLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	filter := map[string]any{}
	for key, vals := range q {
		if key == paramOrder || key == paramLimit || len(vals) == 0 {
			continue
		}
		filter[key] = vals[0]
	}

	records, err := h.svc.List(r.Context(), entity, filter, q.Get(paramOrder), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	var data store.Record
	if err := readJSON(r, &data); err != nil || data == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims := auth.GetUser(r.Context())
	if !allowedWrite(claims, entity, data) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	rec, err := h.svc.Create(r.Context(), entity, data, actor(claims))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	var data store.Record
	if err := readJSON(r, &data); err != nil || data == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims := auth.GetUser(r.Context())
	id := chi.URLParam(r, "id")
	if !allowedWrite(claims, entity, data) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if entity == models.EntityTeamMember {
		// Managers may edit their own profile but not their own role.
		self := claims.UserID == id && data["role"] == nil
		if !self && !h.outranksMember(r.Context(), w, claims, id) {
			return
		}
	}
	rec, err := h.svc.Update(r.Context(), entity, id, data)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	claims := auth.GetUser(r.Context())
	id := chi.URLParam(r, "id")
	if !allowedWrite(claims, entity, nil) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if entity == models.EntityTeamMember && !h.outranksMember(r.Context(), w, claims, id) {
		return
	}
	if err := h.svc.Delete(r.Context(), entity, id); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *EntityHandler) fail(w http.ResponseWriter, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error("entity request failed", zap.Error(err))
	}
	writeServiceError(w, err)
}

// outranksMember writes the response and returns false unless the caller may
// manage the member's current role. A missing member is left to the service.
func (h *EntityHandler) outranksMember(ctx context.Context, w http.ResponseWriter, claims *auth.Claims, id string) bool {
	target, err := h.svc.Get(ctx, models.EntityTeamMember, id)
	if errors.Is(err, service.ErrNotFound) {
		return true
	}
	if err != nil {
		h.fail(w, err)
		return false
	}
	role, _ := target["role"].(string)
	if !auth.CanAssignRole(claims.Role, role) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// allowedWrite layers the per-entity permissions on top of entities:write,
// which the router already enforces.
func allowedWrite(claims *auth.Claims, entity string, data store.Record) bool {
	if claims == nil {
		return false
	}
	switch entity {
	case models.EntityTeamMember:
		if !auth.Can(claims.Role, auth.PermMembersManage) {
			return false
		}
		if role, ok := data["role"]; ok {
			name, _ := role.(string)
			return auth.CanAssignRole(claims.Role, name)
		}
		return true
	case models.EntitySettings:
		return auth.Can(claims.Role, auth.PermSettingsManage)
	case models.EntityEvidence, models.EntityKpiEvidence:
		if _, reviewing := data["status"]; reviewing {
			return auth.Can(claims.Role, auth.PermEvidenceReview)
		}
	}
	return true
}

func actor(claims *auth.Claims) string {
	if claims == nil {
		return ""
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.UserID
}
