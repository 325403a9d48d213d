package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/backup"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/seed"
)

// AdminHandler serves seeding and snapshot maintenance.
type AdminHandler struct {
	seeder  *seed.Seeder
	backups *backup.Manager
	logger  *zap.Logger
}

func NewAdminHandler(seeder *seed.Seeder, backups *backup.Manager, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{seeder: seeder, backups: backups, logger: logger}
}

// Seed runs the idempotent seeders. ?clear=1 rebuilds axes and standards,
// ?clear=all wipes everything but team members first.
func (h *AdminHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var (
		stats seed.Stats
		err   error
	)
	switch mode := r.URL.Query().Get("clear"); mode {
	case "":
		stats, err = h.seeder.Run(r.Context())
	case "1", "true":
		stats, err = h.seeder.ClearAxesAndStandardsAndReseed(r.Context())
	case "all":
		stats, err = h.seeder.ClearLocalDataAndReseed(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "clear must be 1 or all")
		return
	}
	if err != nil {
		h.logger.Error("seeding failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	files, err := h.backups.List()
	if err != nil {
		h.logger.Error("list backups failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": files})
}

func (h *AdminHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	info, err := h.backups.Create(r.Context(), req.Reason)
	if err != nil {
		h.logger.Error("backup failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// Restore restores a named snapshot from the backup directory.
func (h *AdminHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	path := filepath.Join(h.backups.Dir(), filepath.Base(req.Name))
	if err := h.backups.Restore(r.Context(), path); err != nil {
		h.restoreFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restored": path})
}

func (h *AdminHandler) RestoreLatest(w http.ResponseWriter, r *http.Request) {
	path, err := h.backups.RestoreLatest(r.Context())
	if err != nil {
		h.restoreFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"restored": path})
}

func (h *AdminHandler) restoreFailed(w http.ResponseWriter, err error) {
	h.logger.Error("restore failed", zap.Error(err))
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	writeServiceError(w, err)
}
