package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/auth"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
)

type AuthHandler struct {
	svc    *service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID string `json:"national_id"`
		Password   string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.NationalID) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "national_id and password are required")
		return
	}
	result, err := h.svc.Login(r.Context(), strings.TrimSpace(req.NationalID), req.Password)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("login failed", zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}
	result, err := h.svc.VerifyLogin(r.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"authenticated": h.svc.IsAuthenticated(r.Context(), auth.TokenFromRequest(r)),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	redirect := h.svc.Logout(r.Context(), auth.TokenFromRequest(r), req.RedirectURL)
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": redirect})
}
