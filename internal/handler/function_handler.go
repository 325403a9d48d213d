package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
)

type FunctionHandler struct {
	funcs  *service.Functions
	logger *zap.Logger
}

func NewFunctionHandler(funcs *service.Functions, logger *zap.Logger) *FunctionHandler {
	return &FunctionHandler{funcs: funcs, logger: logger}
}

// Invoke always answers 200 with a Result once the function ran; business
// failures travel inside the Result.
func (h *FunctionHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload := map[string]any{}
	if err := readJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.funcs.Invoke(r.Context(), name, payload)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("function failed", zap.String("function", name), zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
