package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/prompt-library/internal/service"
)

// OptimizeHandler forwards prompt text to the AI optimizer.
type OptimizeHandler struct {
	optimize *service.OptimizeService
	logger   *slog.Logger
}

func NewOptimizeHandler(optimize *service.OptimizeService, logger *slog.Logger) *OptimizeHandler {
	return &OptimizeHandler{
		optimize: optimize,
		logger:   logger,
	}
}

type optimizeRequest struct {
	Content          string `json:"content"`
	OptimizationType string `json:"optimizationType"`
	Language         string `json:"language"`
}

// HandleOptimize rewrites the submitted text.
//
// HTTP: POST /api/ai/optimize
//
// A provider failure, or a server started without an API key, is 503.
func (h *OptimizeHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req optimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid optimize request body", slog.String("user_id", uid))
		writeError(w, err)
		return
	}

	res, err := h.optimize.Optimize(r.Context(), uid, req.Content, req.OptimizationType, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
