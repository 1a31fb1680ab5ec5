package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/chrome-keepalive/internal/session"
	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

// Session is the running keepalive session the API controls
type Session interface {
	Status() models.Session
	SaveNow(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	session Session
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Session, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session: s,
		logger:  logger,
	}
}

// GetSession handles GET /v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

// SaveSession handles POST /v1/session/save
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	err := h.session.SaveNow(r.Context())
	switch {
	case errors.Is(err, session.ErrNotRunning):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Warn("Requested save failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":   err.Error(),
			"session": h.session.Status(),
		})
		return
	}

	writeJSON(w, http.StatusOK, h.session.Status())
}

// GetDebugURL handles GET /v1/session/debug
func (h *Handler) GetDebugURL(w http.ResponseWriter, r *http.Request) {
	s := h.session.Status()
	debugURL := fmt.Sprintf("ws://%s/v1/session/ws", r.Host)

	writeJSON(w, http.StatusOK, map[string]string{
		"debuggerUrl": debugURL,
		"sessionId":   s.ID,
		"status":      string(s.Status),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
