package api

import (
	"net/http"

	"github.com/shehryarbajwa/chrome-keepalive/internal/records"
	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

// RecordHandler serves the persisted record set
type RecordHandler struct {
	repo *records.Repository
}

// NewRecordHandler creates a record HTTP handler
func NewRecordHandler(repo *records.Repository) *RecordHandler {
	return &RecordHandler{repo: repo}
}

// ListCookies handles GET /v1/records/cookies
func (h *RecordHandler) ListCookies(w http.ResponseWriter, r *http.Request) {
	cookies, err := h.repo.ListCookies(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if cookies == nil {
		cookies = []models.Cookie{}
	}
	writeJSON(w, http.StatusOK, cookies)
}

// ListStorage handles GET /v1/records/storage
func (h *RecordHandler) ListStorage(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.StorageEntries(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
