package oeehttp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"oee-cloud/internal/audit"
)

// AuditHandler lists audited exports and backfills.
type AuditHandler struct {
	reader audit.Reader
	logger *log.Logger
}

// NewAuditHandler constructs an audit listing handler.
func NewAuditHandler(reader audit.Reader, logger *log.Logger) (*AuditHandler, error) {
	if reader == nil {
		return nil, errors.New("oee audit: nil reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AuditHandler{reader: reader, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/oee/audit?action=&entity_ref=&since=&limit=.
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	values := r.URL.Query()
	filter := audit.Filter{
		Action:    audit.Action(values.Get("action")),
		EntityRef: values.Get("entity_ref"),
	}
	if raw := values.Get("since"); raw != "" {
		since, err := time.Parse(timeLayout, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.reader.List(r.Context(), filter)
	if err != nil {
		h.logger.Printf("oee audit: list error: %v", err)
		http.Error(w, "list audit error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}
