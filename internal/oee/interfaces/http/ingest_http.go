package oeehttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"oee-cloud/internal/audit"
	oeeapp "oee-cloud/internal/oee/application"
	"oee-cloud/internal/observability/metrics"
)

const maxIngestBody = 4 << 20

// StateEventIngester appends state event payloads.
type StateEventIngester interface {
	Ingest(ctx context.Context, source string, payload oeeapp.StateEventPayload) (int, error)
}

// IngestHandler handles state event ingestion. Signed device traffic and
// admin backfills share it.
type IngestHandler struct {
	service     StateEventIngester
	source      string
	action      audit.Action
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewIngestHandler constructs an ingest handler. source labels metrics and
// audit entries: "backfill" uploads are audited as backfills, everything else
// as gateway ingest. auditLogger may be nil.
func NewIngestHandler(service StateEventIngester, source string, auditLogger audit.Logger, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("oee ingest: nil service")
	}
	if source == "" {
		source = "http"
	}
	if logger == nil {
		logger = log.Default()
	}
	action := audit.ActionStateEventIngest
	if source == "backfill" {
		action = audit.ActionStateEventBackfill
	}
	return &IngestHandler{service: service, source: source, action: action, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP ingests a state event payload.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	result := metrics.IngestResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		result = metrics.IngestResultError
		h.logger.Printf("oee ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload oeeapp.StateEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		result = metrics.IngestResultError
		metrics.IncIngestError("decode")
		h.logger.Printf("oee ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	inserted, err := h.service.Ingest(r.Context(), h.source, payload)
	if err != nil {
		result = metrics.IngestResultError
		if oeeapp.IsInputError(err) {
			http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"inserted": inserted}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)

	if h.auditLogger != nil {
		entry := audit.NewEntry(r, h.action, "state_events", map[string]any{
			"source":   h.source,
			"inserted": inserted,
			"events":   len(payload.Events),
		})
		entry.EntityType = payload.EntityType
		entry.EntityRef = payload.EntityRef
		if err := h.auditLogger.Log(r.Context(), entry); err != nil {
			h.logger.Printf("oee ingest: audit error: %v", err)
		}
	}
}
