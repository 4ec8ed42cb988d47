package oeehttp

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"oee-cloud/internal/audit"
	oeeapp "oee-cloud/internal/oee/application"
	oee "oee-cloud/internal/oee/domain"
	"oee-cloud/internal/observability/metrics"
)

// MetricsComputer is the engine entry point used by the handler.
type MetricsComputer interface {
	ComputeMetrics(ctx context.Context, q oeeapp.MetricsQuery) (*oeeapp.MetricsResult, error)
}

// MetricsHandler serves OEE queries and report exports.
type MetricsHandler struct {
	service     MetricsComputer
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewMetricsHandler constructs a handler.
func NewMetricsHandler(service MetricsComputer, auditLogger audit.Logger, logger *log.Logger) (*MetricsHandler, error) {
	if service == nil {
		return nil, errors.New("oee handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MetricsHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/oee and /api/v1/oee/export.{xlsx,pdf}.
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/oee":
		h.handleQuery(w, r)
	case "/api/v1/oee/export.xlsx":
		h.handleExport(w, r, "xlsx")
	case "/api/v1/oee/export.pdf":
		h.handleExport(w, r, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *MetricsHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	query, err := parseMetricsQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := applyMachineScope(r, &query); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	res, err := h.service.ComputeMetrics(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(newResultView(res))
}

func (h *MetricsHandler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	query, err := parseMetricsQuery(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := applyMachineScope(r, &query); err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	res, err := h.service.ComputeMetrics(r.Context(), query)
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildReportPDF(res)
		contentType = "application/pdf"
	default:
		data, err = BuildReportXLSX(res)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("oee export: %s error query=%s err=%v", format, res.QueryID, err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"oee-"+res.QueryID+"."+format+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, res, map[string]any{
		"format": format,
		"start":  formatTime(res.Window.Start),
		"end":    formatTime(res.Window.End),
	})
}

func (h *MetricsHandler) respondServiceError(w http.ResponseWriter, err error) {
	if oeeapp.IsQueryInputError(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Printf("oee handler: compute error: %v", err)
	http.Error(w, "compute metrics error", http.StatusInternalServerError)
}

func (h *MetricsHandler) logAudit(r *http.Request, res *oeeapp.MetricsResult, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.NewEntry(r, audit.ActionReportExport, "oee_report", meta)
	entry.ResourceID = res.QueryID
	entry.EntityType = string(res.EntityType)
	entry.EntityRef = r.URL.Query().Get("entity_ref")
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		h.logger.Printf("oee handler: audit error query=%s err=%v", res.QueryID, err)
	}
}

func parseMetricsQuery(r *http.Request) (oeeapp.MetricsQuery, error) {
	values := r.URL.Query()
	entityType, err := oee.ParseEntityType(values.Get("entity_type"))
	if err != nil {
		return oeeapp.MetricsQuery{}, errors.New("entity_type must be one of machine, operator-machine, item, machine-item, operator-item")
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return oeeapp.MetricsQuery{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return oeeapp.MetricsQuery{}, err
	}
	if !to.After(from) {
		return oeeapp.MetricsQuery{}, errors.New("to must be after from")
	}

	query := oeeapp.MetricsQuery{
		EntityType: entityType,
		EntityRef:  oee.EntityRef(strings.TrimSpace(values.Get("entity_ref"))),
		Start:      from,
		End:        to,
	}
	if raw := values.Get("filter"); raw != "" {
		for _, ref := range strings.Split(raw, ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				query.Filter = append(query.Filter, oee.EntityRef(ref))
			}
		}
	}
	if raw := values.Get("force_live"); raw != "" {
		forceLive, err := strconv.ParseBool(raw)
		if err != nil {
			return oeeapp.MetricsQuery{}, errors.New("force_live must be a boolean")
		}
		query.ForceLive = forceLive
	}
	return query, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
