package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	oee "oee-cloud/internal/oee/domain"
	"oee-cloud/internal/observability/metrics"
)

// StateEventPayload is the wire shape accepted by HTTP and Kafka ingest.
type StateEventPayload struct {
	EntityType string            `json:"entity_type"`
	EntityRef  string            `json:"entity_ref"`
	TS         int64             `json:"ts"`
	Status     *int              `json:"status"`
	Operators  []string          `json:"operators"`
	Items      []string          `json:"items"`
	Events     []StateEventInput `json:"events"`
}

// StateEventInput is one event inside a batched payload.
type StateEventInput struct {
	EntityRef string   `json:"entity_ref"`
	TS        int64    `json:"ts"`
	Status    int      `json:"status"`
	Operators []string `json:"operators"`
	Items     []string `json:"items"`
}

// ToEvents validates the payload. A payload without events is read as a
// single event carried on the top-level fields.
func (p StateEventPayload) ToEvents() (oee.EntityType, []oee.StateEvent, error) {
	entityType := oee.EntityMachine
	if p.EntityType != "" {
		parsed, err := oee.ParseEntityType(p.EntityType)
		if err != nil {
			return "", nil, err
		}
		entityType = parsed
	}
	if entityType.SourceType() != entityType {
		return "", nil, ErrNotSourceEntity
	}

	inputs := p.Events
	if len(inputs) == 0 && p.TS != 0 && p.Status != nil {
		inputs = []StateEventInput{{
			EntityRef: p.EntityRef,
			TS:        p.TS,
			Status:    *p.Status,
			Operators: p.Operators,
			Items:     p.Items,
		}}
	}
	if len(inputs) == 0 {
		return "", nil, ErrEmptyPayload
	}

	events := make([]oee.StateEvent, 0, len(inputs))
	for i, input := range inputs {
		ref := input.EntityRef
		if ref == "" {
			ref = p.EntityRef
		}
		ts, err := parseTimestamp(input.TS)
		if err != nil {
			return "", nil, fmt.Errorf("event %d: %w", i, err)
		}
		evt := oee.StateEvent{
			EntityRef:       oee.EntityRef(ref),
			Timestamp:       ts,
			StatusCode:      oee.StatusCode(input.Status),
			ActiveOperators: input.Operators,
			ActiveItems:     input.Items,
		}
		if err := evt.Validate(); err != nil {
			return "", nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, evt)
	}
	return entityType, events, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, oee.ErrZeroTime
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}

// IngestService appends state events to the store.
type IngestService struct {
	writer StateEventWriter
	logger *log.Logger
}

// NewIngestService constructs an ingest service.
func NewIngestService(writer StateEventWriter, logger *log.Logger) (*IngestService, error) {
	if writer == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestService{writer: writer, logger: logger}, nil
}

// Ingest validates and writes a payload. Re-sent events are idempotent.
func (s *IngestService) Ingest(ctx context.Context, source string, payload StateEventPayload) (int, error) {
	entityType, events, err := payload.ToEvents()
	if err != nil {
		metrics.IncIngestError("invalid_payload")
		return 0, err
	}
	inserted, err := s.writer.InsertStateEvents(ctx, entityType, events)
	if err != nil {
		metrics.IncIngestError("insert")
		s.logger.Printf("oee ingest: insert error source=%s type=%s events=%d err=%v", source, entityType, len(events), err)
		return 0, err
	}
	metrics.AddIngestEvents(source, inserted)
	return inserted, nil
}

// IsInputError tells if an ingest error is caused by the payload.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyPayload) ||
		errors.Is(err, ErrNotSourceEntity) ||
		errors.Is(err, oee.ErrInvalidEntityType) ||
		errors.Is(err, oee.ErrEmptyEntityRef) ||
		errors.Is(err, oee.ErrZeroTime)
}
