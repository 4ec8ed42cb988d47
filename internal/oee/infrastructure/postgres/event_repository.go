package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	oee "oee-cloud/internal/oee/domain"
)

const defaultEventTable = "state_events"

// EventRepository reads and appends state events.
type EventRepository struct {
	db    *sql.DB
	table string
}

// EventOption configures the event repository.
type EventOption func(*EventRepository)

// WithEventTable overrides the default table name.
func WithEventTable(table string) EventOption {
	return func(repo *EventRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewEventRepository creates an event repository.
func NewEventRepository(db *sql.DB, opts ...EventOption) *EventRepository {
	repo := &EventRepository{db: db, table: defaultEventTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListStateEvents returns events with r.Start <= ts <= r.End, oldest first.
func (r *EventRepository) ListStateEvents(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, tr oee.TimeRange) ([]oee.StateEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT entity_ref, ts, status_code, operators, items
FROM %s
WHERE entity_type = $1
	AND entity_ref = $2
	AND ts >= $3
	AND ts <= $4
ORDER BY ts ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, string(entityType), string(ref), tr.Start.UTC(), tr.End.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := pgtype.NewMap()
	var out []oee.StateEvent
	for rows.Next() {
		evt, err := scanEvent(m, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// NearestEventBefore returns the latest event strictly before t.
func (r *EventRepository) NearestEventBefore(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, t time.Time) (*oee.StateEvent, error) {
	return r.nearest(ctx, entityType, ref, t, "ts < $3 ORDER BY ts DESC")
}

// NearestEventAfter returns the earliest event strictly after t.
func (r *EventRepository) NearestEventAfter(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, t time.Time) (*oee.StateEvent, error) {
	return r.nearest(ctx, entityType, ref, t, "ts > $3 ORDER BY ts ASC")
}

func (r *EventRepository) nearest(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, t time.Time, clause string) (*oee.StateEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT entity_ref, ts, status_code, operators, items
FROM %s
WHERE entity_type = $1
	AND entity_ref = $2
	AND %s
LIMIT 1`, r.table, clause)

	row := r.db.QueryRowContext(ctx, query, string(entityType), string(ref), t.UTC())
	evt, err := scanEvent(pgtype.NewMap(), row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// InsertStateEvents appends events. Events already stored for the same
// entity and timestamp are left untouched.
func (r *EventRepository) InsertStateEvents(ctx context.Context, entityType oee.EntityType, events []oee.StateEvent) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("event repo: nil db")
	}
	if !entityType.IsValid() {
		return 0, oee.ErrInvalidEntityType
	}
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (entity_type, entity_ref, ts, status_code, operators, items)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (entity_type, entity_ref, ts) DO NOTHING`, r.table)

	inserted := 0
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query,
			string(entityType),
			string(evt.EntityRef),
			evt.Timestamp.UTC(),
			int(evt.StatusCode),
			nonNilStrings(evt.ActiveOperators),
			nonNilStrings(evt.ActiveItems),
		)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func scanEvent(m *pgtype.Map, scanner interface{ Scan(dest ...any) error }) (oee.StateEvent, error) {
	var (
		ref       string
		ts        time.Time
		status    int
		operators []string
		items     []string
	)
	if err := scanner.Scan(&ref, &ts, &status, m.SQLScanner(&operators), m.SQLScanner(&items)); err != nil {
		return oee.StateEvent{}, err
	}
	return oee.StateEvent{
		EntityRef:       oee.EntityRef(ref),
		Timestamp:       ts.UTC(),
		StatusCode:      oee.StatusCode(status),
		ActiveOperators: operators,
		ActiveItems:     items,
	}, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
