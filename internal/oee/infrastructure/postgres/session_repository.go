package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	oee "oee-cloud/internal/oee/domain"
)

const (
	defaultMachineSessionTable  = "machine_sessions"
	defaultOperatorSessionTable = "operator_sessions"
	defaultFaultSessionTable    = "fault_sessions"
)

// SessionRepository reads machine, operator and fault sessions.
type SessionRepository struct {
	db            *sql.DB
	machineTable  string
	operatorTable string
	faultTable    string
}

// SessionOption configures the session repository.
type SessionOption func(*SessionRepository)

// WithSessionTables overrides the machine and operator session tables.
func WithSessionTables(machineTable, operatorTable string) SessionOption {
	return func(repo *SessionRepository) {
		if machineTable != "" {
			repo.machineTable = machineTable
		}
		if operatorTable != "" {
			repo.operatorTable = operatorTable
		}
	}
}

// WithFaultTable overrides the fault session table.
func WithFaultTable(table string) SessionOption {
	return func(repo *SessionRepository) {
		if table != "" {
			repo.faultTable = table
		}
	}
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *sql.DB, opts ...SessionOption) *SessionRepository {
	repo := &SessionRepository{
		db:            db,
		machineTable:  defaultMachineSessionTable,
		operatorTable: defaultOperatorSessionTable,
		faultTable:    defaultFaultSessionTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

func (r *SessionRepository) sessionTable(entityType oee.EntityType) (string, error) {
	switch entityType {
	case oee.EntityMachine:
		return r.machineTable, nil
	case oee.EntityOperatorMachine:
		return r.operatorTable, nil
	default:
		return "", oee.ErrInvalidEntityType
	}
}

// ListSessions returns sessions overlapping tr, open sessions included.
func (r *SessionRepository) ListSessions(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, tr oee.TimeRange) ([]oee.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	table, err := r.sessionTable(entityType)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT
	entity_ref,
	start_at,
	end_at,
	runtime_sec,
	worked_time_sec,
	time_credit_sec,
	valid_count,
	misfeed_count,
	count_timestamps,
	misfeed_timestamps,
	items
FROM %s
WHERE entity_ref = $1
	AND start_at < $3
	AND (end_at IS NULL OR end_at > $2)
ORDER BY start_at ASC`, table)

	rows, err := r.db.QueryContext(ctx, query, string(ref), tr.Start.UTC(), tr.End.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := pgtype.NewMap()
	var out []oee.Session
	for rows.Next() {
		session, err := scanSession(m, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFaultSessions returns fault sessions overlapping tr.
func (r *SessionRepository) ListFaultSessions(ctx context.Context, entityType oee.EntityType, ref oee.EntityRef, tr oee.TimeRange) ([]oee.FaultSession, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT entity_ref, start_at, end_at, fault_time_sec, fault_label
FROM %s
WHERE entity_type = $1
	AND entity_ref = $2
	AND start_at < $4
	AND (end_at IS NULL OR end_at > $3)
ORDER BY start_at ASC`, r.faultTable)

	rows, err := r.db.QueryContext(ctx, query, string(entityType), string(ref), tr.Start.UTC(), tr.End.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oee.FaultSession
	for rows.Next() {
		var (
			entityRef string
			start     time.Time
			end       sql.NullTime
			fault     oee.FaultSession
		)
		if err := rows.Scan(&entityRef, &start, &end, &fault.FaultTimeSec, &fault.FaultLabel); err != nil {
			return nil, err
		}
		fault.EntityRef = oee.EntityRef(entityRef)
		fault.Start = start.UTC()
		if end.Valid {
			fault.End = end.Time.UTC()
		}
		out = append(out, fault)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSession(m *pgtype.Map, scanner interface{ Scan(dest ...any) error }) (oee.Session, error) {
	var (
		ref               string
		start             time.Time
		end               sql.NullTime
		session           oee.Session
		countTimestamps   []time.Time
		misfeedTimestamps []time.Time
		itemsRaw          []byte
	)
	if err := scanner.Scan(
		&ref,
		&start,
		&end,
		&session.RuntimeSec,
		&session.WorkedTimeSec,
		&session.TimeCreditSec,
		&session.ValidCount,
		&session.MisfeedCount,
		m.SQLScanner(&countTimestamps),
		m.SQLScanner(&misfeedTimestamps),
		&itemsRaw,
	); err != nil {
		return oee.Session{}, err
	}

	session.EntityRef = oee.EntityRef(ref)
	session.Start = start.UTC()
	if end.Valid {
		session.End = end.Time.UTC()
	}
	session.CountTimestamps = countTimestamps
	session.MisfeedTimestamps = misfeedTimestamps
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &session.Items); err != nil {
			return oee.Session{}, fmt.Errorf("session repo: decode items: %w", err)
		}
	}
	return session, nil
}
