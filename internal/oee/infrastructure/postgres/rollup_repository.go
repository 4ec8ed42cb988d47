package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	oee "oee-cloud/internal/oee/domain"
)

const defaultRollupTable = "oee_rollups"

// RollupRepository reads daily rollups written by the external rollup job.
// Stored documents of every known generation are normalized on read.
type RollupRepository struct {
	db     *sql.DB
	table  string
	loc    *time.Location
	logger *log.Logger
}

// RollupOption configures the rollup repository.
type RollupOption func(*RollupRepository)

// WithRollupTable overrides the default table name.
func WithRollupTable(table string) RollupOption {
	return func(repo *RollupRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithLocation sets the timezone used to derive days from document timestamps.
func WithLocation(loc *time.Location) RollupOption {
	return func(repo *RollupRepository) {
		if loc != nil {
			repo.loc = loc
		}
	}
}

// WithRollupLogger sets the logger that reports skipped rows.
func WithRollupLogger(logger *log.Logger) RollupOption {
	return func(repo *RollupRepository) {
		if logger != nil {
			repo.logger = logger
		}
	}
}

// NewRollupRepository creates a rollup repository.
func NewRollupRepository(db *sql.DB, opts ...RollupOption) *RollupRepository {
	repo := &RollupRepository{db: db, table: defaultRollupTable, loc: time.UTC, logger: log.Default()}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListRollups returns rollups with from <= day <= to, optionally limited to filter keys.
func (r *RollupRepository) ListRollups(ctx context.Context, entityType oee.EntityType, from, to oee.DayKey, filter []oee.EntityRef) ([]oee.RollupRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rollup repo: nil db")
	}
	if !entityType.IsValid() {
		return nil, oee.ErrInvalidEntityType
	}

	query := fmt.Sprintf(`
SELECT entity_key, source_key, to_char(day, 'YYYY-MM-DD'), document, updated_at
FROM %s
WHERE entity_type = $1
	AND day >= $2::date
	AND day <= $3::date`, r.table)
	args := []any{string(entityType), from.String(), to.String()}
	if len(filter) > 0 {
		keys := make([]string, 0, len(filter))
		for _, ref := range filter {
			keys = append(keys, string(ref))
		}
		query += "\n\tAND entity_key = ANY($4)"
		args = append(args, keys)
	}
	query += "\nORDER BY day ASC, entity_key ASC, source_key ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oee.RollupRecord
	for rows.Next() {
		var (
			entityKey string
			sourceKey string
			day       string
			document  []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&entityKey, &sourceKey, &day, &document, &updatedAt); err != nil {
			return nil, err
		}
		rec, err := decodeRollupRow(entityType, entityKey, sourceKey, day, document, updatedAt, r.loc)
		if err != nil {
			r.logger.Printf("oee rollups: skip row: %v", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRollupRow(entityType oee.EntityType, entityKey, sourceKey, day string, document []byte, updatedAt time.Time, loc *time.Location) (oee.RollupRecord, error) {
	rec, err := oee.DecodeRollupDocument(document, loc)
	if err != nil {
		return oee.RollupRecord{}, fmt.Errorf("%s/%s/%s: %w", entityKey, sourceKey, day, err)
	}
	// The day column is authoritative; the document date is only a fallback
	// for rows migrated without one.
	if day != "" {
		rec.Date = oee.DayKey(day)
	}
	rec.EntityType = entityType
	rec.EntityKey = entityKey
	rec.SourceKey = sourceKey
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}
