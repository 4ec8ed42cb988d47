package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Repository stores audit entries in Postgres.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	return &Repository{db: db, table: "audit_logs"}, nil
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	entry = prepare(entry)
	_, err := r.db.ExecContext(ctx, `
INSERT INTO `+r.table+` (
	id, plant_id, actor, role, action, resource_type, resource_id, entity_type, entity_ref,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)`, entry.ID, entry.PlantID, entry.Actor, entry.Role, string(entry.Action), entry.ResourceType, entry.ResourceID,
		entry.EntityType, entry.EntityRef, []byte(entry.Metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

// List returns entries matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.EntityRef != "" {
		args = append(args, filter.EntityRef)
		where = append(where, fmt.Sprintf("entity_ref = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	query := `
SELECT id, plant_id, actor, role, action, resource_type, resource_id, entity_type, entity_ref,
	metadata, payload_digest, ip, user_agent, created_at
FROM ` + r.table
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf("\nORDER BY created_at DESC, id\nLIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry    Entry
			action   string
			metadata []byte
		)
		if err := rows.Scan(&entry.ID, &entry.PlantID, &entry.Actor, &entry.Role, &action, &entry.ResourceType,
			&entry.ResourceID, &entry.EntityType, &entry.EntityRef, &metadata, &entry.PayloadDigest,
			&entry.IP, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = Action(action)
		entry.Metadata = metadata
		out = append(out, entry)
	}
	return out, rows.Err()
}
