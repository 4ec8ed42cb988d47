package postgres

import (
	"context"
	"database/sql"
	"errors"

	oee "oee-cloud/internal/oee/domain"
)

// EntityRepository lists active entities for fleet-wide queries.
type EntityRepository struct {
	db            *sql.DB
	machineTable  string
	operatorTable string
	sessions      *SessionRepository
}

// NewEntityRepository creates an entity repository. Item entities are derived
// from the session tables of sessions.
func NewEntityRepository(db *sql.DB, sessions *SessionRepository) *EntityRepository {
	if sessions == nil {
		sessions = NewSessionRepository(db)
	}
	return &EntityRepository{
		db:            db,
		machineTable:  "machines",
		operatorTable: "operators",
		sessions:      sessions,
	}
}

// ListActiveEntities returns the refs of active entities of entityType.
func (r *EntityRepository) ListActiveEntities(ctx context.Context, entityType oee.EntityType) ([]oee.EntityRef, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("entity repo: nil db")
	}

	var query string
	switch entityType {
	case oee.EntityMachine:
		query = "SELECT serial FROM " + r.machineTable + " WHERE active ORDER BY serial"
	case oee.EntityOperatorMachine:
		query = "SELECT operator_id FROM " + r.operatorTable + " WHERE active ORDER BY operator_id"
	case oee.EntityItem, oee.EntityMachineItem, oee.EntityOperatorItem:
		table, err := r.sessions.sessionTable(entityType.SourceType())
		if err != nil {
			return nil, err
		}
		ref := "item->>'item_id'"
		if entityType != oee.EntityItem {
			ref = "s.entity_ref || '|' || (item->>'item_id')"
		}
		query = "SELECT DISTINCT " + ref + " AS ref FROM " + table +
			" s, jsonb_array_elements(s.items) item WHERE item->>'item_id' <> '' ORDER BY ref"
	default:
		return nil, oee.ErrInvalidEntityType
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []oee.EntityRef
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		out = append(out, oee.EntityRef(ref))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
