package postgres

import (
	"database/sql"
	"time"
)

// Store bundles the repositories behind the engine's read ports and the
// ingest writer.
type Store struct {
	*EventRepository
	*SessionRepository
	*RollupRepository
	*EntityRepository
}

// NewStore wires every repository on one database handle.
func NewStore(db *sql.DB, loc *time.Location) *Store {
	sessions := NewSessionRepository(db)
	return &Store{
		EventRepository:   NewEventRepository(db),
		SessionRepository: sessions,
		RollupRepository:  NewRollupRepository(db, WithLocation(loc)),
		EntityRepository:  NewEntityRepository(db, sessions),
	}
}
