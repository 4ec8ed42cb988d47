package application

import "errors"

var (
	// ErrNilStore is returned when a service is built without a store.
	ErrNilStore = errors.New("oee application: nil store")
	// ErrInvalidConfig is returned when engine configuration cannot be used.
	ErrInvalidConfig = errors.New("oee application: invalid config")
	// ErrNotSourceEntity is returned when events are written for an entity type that does not own events.
	ErrNotSourceEntity = errors.New("oee application: entity type does not own state events")
	// ErrEmptyPayload is returned when an ingest payload carries no events.
	ErrEmptyPayload = errors.New("oee application: empty payload")
)
