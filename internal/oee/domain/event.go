package oee

import (
	"sort"
	"strings"
	"time"
)

// EntityType is the scope a metric or rollup is computed for.
type EntityType string

const (
	EntityMachine         EntityType = "machine"
	EntityOperatorMachine EntityType = "operator-machine"
	EntityItem            EntityType = "item"
	EntityMachineItem     EntityType = "machine-item"
	EntityOperatorItem    EntityType = "operator-item"
)

// IsValid checks if the entity type is one of the supported values.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityMachine, EntityOperatorMachine, EntityItem, EntityMachineItem, EntityOperatorItem:
		return true
	default:
		return false
	}
}

// IsItemScoped tells if the entity is an item or an item within a parent entity.
func (t EntityType) IsItemScoped() bool {
	return t == EntityItem || t == EntityMachineItem || t == EntityOperatorItem
}

// SourceType is the entity type whose state events and sessions back this type.
func (t EntityType) SourceType() EntityType {
	switch t {
	case EntityOperatorMachine, EntityOperatorItem:
		return EntityOperatorMachine
	default:
		return EntityMachine
	}
}

// ParseEntityType validates a raw entity type string.
func ParseEntityType(value string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", ErrInvalidEntityType
	}
	return t, nil
}

// EntityRef identifies a machine serial, an operator id, an item id, or a
// composite "parent|item" reference for machine-item and operator-item scopes.
type EntityRef string

const itemRefSeparator = "|"

// NewItemRef builds a composite reference for an item within a parent entity.
func NewItemRef(parent, item string) EntityRef {
	return EntityRef(parent + itemRefSeparator + item)
}

// SplitItemRef splits a composite reference into parent and item.
func (r EntityRef) SplitItemRef() (parent string, item string, err error) {
	parts := strings.SplitN(string(r), itemRefSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidEntityRef
	}
	return parts[0], parts[1], nil
}

// String returns the raw reference.
func (r EntityRef) String() string { return string(r) }

// StatusCode is the raw equipment status reported with a state event.
type StatusCode int

const (
	StatusOffline StatusCode = -1
	StatusPaused  StatusCode = 0
	StatusRunning StatusCode = 1
)

// Kind classifies the status code into a cycle kind.
// Codes other than run, pause and offline are faults.
func (c StatusCode) Kind() CycleKind {
	switch c {
	case StatusRunning:
		return CycleRunning
	case StatusPaused:
		return CyclePaused
	case StatusOffline:
		return CycleOffline
	default:
		return CycleFault
	}
}

// StateEvent is an immutable equipment status change.
type StateEvent struct {
	EntityRef       EntityRef
	Timestamp       time.Time
	StatusCode      StatusCode
	ActiveOperators []string
	ActiveItems     []string
}

// Validate checks event invariants.
func (e StateEvent) Validate() error {
	if e.EntityRef == "" {
		return ErrEmptyEntityRef
	}
	if e.Timestamp.IsZero() {
		return ErrZeroTime
	}
	return nil
}

// SortEvents returns a chronologically sorted copy of events.
// Events sharing a timestamp keep their input order.
func SortEvents(events []StateEvent) []StateEvent {
	sorted := append([]StateEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
