package auth

import (
	"context"
	"strings"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Subject string
	PlantID string
	Role    Role
	// Machines restricts machine-keyed queries to these serials. Empty means
	// every machine of the plant.
	Machines []string
	// Gateway is set for signed device ingest instead of Subject.
	Gateway string
}

type identityKey struct{}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Actor names the caller for audit entries.
func (id Identity) Actor() string {
	if id.Subject != "" {
		return id.Subject
	}
	if id.Gateway != "" {
		return "gateway:" + id.Gateway
	}
	return ""
}

// MachineScoped tells if the identity is limited to a machine list.
func (id Identity) MachineScoped() bool {
	return len(id.Machines) > 0
}

// AllowsMachine tells if serial is visible to the identity.
func (id Identity) AllowsMachine(serial string) bool {
	if !id.MachineScoped() {
		return true
	}
	serial = strings.TrimSpace(serial)
	for _, m := range id.Machines {
		if m == serial {
			return true
		}
	}
	return false
}
