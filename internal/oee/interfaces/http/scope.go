package oeehttp

import (
	"net/http"

	"oee-cloud/internal/auth"
	oeeapp "oee-cloud/internal/oee/application"
	oee "oee-cloud/internal/oee/domain"
)

// applyMachineScope narrows machine-keyed queries to the machines a scoped
// token may see. Fleet machine queries are rewritten into a filter over the
// scope; machine-item queries must name their references.
func applyMachineScope(r *http.Request, q *oeeapp.MetricsQuery) error {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || !id.MachineScoped() {
		return nil
	}

	refs := q.Filter
	if q.EntityRef != "" {
		refs = []oee.EntityRef{q.EntityRef}
	}
	switch q.EntityType {
	case oee.EntityMachine:
		if len(refs) == 0 {
			for _, serial := range id.Machines {
				q.Filter = append(q.Filter, oee.EntityRef(serial))
			}
			return nil
		}
		for _, ref := range refs {
			if !id.AllowsMachine(ref.String()) {
				return auth.ErrMachineScope
			}
		}
	case oee.EntityMachineItem:
		if len(refs) == 0 {
			return auth.ErrMachineScope
		}
		for _, ref := range refs {
			serial, _, err := ref.SplitItemRef()
			if err != nil || !id.AllowsMachine(serial) {
				return auth.ErrMachineScope
			}
		}
	}
	return nil
}
