package auth

import (
	"net/http"
	"strings"
)

// Rule maps a path to the role it requires. Prefix rules match any path
// starting with Path.
type Rule struct {
	Path   string
	Prefix bool
	// Methods limits the rule; empty matches every method.
	Methods []string
	Role    Role
}

func (r Rule) matches(req *http.Request) bool {
	if r.Prefix {
		if !strings.HasPrefix(req.URL.Path, r.Path) {
			return false
		}
	} else if req.URL.Path != r.Path {
		return false
	}
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if m == req.Method {
			return true
		}
	}
	return false
}

// Policy resolves the role a request needs. Rules are checked in order.
type Policy struct {
	Exempt       map[string]struct{}
	ExemptPrefix []string
	Rules        []Rule
}

// DefaultRules covers the OEE API.
func DefaultRules() []Rule {
	readOnly := []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	return []Rule{
		{Path: "/api/v1/oee/state-events", Role: RoleAdmin},
		{Path: "/api/v1/oee/audit", Role: RoleAdmin},
		{Path: "/api/v1/oee/export.", Prefix: true, Role: RoleSupervisor},
		{Path: "/api/v1/oee", Role: RoleViewer},
		{Path: "/api/", Prefix: true, Methods: readOnly, Role: RoleViewer},
		{Path: "/api/", Prefix: true, Role: RoleSupervisor},
	}
}

// NewDefaultPolicy builds the OEE policy with the given exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{Exempt: set, ExemptPrefix: exemptPrefixes, Rules: DefaultRules()}
}

// IsExempt tells if the request skips token checks.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.Exempt[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefix {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole returns the first matching rule's role.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range p.Rules {
		if rule.matches(r) {
			return rule.Role, true
		}
	}
	return "", false
}
