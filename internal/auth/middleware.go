package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Middleware authenticates bearer tokens and enforces the role policy.
type Middleware struct {
	secret []byte
	policy Policy
	// plantID, when set, rejects tokens issued for other plants.
	plantID string
}

// NewMiddleware constructs an auth middleware. plantID may be empty.
func NewMiddleware(secret []byte, policy Policy, plantID string) *Middleware {
	return &Middleware{secret: secret, policy: policy, plantID: strings.TrimSpace(plantID)}
}

// Wrap applies authentication and the role policy to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.authenticate(r)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrPlantMismatch) {
				status = http.StatusForbidden
			} else {
				w.Header().Set("WWW-Authenticate", `Bearer realm="oee"`)
			}
			http.Error(w, err.Error(), status)
			return
		}
		if !id.Role.Satisfies(required) {
			http.Error(w, "forbidden: requires "+string(required), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (m *Middleware) authenticate(r *http.Request) (Identity, error) {
	claims, err := ParseJWT(bearerToken(r), m.secret)
	if err != nil {
		return Identity{}, err
	}
	if m.plantID != "" && claims.PlantID != m.plantID {
		return Identity{}, ErrPlantMismatch
	}
	return claims.Identity(), nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
