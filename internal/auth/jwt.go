package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the OEE token claims.
type Claims struct {
	PlantID  string   `json:"plant_id"`
	Role     string   `json:"role"`
	Machines []string `json:"machines,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts validated claims.
func (c *Claims) Identity() Identity {
	role, _ := ParseRole(c.Role)
	machines := make([]string, 0, len(c.Machines))
	for _, m := range c.Machines {
		if m = strings.TrimSpace(m); m != "" {
			machines = append(machines, m)
		}
	}
	return Identity{Subject: c.Subject, PlantID: c.PlantID, Role: role, Machines: machines}
}

// ParseJWT validates an HS256 token. Tokens must carry an expiry and a known role.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrUnauthorized
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, ok := ParseRole(claims.Role); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}
