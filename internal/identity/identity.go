// Package identity validates access tokens minted by the external identity
// provider and answers scope questions about them.
//
// The portal never manages sessions itself; it only checks that a bearer
// token is genuine and carries the scopes an action requires.
package identity

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of token claims the portal cares about.
type Claims struct {
	UserID string
	// Scopes are "class:action" or "class:action:resource-id" grants, with
	// "*" accepted in the action or resource position.
	Scopes []string
}

// Validator parses and verifies provider-issued access tokens.
type Validator struct {
	signingKey []byte
}

// NewValidator creates a Validator for HMAC-signed provider tokens.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

type tokenClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// ValidateToken verifies the token signature and expiry and extracts claims.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	return &Claims{UserID: claims.Subject, Scopes: claims.Scopes}, nil
}

// HasScope reports whether the token grants an action on a specific
// resource, e.g. HasScope("domain", "edit", domainID).
func (c *Claims) HasScope(class, action, resourceID string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if scopeMatches(s, class, action, resourceID) {
			return true
		}
	}
	return false
}

// HasClassScope reports whether the token grants an action on a whole class
// of resources, e.g. HasClassScope("registration-order", "create").
func (c *Claims) HasClassScope(class, action string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if scopeMatches(s, class, action, "") {
			return true
		}
	}
	return false
}

func scopeMatches(scope, class, action, resourceID string) bool {
	var sClass, sAction, sResource string
	parts := strings.Split(scope, ":")
	switch len(parts) {
	case 2:
		sClass, sAction = parts[0], parts[1]
	case 3:
		sClass, sAction, sResource = parts[0], parts[1], parts[2]
	default:
		return false
	}
	if sClass != class && sClass != "*" {
		return false
	}
	if sAction != action && sAction != "*" {
		return false
	}
	if resourceID == "" {
		// Class-level question: a resource-bound grant does not answer it.
		return sResource == "" || sResource == "*"
	}
	return sResource == resourceID || sResource == "*" || sResource == ""
}
