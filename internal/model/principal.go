package model

import (
	"encoding/base64"
	"encoding/json"
	"slices"
	"strings"
)

// Built-in roles every principal carries implicitly.
const (
	RoleAnonymous     = "anonymous"
	RoleAuthenticated = "authenticated"
)

// ClientPrincipal is the authenticated identity carried in the auth cookie.
type ClientPrincipal struct {
	IdentityProvider string   `json:"identityProvider"`
	UserID           string   `json:"userId"`
	UserDetails      string   `json:"userDetails"`
	UserRoles        []string `json:"userRoles"`
	Claims           []Claim  `json:"claims,omitempty"`
}

// Claim is a single typ/val pair.
type Claim struct {
	Typ string `json:"typ"`
	Val string `json:"val"`
}

// HasRole checks if the principal has a specific role
func (p *ClientPrincipal) HasRole(role string) bool {
	return slices.Contains(p.UserRoles, role)
}

// HasAnyRole checks if the principal has any of the specified roles
func (p *ClientPrincipal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// AddRoles appends roles not already present.
func (p *ClientPrincipal) AddRoles(roles ...string) {
	for _, role := range roles {
		if role != "" && !p.HasRole(role) {
			p.UserRoles = append(p.UserRoles, role)
		}
	}
}

// EnsureBaselineRoles adds "anonymous" and "authenticated" when the principal
// is not yet marked authenticated.
func (p *ClientPrincipal) EnsureBaselineRoles() {
	if !p.HasRole(RoleAuthenticated) {
		p.AddRoles(RoleAnonymous, RoleAuthenticated)
	}
}

// RolesString returns roles as comma-separated string
func (p *ClientPrincipal) RolesString() string {
	return strings.Join(p.UserRoles, ",")
}

// Claim returns the first claim value of the given type.
func (p *ClientPrincipal) Claim(typ string) (string, bool) {
	for _, c := range p.Claims {
		if c.Typ == typ {
			return c.Val, true
		}
	}
	return "", false
}

// WithoutClaims returns a copy stripped of claims, the shape forwarded to APIs.
func (p *ClientPrincipal) WithoutClaims() *ClientPrincipal {
	cp := *p
	cp.UserRoles = slices.Clone(p.UserRoles)
	cp.Claims = nil
	return &cp
}

// HeaderValue encodes the claim-less principal for the X-MS-CLIENT-PRINCIPAL header.
func (p *ClientPrincipal) HeaderValue() (string, error) {
	b, err := json.Marshal(p.WithoutClaims())
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// ParseRoles splits a comma or newline separated role list, dropping blanks.
func ParseRoles(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	roles := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" && !slices.Contains(roles, f) {
			roles = append(roles, f)
		}
	}
	return roles
}

// RolesIntersect reports whether any role in have appears in want.
func RolesIntersect(have, want []string) bool {
	for _, r := range want {
		if slices.Contains(have, r) {
			return true
		}
	}
	return false
}
