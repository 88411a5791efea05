package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnauthenticated is returned when an operation requires a principal
	// and the caller has none.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the principal lacks the role, ownership
	// or grant an operation requires.
	ErrForbidden = errors.New("access denied")
)

// Role is the closed set of user roles. The zero value means no role has
// been assigned yet.
type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

// Roles lists every valid role.
var Roles = []Role{RoleDoctor, RolePatient}

// ParseRole converts s into a Role, rejecting anything outside the enumeration.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDoctor:
		return RoleDoctor, nil
	case RolePatient:
		return RolePatient, nil
	}
	return "", fmt.Errorf("invalid role %q: must be DOCTOR or PATIENT", s)
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

// Principal is the resolved identity attached to an inbound call.
// ProfileID is the Doctor or Patient profile id matching Role, and is
// uuid.Nil while no role has been assigned.
type Principal struct {
	UserID    uuid.UUID `json:"user_id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	Role      Role      `json:"role,omitempty"`
	ProfileID uuid.UUID `json:"profile_id"`
}

// IsDoctor reports whether the principal acts as a doctor.
func (p *Principal) IsDoctor() bool {
	return p != nil && p.Role == RoleDoctor
}

// IsPatient reports whether the principal acts as a patient.
func (p *Principal) IsPatient() bool {
	return p != nil && p.Role == RolePatient
}

// RequireAuth fails with ErrUnauthenticated when p is nil and otherwise
// returns p unchanged.
func RequireAuth(p *Principal) (*Principal, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

// RequireRole applies RequireAuth and then fails with ErrForbidden unless
// the principal holds role.
func RequireRole(p *Principal, role Role) (*Principal, error) {
	p, err := RequireAuth(p)
	if err != nil {
		return nil, err
	}
	if p.Role != role {
		return nil, fmt.Errorf("%w: requires role %s", ErrForbidden, role)
	}
	return p, nil
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored on ctx, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
