/*
Package auth provides caller identity and the admin capability guard.

PURPOSE:
  Catalog mutations are restricted to callers holding the admin capability.
  Today that capability is a single boolean claim; the Guard interface keeps
  the check behind a seam so a role/policy engine can be substituted later
  without touching call sites.

KEY CONCEPTS:
  - Caller: The authenticated identity attached to a request
  - Guard: Decides whether a caller may mutate the catalog
  - TokenVerifier (jwt.go): Turns bearer tokens into Callers

SEE ALSO:
  - jwt.go: HS256 token signing/verification
  - middleware.go: HTTP middleware that populates the request context
*/
package auth

import "errors"

// ErrPermissionDenied is returned when a caller lacks the capability an
// operation requires.
var ErrPermissionDenied = errors.New("permission denied")

// Caller is the authenticated identity behind a request. A zero Caller is
// anonymous: allowed to query the catalog, but not to mutate or purchase.
type Caller struct {
	UserID string
	Admin  bool
}

// Anonymous reports whether the caller carries no identity.
func (c Caller) Anonymous() bool { return c.UserID == "" }

// Guard gates mutating catalog operations.
type Guard interface {
	// RequireAdmin returns ErrPermissionDenied unless the caller holds the
	// admin capability.
	RequireAdmin(c Caller) error
}

// AdminGuard is the current binary capability check. No granular roles yet;
// swap the Guard implementation when a role engine lands.
type AdminGuard struct{}

func NewAdminGuard() AdminGuard { return AdminGuard{} }

func (AdminGuard) RequireAdmin(c Caller) error {
	if !c.Admin {
		return ErrPermissionDenied
	}
	return nil
}
