// Package auth holds the role-scoped session and the permission matrix every
// mutating operation consults.
package auth

import (
	"slices"

	"customerIntake/internal/apperr"
	"customerIntake/models"
)

// Session is what a successful login hands to the caller. The UI may use it to
// pick menus, but services re-check it against the store on every call.
type Session struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Branches []string    `json:"assigned_branches"`
}

// NewSession builds a session from a stored account.
func NewSession(acc *models.Account) *Session {
	if acc == nil {
		return nil
	}
	return &Session{
		Username: acc.Username,
		Role:     acc.Role,
		Branches: slices.Clone(acc.AssignedBranches),
	}
}

// Resolve looks the session's user up in snap and returns the stored account.
// The stored role and branches win over whatever the session claims, so a
// stale or forged session cannot act beyond the account's current rights.
func Resolve(snap *models.Snapshot, s *Session) (*models.Account, error) {
	if s == nil || s.Username == "" {
		return nil, apperr.New(apperr.PermissionDenied, "no session")
	}
	if snap == nil {
		return nil, apperr.New(apperr.PermissionDenied, "account %q no longer exists", s.Username)
	}
	acc, ok := snap.Users[s.Username]
	if !ok || acc == nil {
		return nil, apperr.New(apperr.PermissionDenied, "account %q no longer exists", s.Username)
	}
	return acc, nil
}
