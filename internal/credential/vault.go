// Package credential hashes and verifies account passwords with bcrypt.
package credential

import (
	"customerIntake/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyInput is returned by Hash for an empty password. The minimum length
// policy is enforced by the account registry, not here.
var ErrEmptyInput = apperr.New(apperr.InvalidInput, "password is empty")

// Vault hashes passwords with a per-call random salt.
type Vault struct {
	cost int
}

// NewVault returns a Vault using the given bcrypt cost. Out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewVault(cost int) *Vault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Vault{cost: cost}
}

// Hash returns the one-way hash of password.
func (v *Vault) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyInput
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes.
		return "", apperr.Wrap(apperr.InvalidInput, err, "hash password")
	}
	return string(h), nil
}

// Verify reports whether password matches hash. Malformed hashes and any
// internal error yield false.
func (v *Vault) Verify(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
