package models

import (
	"slices"
	"time"
)

// Account is a stored user account. It maps to one entry of the `users`
// section of the persisted document.
type Account struct {
	Username         string    `json:"username"`
	PasswordHash     string    `json:"password"`
	Role             Role      `json:"role"`
	AssignedBranches []string  `json:"assigned_branches"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasBranch reports whether branch is in the account's assigned list.
func (a *Account) HasBranch(branch string) bool {
	return a != nil && slices.Contains(a.AssignedBranches, branch)
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.AssignedBranches = slices.Clone(a.AssignedBranches)
	if c.AssignedBranches == nil {
		c.AssignedBranches = []string{}
	}
	return &c
}

// Redacted returns a copy safe to hand to callers outside the registry.
func (a *Account) Redacted() *Account {
	c := a.Clone()
	if c != nil {
		c.PasswordHash = ""
	}
	return c
}
