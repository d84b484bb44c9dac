package models

import (
	"cmp"
	"slices"
)

// Snapshot is the whole persisted state: the single structured document with
// `users`, `customers` and `dashboard` sections.
type Snapshot struct {
	Users     map[string]*Account  `json:"users"`
	Customers map[string]*Customer `json:"customers"`
	Dashboard Dashboard            `json:"dashboard"`
}

// NewSnapshot returns the empty default state.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:     map[string]*Account{},
		Customers: map[string]*Customer{},
		Dashboard: Dashboard{WelcomeText: DefaultWelcomeText},
	}
}

// Normalize fills nil sections so callers never need nil checks.
func (s *Snapshot) Normalize() {
	if s.Users == nil {
		s.Users = map[string]*Account{}
	}
	if s.Customers == nil {
		s.Customers = map[string]*Customer{}
	}
}

// Clone returns a deep copy that can be mutated without affecting s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return NewSnapshot()
	}
	out := &Snapshot{
		Users:     make(map[string]*Account, len(s.Users)),
		Customers: make(map[string]*Customer, len(s.Customers)),
		Dashboard: s.Dashboard,
	}
	if s.Dashboard.ImageReference != nil {
		ref := *s.Dashboard.ImageReference
		out.Dashboard.ImageReference = &ref
	}
	for k, v := range s.Users {
		out.Users[k] = v.Clone()
	}
	for k, v := range s.Customers {
		out.Customers[k] = v.Clone()
	}
	return out
}

// CustomersInOrder returns the customers sorted by creation time, then ID.
func (s *Snapshot) CustomersInOrder() []*Customer {
	out := make([]*Customer, 0, len(s.Customers))
	for _, c := range s.Customers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Customer) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	return out
}

// AccountsInOrder returns the accounts sorted by creation time, then username.
func (s *Snapshot) AccountsInOrder() []*Account {
	out := make([]*Account, 0, len(s.Users))
	for _, a := range s.Users {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return out
}
