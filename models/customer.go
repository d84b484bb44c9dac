package models

import (
	"slices"
	"time"
)

// CustomerStatus is a stage of the approval pipeline.
type CustomerStatus string

const (
	StatusSubmitted             CustomerStatus = "submitted"
	StatusApprovedByAreaManager CustomerStatus = "approved_by_area_manager"
	StatusApprovedByAGM         CustomerStatus = "approved_by_agm"
)

// UnassignedBranch is recorded when the submitter has no branch.
const UnassignedBranch = "Unassigned"

// Pipeline is the ordered list of statuses. A record only moves one step forward.
var Pipeline = []CustomerStatus{StatusSubmitted, StatusApprovedByAreaManager, StatusApprovedByAGM}

// Rank returns the position of s in Pipeline, or -1 when s is unknown.
func (s CustomerStatus) Rank() int {
	return slices.Index(Pipeline, s)
}

// Next returns the status that follows s. ok is false for the terminal
// status and for unknown values.
func (s CustomerStatus) Next() (next CustomerStatus, ok bool) {
	i := s.Rank()
	if i < 0 || i+1 >= len(Pipeline) {
		return "", false
	}
	return Pipeline[i+1], true
}

// Final reports whether no further transition exists.
func (s CustomerStatus) Final() bool {
	return s == StatusApprovedByAGM
}

// StatusChange records one step of a customer's history.
type StatusChange struct {
	Status CustomerStatus `json:"status"`
	By     string         `json:"by"`
	At     time.Time      `json:"at"`
}

// Customer is a submitted customer record. It maps to one entry of the
// `customers` section of the persisted document.
type Customer struct {
	CustomerID        string         `json:"customer_id"`
	Name              string         `json:"name"`
	Phone             string         `json:"phone"`
	AadhaarNumber     string         `json:"aadhaar_number"`
	Email             string         `json:"email"`
	Branch            string         `json:"branch"`
	SubmittedBy       string         `json:"submitted_by"`
	Status            CustomerStatus `json:"status"`
	DocumentReference string         `json:"document_path"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	History           []StatusChange `json:"history,omitempty"`
}

// Clone returns a deep copy.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	out := *c
	out.History = slices.Clone(c.History)
	return &out
}
