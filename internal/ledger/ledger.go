// Package ledger creates customer records and serves the branch and submitter
// scoped views of them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"customerIntake/internal/apperr"
	"customerIntake/internal/auth"
	"customerIntake/internal/docstore"
	"customerIntake/internal/logger"
	"customerIntake/models"
	"customerIntake/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// IDPrefix starts every generated customer ID.
const IDPrefix = "CUST-"

// Document is an uploaded file.
type Document struct {
	Name string
	Data []byte
}

// SubmitRequest carries the fields of a new customer record.
type SubmitRequest struct {
	Name     string
	Phone    string
	Aadhaar  string
	Email    string
	Document Document
}

// DeleteResult describes a completed deletion. DocumentErr is set when the
// record was removed but its document could not be.
type DeleteResult struct {
	Customer    *models.Customer
	DocumentErr error
}

// Stats are the system-wide counts shown to admin.
type Stats struct {
	Users     int `json:"total_users"`
	Customers int `json:"total_customers"`
	// AwaitingAreaManager counts records in the submitted state.
	AwaitingAreaManager int `json:"awaiting_area_manager"`
	AwaitingAGM         int `json:"awaiting_agm"`
	Approved            int `json:"approved"`
}

// Ledger is the customer ledger.
type Ledger struct {
	store    repository.SnapshotStore
	docs     docstore.Store
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

// New wires a ledger over store and docs.
func New(store repository.SnapshotStore, docs docstore.Store, log *zap.Logger) *Ledger {
	return &Ledger{
		store:    store,
		docs:     docs,
		validate: newValidator(),
		log:      logger.OrNop(log).Named("ledger"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates req, stores its document and creates a record in the
// submitter's first branch with status submitted. Only branch accounts may
// submit. Nothing is created when any check fails.
func (l *Ledger) Submit(ctx context.Context, sess *auth.Session, req SubmitRequest) (*models.Customer, error) {
	snap, err := repository.LoadForRead(ctx, l.store)
	if err != nil {
		return nil, err
	}
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return nil, err
	}
	if !auth.CanSubmit(actor) {
		return nil, apperr.New(apperr.PermissionDenied, "only branch accounts can submit customers")
	}

	sub := submission{
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
		Aadhaar:  strings.TrimSpace(req.Aadhaar),
		Document: req.Document.Data,
		Email:    strings.TrimSpace(req.Email),
	}
	if err := check(l.validate, &sub); err != nil {
		return nil, err
	}

	ref, err := l.docs.Put(ctx, req.Document.Name, req.Document.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, err, "store document")
	}

	var created *models.Customer
	err = l.store.Update(ctx, func(snap *models.Snapshot) error {
		actor, err := auth.Resolve(snap, sess)
		if err != nil {
			return err
		}
		if !auth.CanSubmit(actor) {
			return apperr.New(apperr.PermissionDenied, "only branch accounts can submit customers")
		}
		now := l.now()
		branch := models.UnassignedBranch
		if len(actor.AssignedBranches) > 0 {
			branch = actor.AssignedBranches[0]
		}
		created = &models.Customer{
			CustomerID:        nextID(snap, now),
			Name:              sub.Name,
			Phone:             sub.Phone,
			AadhaarNumber:     sub.Aadhaar,
			Email:             sub.Email,
			Branch:            branch,
			SubmittedBy:       actor.Username,
			Status:            models.StatusSubmitted,
			DocumentReference: ref,
			CreatedAt:         now,
			UpdatedAt:         now,
			History:           []models.StatusChange{{Status: models.StatusSubmitted, By: actor.Username, At: now}},
		}
		snap.Customers[created.CustomerID] = created
		return nil
	})
	if err != nil {
		if derr := l.docs.Delete(ctx, ref); derr != nil {
			l.log.Warn("orphaned document after failed submit", zap.String("document", ref), zap.Error(derr))
		}
		return nil, err
	}
	l.log.Info("customer submitted",
		zap.String("customer_id", created.CustomerID),
		zap.String("branch", created.Branch),
		zap.String("submitted_by", created.SubmittedBy))
	return created.Clone(), nil
}

// nextID returns CUST-<unix seconds>, suffixed -2, -3, ... when that ID is
// already taken.
func nextID(snap *models.Snapshot, now time.Time) string {
	base := fmt.Sprintf("%s%d", IDPrefix, now.Unix())
	id := base
	for n := 2; ; n++ {
		if _, taken := snap.Customers[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// List returns the records visible to sess, in creation order, filtered by a
// case-insensitive match of search against name, ID and phone. The sequence
// reads the snapshot taken at call time and can be ranged over repeatedly.
func (l *Ledger) List(ctx context.Context, sess *auth.Session, search string) (iter.Seq[models.Customer], error) {
	snap, err := repository.LoadForRead(ctx, l.store)
	if err != nil {
		return nil, err
	}
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return nil, err
	}
	ordered := snap.CustomersInOrder()
	term := strings.ToLower(strings.TrimSpace(search))
	return func(yield func(models.Customer) bool) {
		for _, c := range ordered {
			if !auth.CanView(actor, c) || !matches(c, term) {
				continue
			}
			if !yield(*c.Clone()) {
				return
			}
		}
	}, nil
}

// Stats counts accounts and records across every branch. Admin only.
func (l *Ledger) Stats(ctx context.Context, sess *auth.Session) (Stats, error) {
	snap, err := repository.LoadForRead(ctx, l.store)
	if err != nil {
		return Stats{}, err
	}
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return Stats{}, err
	}
	if !auth.CanViewStats(actor) {
		return Stats{}, apperr.New(apperr.PermissionDenied, "only admin can view system stats")
	}
	st := Stats{Users: len(snap.Users), Customers: len(snap.Customers)}
	for _, c := range snap.Customers {
		switch c.Status {
		case models.StatusSubmitted:
			st.AwaitingAreaManager++
		case models.StatusApprovedByAreaManager:
			st.AwaitingAGM++
		case models.StatusApprovedByAGM:
			st.Approved++
		}
	}
	return st, nil
}

func matches(c *models.Customer, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), term) ||
		strings.Contains(strings.ToLower(c.CustomerID), term) ||
		strings.Contains(c.Phone, term)
}

// Get returns one record inside the caller's scope.
func (l *Ledger) Get(ctx context.Context, sess *auth.Session, id string) (*models.Customer, error) {
	snap, err := repository.LoadForRead(ctx, l.store)
	if err != nil {
		return nil, err
	}
	return visible(snap, sess, id)
}

func visible(snap *models.Snapshot, sess *auth.Session, id string) (*models.Customer, error) {
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return nil, err
	}
	c, ok := snap.Customers[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "customer %s not found", id)
	}
	if !auth.CanView(actor, c) {
		return nil, apperr.New(apperr.PermissionDenied, "customer %s is outside your scope", id)
	}
	return c.Clone(), nil
}

// OpenDocument returns the stored document of a record inside the caller's
// scope.
func (l *Ledger) OpenDocument(ctx context.Context, sess *auth.Session, id string) ([]byte, error) {
	c, err := l.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if c.DocumentReference == "" {
		return nil, apperr.New(apperr.NotFound, "customer %s has no document", id)
	}
	data, err := l.docs.Get(ctx, c.DocumentReference)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidReference) {
		return nil, apperr.Wrap(apperr.NotFound, err, "document of customer %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, err, "read document of customer %s", id)
	}
	return data, nil
}

// Delete removes a record. Admin only. The record is removed even when its
// document cannot be; that failure is reported in DeleteResult.DocumentErr.
func (l *Ledger) Delete(ctx context.Context, sess *auth.Session, id string) (*DeleteResult, error) {
	var removed *models.Customer
	err := l.store.Update(ctx, func(snap *models.Snapshot) error {
		actor, err := auth.Resolve(snap, sess)
		if err != nil {
			return err
		}
		if !auth.CanDelete(actor) {
			return apperr.New(apperr.PermissionDenied, "only admin can delete customers")
		}
		c, ok := snap.Customers[id]
		if !ok {
			return apperr.New(apperr.NotFound, "customer %s not found", id)
		}
		removed = c
		delete(snap.Customers, id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &DeleteResult{Customer: removed.Clone()}
	if ref := removed.DocumentReference; ref != "" {
		if derr := l.docs.Delete(ctx, ref); derr != nil {
			res.DocumentErr = derr
			l.log.Warn("customer deleted but document removal failed",
				zap.String("customer_id", id), zap.String("document", ref), zap.Error(derr))
		}
	}
	l.log.Info("customer deleted", zap.String("customer_id", id), zap.String("by", sess.Username))
	return res, nil
}
