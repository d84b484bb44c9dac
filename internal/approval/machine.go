// Package approval advances customer records through
// submitted -> approved_by_area_manager -> approved_by_agm.
package approval

import (
	"context"
	"time"

	"customerIntake/internal/apperr"
	"customerIntake/internal/auth"
	"customerIntake/internal/logger"
	"customerIntake/models"
	"customerIntake/repository"

	"go.uber.org/zap"
)

// Machine applies approvals. Each approval is one store Update, so two
// racing approvals of the same record cannot both advance it.
type Machine struct {
	store repository.SnapshotStore
	log   *zap.Logger
	now   func() time.Time
}

// New returns a Machine over store.
func New(store repository.SnapshotStore, log *zap.Logger) *Machine {
	return &Machine{
		store: store,
		log:   logger.OrNop(log).Named("approval"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Approve moves the record one stage forward on behalf of sess.
func (m *Machine) Approve(ctx context.Context, sess *auth.Session, id string) (*models.Customer, error) {
	var (
		approved *models.Customer
		from     models.CustomerStatus
	)
	err := m.store.Update(ctx, func(snap *models.Snapshot) error {
		actor, err := auth.Resolve(snap, sess)
		if err != nil {
			return err
		}
		c, ok := snap.Customers[id]
		if !ok {
			return apperr.New(apperr.NotFound, "customer %s not found", id)
		}
		next, err := auth.CanApprove(actor, c)
		if err != nil {
			return err
		}
		now := m.now()
		if now.Before(c.UpdatedAt) {
			now = c.UpdatedAt
		}
		from = c.Status
		c.Status = next
		c.UpdatedAt = now
		c.History = append(c.History, models.StatusChange{Status: next, By: actor.Username, At: now})
		approved = c
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.PermissionDenied) || apperr.Is(err, apperr.AlreadyFinal) {
			m.log.Info("approval refused", zap.String("customer_id", id), zap.String("by", username(sess)), zap.Error(err))
		}
		return nil, err
	}
	m.log.Info("customer approved",
		zap.String("customer_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(approved.Status)),
		zap.String("by", sess.Username))
	return approved.Clone(), nil
}

// Pending lists, in creation order, the records sess could approve now.
func (m *Machine) Pending(ctx context.Context, sess *auth.Session) ([]*models.Customer, error) {
	snap, err := repository.LoadForRead(ctx, m.store)
	if err != nil {
		return nil, err
	}
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return nil, err
	}
	var out []*models.Customer
	for _, c := range snap.CustomersInOrder() {
		if _, err := auth.CanApprove(actor, c); err == nil {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func username(s *auth.Session) string {
	if s == nil {
		return ""
	}
	return s.Username
}
