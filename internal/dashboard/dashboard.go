// Package dashboard manages the login screen configuration: a welcome text
// and an optional image, both admin-owned.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"customerIntake/internal/apperr"
	"customerIntake/internal/auth"
	"customerIntake/internal/docstore"
	"customerIntake/internal/logger"
	"customerIntake/models"
	"customerIntake/repository"

	"go.uber.org/zap"
)

// Image is an uploaded dashboard image.
type Image struct {
	Name string
	Data []byte
}

// UpdateRequest changes the dashboard. Nil fields are left as they are.
type UpdateRequest struct {
	Text  *string
	Image *Image
}

// Service reads and changes the dashboard.
type Service struct {
	store repository.SnapshotStore
	docs  docstore.Store
	log   *zap.Logger
	now   func() time.Time
}

// New returns a Service.
func New(store repository.SnapshotStore, docs docstore.Store, log *zap.Logger) *Service {
	return &Service{
		store: store,
		docs:  docs,
		log:   logger.OrNop(log).Named("dashboard"),
		now:   time.Now,
	}
}

// Get returns the dashboard. It needs no session.
func (s *Service) Get(ctx context.Context) (models.Dashboard, error) {
	snap, err := repository.LoadForRead(ctx, s.store)
	if err != nil {
		return models.Dashboard{}, err
	}
	return snap.Dashboard, nil
}

// Image returns the bytes of the current dashboard image.
func (s *Service) Image(ctx context.Context) ([]byte, error) {
	d, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if d.ImageReference == nil {
		return nil, apperr.New(apperr.NotFound, "dashboard has no image")
	}
	data, err := s.docs.Get(ctx, *d.ImageReference)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidReference) {
		return nil, apperr.Wrap(apperr.NotFound, err, "dashboard image")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, err, "read dashboard image")
	}
	return data, nil
}

func (s *Service) authorize(snap *models.Snapshot, sess *auth.Session) error {
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return err
	}
	if !auth.CanConfigureDashboard(actor) {
		return apperr.New(apperr.PermissionDenied, "only admin can configure the dashboard")
	}
	return nil
}

// Update applies req. Admin only. A new image replaces the previous one,
// which is then removed best-effort.
func (s *Service) Update(ctx context.Context, sess *auth.Session, req UpdateRequest) (models.Dashboard, error) {
	snap, err := repository.LoadForRead(ctx, s.store)
	if err != nil {
		return models.Dashboard{}, err
	}
	if err := s.authorize(snap, sess); err != nil {
		return models.Dashboard{}, err
	}
	var text string
	if req.Text != nil {
		text = strings.TrimSpace(*req.Text)
		if text == "" {
			return models.Dashboard{}, apperr.New(apperr.MissingField, "welcome text is required")
		}
	}
	var newRef string
	if req.Image != nil {
		if len(req.Image.Data) == 0 {
			return models.Dashboard{}, apperr.New(apperr.MissingField, "image is empty")
		}
		newRef, err = s.docs.Put(ctx, s.imageName(req.Image.Name), req.Image.Data)
		if err != nil {
			return models.Dashboard{}, apperr.Wrap(apperr.StoreUnavailable, err, "store dashboard image")
		}
	}

	var (
		oldRef *string
		out    models.Dashboard
	)
	err = s.store.Update(ctx, func(snap *models.Snapshot) error {
		if err := s.authorize(snap, sess); err != nil {
			return err
		}
		if req.Text != nil {
			snap.Dashboard.WelcomeText = text
		}
		if newRef != "" {
			oldRef = snap.Dashboard.ImageReference
			snap.Dashboard.ImageReference = &newRef
		}
		out = snap.Dashboard
		return nil
	})
	if err != nil {
		if newRef != "" {
			s.discard(ctx, newRef, "unused dashboard image could not be removed")
		}
		return models.Dashboard{}, err
	}
	if oldRef != nil {
		s.discard(ctx, *oldRef, "previous dashboard image could not be removed")
	}
	s.log.Info("dashboard updated", zap.String("by", sess.Username), zap.Bool("text", req.Text != nil), zap.Bool("image", newRef != ""))
	return out, nil
}

// DeleteImage clears the dashboard image. Admin only. It reports whether
// there was an image to clear.
func (s *Service) DeleteImage(ctx context.Context, sess *auth.Session) (bool, error) {
	var oldRef *string
	err := s.store.Update(ctx, func(snap *models.Snapshot) error {
		if err := s.authorize(snap, sess); err != nil {
			return err
		}
		oldRef = snap.Dashboard.ImageReference
		snap.Dashboard.ImageReference = nil
		return nil
	})
	if err != nil {
		return false, err
	}
	if oldRef == nil {
		return false, nil
	}
	s.discard(ctx, *oldRef, "dashboard image file could not be removed")
	s.log.Info("dashboard image cleared", zap.String("by", sess.Username))
	return true, nil
}

func (s *Service) discard(ctx context.Context, ref, msg string) {
	if err := s.docs.Delete(ctx, ref); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		s.log.Warn(msg, zap.String("document", ref), zap.Error(err))
	}
}

// imageName keeps the upload's extension under a dashboard_<unix> name.
func (s *Service) imageName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("dashboard_%d%s", s.now().Unix(), ext)
}
