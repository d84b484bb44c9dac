package repository

import (
	"context"

	"customerIntake/internal/apperr"
	"customerIntake/models"
)

// Backend persists the encoded snapshot document. Write must be
// all-or-nothing: a failed write leaves the previous document intact.
type Backend interface {
	// Read returns the stored document, or (nil, nil) when nothing was saved yet.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
	// Describe names the backend location for logs.
	Describe() string
}

// Quarantiner is implemented by backends that can move an undecodable
// document aside so that the next save does not overwrite it.
type Quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}

// SnapshotStore is the contract the registries and ledger depend on.
type SnapshotStore interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snap *models.Snapshot) error
	Update(ctx context.Context, fn func(*models.Snapshot) error) error
	Subscribe(fn func()) (unsubscribe func())
}

var _ SnapshotStore = (*Store)(nil)

// LoadForRead loads a snapshot for a read-only operation. A StoreUnavailable
// load is tolerated: the store has logged it and handed back the default state.
func LoadForRead(ctx context.Context, s SnapshotStore) (*models.Snapshot, error) {
	snap, err := s.Load(ctx)
	if err != nil && !apperr.Is(err, apperr.StoreUnavailable) {
		return nil, err
	}
	return snap, nil
}
