package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"customerIntake/internal/apperr"
	"customerIntake/internal/logger"
	"customerIntake/models"

	"go.uber.org/zap"
)

// Store owns the durable snapshot. Readers get private deep copies; writers
// are serialized so that a load→modify→save sequence never works from a
// stale read.
type Store struct {
	backend Backend
	log     *zap.Logger

	writeMu sync.Mutex

	mu        sync.RWMutex
	cached    *models.Snapshot
	gen       uint64 // bumped on every invalidation
	observers map[int]func()
	nextObs   int
}

// NewStore wraps a backend.
func NewStore(backend Backend, log *zap.Logger) *Store {
	return &Store{
		backend:   backend,
		log:       logger.OrNop(log).Named("store"),
		observers: map[int]func(){},
	}
}

// Load returns a private copy of the current snapshot. When the backend is
// unreadable or holds an undecodable document, Load returns the empty default
// snapshot together with a StoreUnavailable error; callers may continue with
// the returned snapshot for reading.
func (s *Store) Load(ctx context.Context) (*models.Snapshot, error) {
	snap, _, err := s.load(ctx)
	return snap, err
}

// load also reports whether a failed load may be written over: only an
// undecodable document that was moved aside qualifies.
func (s *Store) load(ctx context.Context) (snap *models.Snapshot, writable bool, err error) {
	s.mu.RLock()
	cached, gen := s.cached, s.gen
	s.mu.RUnlock()
	if cached != nil {
		return cached.Clone(), true, nil
	}

	raw, err := s.backend.Read(ctx)
	if err != nil {
		s.log.Error("snapshot unreadable, continuing with empty default state",
			zap.String("backend", s.backend.Describe()), zap.Error(err))
		return models.NewSnapshot(), false, apperr.Wrap(apperr.StoreUnavailable, err, "read snapshot from %s", s.backend.Describe())
	}
	snap, err = decode(raw)
	if err != nil {
		fields := []zap.Field{zap.String("backend", s.backend.Describe()), zap.Error(err)}
		if q, ok := s.backend.(Quarantiner); ok {
			if moved, qerr := q.Quarantine(ctx); qerr != nil {
				fields = append(fields, zap.NamedError("quarantine_error", qerr))
			} else {
				fields = append(fields, zap.String("quarantined_to", moved))
				writable = true
			}
		}
		s.log.Error("snapshot corrupt, continuing with empty default state", fields...)
		return models.NewSnapshot(), writable, apperr.Wrap(apperr.StoreUnavailable, err, "decode snapshot from %s", s.backend.Describe())
	}

	s.mu.Lock()
	if s.gen == gen {
		s.cached = snap
	}
	s.mu.Unlock()
	return snap.Clone(), true, nil
}

// Save persists snap as the whole new state.
func (s *Store) Save(ctx context.Context, snap *models.Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.save(ctx, snap)
}

// Update runs fn against a fresh private copy of the snapshot and saves the
// result. Concurrent Updates run one at a time. If fn returns an error nothing
// is written and the error is returned unchanged. A corrupt document that was
// quarantined is replaced by fn's result; any other load failure aborts the
// update so the stored document is never overwritten with the empty default.
func (s *Store) Update(ctx context.Context, fn func(*models.Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, writable, err := s.load(ctx)
	if err != nil && !writable {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	return s.save(ctx, snap)
}

func (s *Store) save(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return apperr.New(apperr.InvalidInput, "snapshot is nil")
	}
	doc, err := encode(snap)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "encode snapshot")
	}
	if err := s.backend.Write(ctx, doc); err != nil {
		s.log.Error("snapshot write failed, previous state kept",
			zap.String("backend", s.backend.Describe()), zap.Error(err))
		return apperr.Wrap(apperr.StoreUnavailable, err, "write snapshot to %s", s.backend.Describe())
	}
	s.Invalidate()
	return nil
}

// Invalidate drops the cached snapshot and notifies every subscriber. It runs
// after each successful save, before Save returns.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.gen++
	obs := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		obs = append(obs, fn)
	}
	s.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// Subscribe registers fn to run on every invalidation.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// encode is deterministic: map keys are sorted by encoding/json, so saving an
// unchanged snapshot reproduces the same bytes.
func encode(snap *models.Snapshot) ([]byte, error) {
	snap.Normalize()
	doc, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(doc, '\n'), nil
}

func decode(raw []byte) (*models.Snapshot, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.NewSnapshot(), nil
	}
	snap := &models.Snapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, err
	}
	snap.Normalize()
	if snap.Dashboard.WelcomeText == "" {
		snap.Dashboard.WelcomeText = models.DefaultWelcomeText
	}
	return snap, nil
}
