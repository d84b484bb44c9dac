package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"customerIntake/internal/apperr"
	"customerIntake/internal/auth"
	"customerIntake/internal/docstore"
	"customerIntake/internal/testutil"
	"customerIntake/models"
	"customerIntake/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	ledger *Ledger
	store  *repository.Store
	docs   *docstore.FSStore
	h      testutil.Hierarchy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	docs, err := docstore.NewFSStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return &fixture{
		ledger: New(store, docs, zaptest.NewLogger(t)),
		store:  store,
		docs:   docs,
		h:      testutil.SeedHierarchy(t, store),
	}
}

func janeDoe() SubmitRequest {
	return SubmitRequest{
		Name:     "Jane Doe",
		Phone:    "9876543210",
		Aadhaar:  "123456789012",
		Document: Document{Name: "aadhaar.pdf", Data: []byte("%PDF-1.4 jane")},
	}
}

func collect(t *testing.T, l *Ledger, s *auth.Session, search string) []string {
	t.Helper()
	seq, err := l.List(context.Background(), s, search)
	require.NoError(t, err)
	var ids []string
	for c := range seq {
		ids = append(ids, c.CustomerID)
	}
	return ids
}

func uploads(t *testing.T, f *fixture) int {
	t.Helper()
	entries, err := os.ReadDir(f.docs.Dir())
	require.NoError(t, err)
	return len(entries)
}

func TestSubmit_CreatesSubmittedRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.ledger.Submit(ctx, f.h.B1, janeDoe())
	require.NoError(t, err)
	assert.Regexp(t, `^CUST-\d+$`, c.CustomerID)
	assert.Equal(t, "North", c.Branch)
	assert.Equal(t, "b1", c.SubmittedBy)
	assert.Equal(t, models.StatusSubmitted, c.Status)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
	require.Len(t, c.History, 1)
	assert.Equal(t, models.StatusSubmitted, c.History[0].Status)

	data, err := f.ledger.OpenDocument(ctx, f.h.B1, c.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 jane", string(data))

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap.Customers, c.CustomerID)
}

func TestSubmit_ValidationFailuresCreateNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
		kind   apperr.Kind
	}{
		{"short phone", func(r *SubmitRequest) { r.Phone = "12345" }, apperr.InvalidPhone},
		{"phone with letters", func(r *SubmitRequest) { r.Phone = "98765x3210" }, apperr.InvalidPhone},
		{"signed phone", func(r *SubmitRequest) { r.Phone = "+987654321" }, apperr.InvalidPhone},
		{"short aadhaar", func(r *SubmitRequest) { r.Aadhaar = "1234" }, apperr.InvalidAadhaar},
		{"bad email", func(r *SubmitRequest) { r.Email = "jane.example.com" }, apperr.InvalidEmail},
		{"missing name", func(r *SubmitRequest) { r.Name = "   " }, apperr.MissingField},
		{"missing phone beats bad aadhaar", func(r *SubmitRequest) { r.Phone = ""; r.Aadhaar = "1" }, apperr.MissingField},
		{"missing document", func(r *SubmitRequest) { r.Document.Data = nil }, apperr.MissingField},
		{"empty document", func(r *SubmitRequest) { r.Document.Data = []byte{} }, apperr.MissingField},
		{"phone checked before aadhaar", func(r *SubmitRequest) { r.Phone = "1"; r.Aadhaar = "1" }, apperr.InvalidPhone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := janeDoe()
			tc.mutate(&req)
			_, err := f.ledger.Submit(ctx, f.h.B1, req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err), "got %v", err)
		})
	}
	assert.Empty(t, collect(t, f.ledger, f.h.Admin, ""))
	assert.Zero(t, uploads(t, f))
}

func TestSubmit_OptionalEmailAccepted(t *testing.T) {
	f := newFixture(t)
	req := janeDoe()
	req.Email = "jane@example.com"
	c, err := f.ledger.Submit(context.Background(), f.h.B1, req)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", c.Email)
}

func TestSubmit_OnlyBranchAccounts(t *testing.T) {
	f := newFixture(t)
	for _, s := range []*auth.Session{f.h.Admin, f.h.AGM, f.h.North} {
		_, err := f.ledger.Submit(context.Background(), s, janeDoe())
		assert.True(t, apperr.Is(err, apperr.PermissionDenied), "%s: %v", s.Username, err)
	}
	assert.Zero(t, uploads(t, f))
}

func TestSubmit_UnassignedBranch(t *testing.T) {
	f := newFixture(t)
	lone := testutil.SeedAccount(t, f.store, "lone", models.RoleBranch)
	c, err := f.ledger.Submit(context.Background(), lone, janeDoe())
	require.NoError(t, err)
	assert.Equal(t, models.UnassignedBranch, c.Branch)
}

func TestSubmit_IDsUniqueWithinOneSecond(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.ledger.now = func() time.Time { return fixed }

	var ids []string
	for i := 0; i < 3; i++ {
		c, err := f.ledger.Submit(context.Background(), f.h.B1, janeDoe())
		require.NoError(t, err)
		ids = append(ids, c.CustomerID)
	}
	assert.Equal(t, []string{"CUST-1714557600", "CUST-1714557600-2", "CUST-1714557600-3"}, ids)
}

func TestList_ScopesAndSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tick := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.ledger.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	jane, err := f.ledger.Submit(ctx, f.h.B1, janeDoe())
	require.NoError(t, err)
	req := janeDoe()
	req.Name, req.Phone = "Ravi Kumar", "9123456780"
	ravi, err := f.ledger.Submit(ctx, f.h.B2, req)
	require.NoError(t, err)

	assert.Equal(t, []string{jane.CustomerID}, collect(t, f.ledger, f.h.B1, ""))
	assert.Equal(t, []string{ravi.CustomerID}, collect(t, f.ledger, f.h.B2, ""))
	assert.Equal(t, []string{jane.CustomerID}, collect(t, f.ledger, f.h.North, ""))
	assert.Equal(t, []string{ravi.CustomerID}, collect(t, f.ledger, f.h.South, ""))
	assert.Equal(t, []string{jane.CustomerID, ravi.CustomerID}, collect(t, f.ledger, f.h.AGM, ""))
	assert.Equal(t, []string{jane.CustomerID, ravi.CustomerID}, collect(t, f.ledger, f.h.Admin, ""))

	assert.Equal(t, []string{ravi.CustomerID}, collect(t, f.ledger, f.h.Admin, "RAVI"))
	assert.Equal(t, []string{jane.CustomerID}, collect(t, f.ledger, f.h.Admin, "98765"))
	assert.Equal(t, []string{ravi.CustomerID}, collect(t, f.ledger, f.h.Admin, ravi.CustomerID))
	assert.Empty(t, collect(t, f.ledger, f.h.B1, "ravi"))
}

func TestList_SequenceIsRestartable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.ledger.Submit(ctx, f.h.B1, janeDoe())
		require.NoError(t, err)
	}
	seq, err := f.ledger.List(ctx, f.h.AGM, "")
	require.NoError(t, err)

	var first, second []string
	for c := range seq {
		first = append(first, c.CustomerID)
	}
	for c := range seq {
		second = append(second, c.CustomerID)
	}
	assert.Len(t, first, 3)
	assert.Equal(t, first, second)

	// Early break stops the sequence.
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestGet_Scope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.ledger.Submit(ctx, f.h.B1, janeDoe())
	require.NoError(t, err)

	_, err = f.ledger.Get(ctx, f.h.North, c.CustomerID)
	require.NoError(t, err)
	_, err = f.ledger.Get(ctx, f.h.South, c.CustomerID)
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
	_, err = f.ledger.Get(ctx, f.h.B2, c.CustomerID)
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
	_, err = f.ledger.OpenDocument(ctx, f.h.B2, c.CustomerID)
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
	_, err = f.ledger.Get(ctx, f.h.Admin, "CUST-0")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDelete_AdminOnlyAndRemovesDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.ledger.Submit(ctx, f.h.B1, janeDoe())
	require.NoError(t, err)
	require.Equal(t, 1, uploads(t, f))

	for _, s := range []*auth.Session{f.h.AGM, f.h.North, f.h.B1} {
		_, err := f.ledger.Delete(ctx, s, c.CustomerID)
		assert.True(t, apperr.Is(err, apperr.PermissionDenied), "%s: %v", s.Username, err)
	}

	res, err := f.ledger.Delete(ctx, f.h.Admin, c.CustomerID)
	require.NoError(t, err)
	assert.NoError(t, res.DocumentErr)
	assert.Equal(t, c.CustomerID, res.Customer.CustomerID)
	assert.Zero(t, uploads(t, f))
	assert.Empty(t, collect(t, f.ledger, f.h.Admin, ""))

	_, err = f.ledger.Delete(ctx, f.h.Admin, c.CustomerID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

type brokenDeletes struct {
	docstore.Store
}

func (brokenDeletes) Delete(context.Context, string) error { return errors.New("disk gone") }

func TestDelete_DocumentFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := New(f.store, brokenDeletes{f.docs}, zaptest.NewLogger(t))

	c, err := l.Submit(ctx, f.h.B1, janeDoe())
	require.NoError(t, err)
	res, err := l.Delete(ctx, f.h.Admin, c.CustomerID)
	require.NoError(t, err)
	assert.EqualError(t, res.DocumentErr, "disk gone")
	assert.Empty(t, collect(t, l, f.h.Admin, ""))
}

func TestStats_CountsByStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.ledger.Submit(ctx, f.h.B1, janeDoe())
	require.NoError(t, err)
	_, err = f.ledger.Submit(ctx, f.h.B2, janeDoe())
	require.NoError(t, err)
	require.NoError(t, f.store.Update(ctx, func(snap *models.Snapshot) error {
		snap.Customers[first.CustomerID].Status = models.StatusApprovedByAreaManager
		return nil
	}))

	st, err := f.ledger.Stats(ctx, f.h.Admin)
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 6, Customers: 2, AwaitingAreaManager: 1, AwaitingAGM: 1}, st)

	for _, s := range []*auth.Session{f.h.AGM, f.h.North, f.h.B1} {
		_, err := f.ledger.Stats(ctx, s)
		assert.True(t, apperr.Is(err, apperr.PermissionDenied), s.Username)
	}
}
