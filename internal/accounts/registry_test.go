package accounts

import (
	"context"
	"strings"
	"testing"

	"customerIntake/internal/apperr"
	"customerIntake/internal/auth"
	"customerIntake/internal/testutil"
	"customerIntake/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRegistry(t *testing.T) (*Registry, *auth.Session) {
	t.Helper()
	store := testutil.NewStore(t)
	r := NewRegistry(store, testutil.Vault(), zaptest.NewLogger(t))
	created, err := r.Bootstrap(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	require.True(t, created)
	sess, err := r.Authenticate(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	return r, sess
}

func TestBootstrap_Idempotent(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	created, err := r.Bootstrap(ctx, "admin", "other-password")
	require.NoError(t, err)
	assert.False(t, created)

	// The first password still works.
	_, err = r.Authenticate(ctx, "admin", "admin123")
	require.NoError(t, err)

	_, err = r.Bootstrap(ctx, " ", "x")
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestBootstrap_WeakPasswordRejected(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	r := NewRegistry(store, testutil.Vault(), zaptest.NewLogger(t))

	created, err := r.Bootstrap(ctx, "admin", "12345")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.WeakPassword))
	assert.False(t, created)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Users)

	created, err = r.Bootstrap(ctx, "admin", "123456")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestHierarchyScenario(t *testing.T) {
	ctx := context.Background()
	r, admin := newRegistry(t)

	a1, err := r.CreateAccount(ctx, admin, CreateAccountRequest{Username: "A1", Password: "secret1", Role: models.RoleAGM})
	require.NoError(t, err)
	assert.Empty(t, a1.PasswordHash)
	assert.Equal(t, "admin", a1.CreatedBy)

	a1Sess, err := r.Authenticate(ctx, "A1", "secret1")
	require.NoError(t, err)
	_, err = r.CreateAccount(ctx, a1Sess, CreateAccountRequest{Username: "M1", Password: "secret2", Role: models.RoleAreaManager, Branches: []string{"North"}})
	require.NoError(t, err)

	m1Sess, err := r.Authenticate(ctx, "M1", "secret2")
	require.NoError(t, err)
	b1, err := r.CreateAccount(ctx, m1Sess, CreateAccountRequest{Username: "B1", Password: "secret3", Role: models.RoleBranch, Branches: []string{"North"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"North"}, b1.AssignedBranches)

	b1Sess, err := r.Authenticate(ctx, "B1", "secret3")
	require.NoError(t, err)
	assert.Equal(t, models.RoleBranch, b1Sess.Role)
	assert.Equal(t, []string{"North"}, b1Sess.Branches)
}

func TestCreateAccount_PermissionMatrix(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	h := testutil.SeedHierarchy(t, store)
	r := NewRegistry(store, testutil.Vault(), zaptest.NewLogger(t))

	cases := []struct {
		name    string
		creator *auth.Session
		role    models.Role
		branch  []string
		ok      bool
	}{
		{"admin creates AGM", h.Admin, models.RoleAGM, nil, true},
		{"admin creates area manager", h.Admin, models.RoleAreaManager, []string{"East"}, true},
		{"admin creates branch", h.Admin, models.RoleBranch, []string{"East"}, true},
		{"admin creates admin", h.Admin, models.RoleAdmin, nil, false},
		{"AGM creates area manager", h.AGM, models.RoleAreaManager, []string{"East"}, true},
		{"AGM creates branch", h.AGM, models.RoleBranch, []string{"East"}, false},
		{"AGM creates AGM", h.AGM, models.RoleAGM, nil, false},
		{"area manager creates branch", h.North, models.RoleBranch, []string{"North"}, true},
		{"area manager creates branch elsewhere", h.North, models.RoleBranch, []string{"South"}, false},
		{"area manager creates area manager", h.North, models.RoleAreaManager, []string{"North"}, false},
		{"branch creates branch", h.B1, models.RoleBranch, []string{"North"}, false},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			username := "user" + strings.Repeat("x", i)
			_, err := r.CreateAccount(ctx, tc.creator, CreateAccountRequest{
				Username: username, Password: "secret9", Role: tc.role, Branches: tc.branch,
			})
			if tc.ok {
				require.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.PermissionDenied), "got %v", err)
		})
	}
}

func TestCreateAccount_ValidationOrder(t *testing.T) {
	ctx := context.Background()
	r, admin := newRegistry(t)
	_, err := r.CreateAccount(ctx, admin, CreateAccountRequest{Username: "m1", Password: "secret1", Role: models.RoleAreaManager, Branches: []string{"North"}})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  CreateAccountRequest
		kind apperr.Kind
	}{
		{"empty username wins over everything", CreateAccountRequest{Username: "  ", Password: "x", Role: models.RoleBranch}, apperr.InvalidInput},
		{"duplicate wins over weak password", CreateAccountRequest{Username: "m1", Password: "x", Role: models.RoleBranch}, apperr.DuplicateUsername},
		{"weak password wins over branches", CreateAccountRequest{Username: "b9", Password: "12345", Role: models.RoleBranch}, apperr.WeakPassword},
		{"branch needs exactly one", CreateAccountRequest{Username: "b9", Password: "123456", Role: models.RoleBranch, Branches: []string{"North", "South"}}, apperr.InvalidBranchAssignment},
		{"branch needs one", CreateAccountRequest{Username: "b9", Password: "123456", Role: models.RoleBranch}, apperr.InvalidBranchAssignment},
		{"area manager needs one", CreateAccountRequest{Username: "m9", Password: "123456", Role: models.RoleAreaManager, Branches: []string{" ", ""}}, apperr.InvalidBranchAssignment},
		{"AGM takes none", CreateAccountRequest{Username: "a9", Password: "123456", Role: models.RoleAGM, Branches: []string{"North"}}, apperr.InvalidBranchAssignment},
		{"unknown role", CreateAccountRequest{Username: "z9", Password: "123456", Role: "auditor"}, apperr.InvalidInput},
		{"password too long for bcrypt", CreateAccountRequest{Username: "a9", Password: strings.Repeat("p", 80), Role: models.RoleAGM}, apperr.InvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.CreateAccount(ctx, admin, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err), "got %v", err)
		})
	}

	list, err := r.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2, "failed creations must not persist anything")
}

func TestCreateAccount_NormalizesBranches(t *testing.T) {
	ctx := context.Background()
	r, admin := newRegistry(t)
	acc, err := r.CreateAccount(ctx, admin, CreateAccountRequest{
		Username: " m1 ", Password: "secret1", Role: models.RoleAreaManager,
		Branches: []string{" North", "South", "North ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", acc.Username)
	assert.Equal(t, []string{"North", "South"}, acc.AssignedBranches)
}

func TestCreateAccount_VanishedCreator(t *testing.T) {
	r, _ := newRegistry(t)
	ghost := &auth.Session{Username: "ghost", Role: models.RoleAdmin}
	_, err := r.CreateAccount(context.Background(), ghost, CreateAccountRequest{Username: "x1", Password: "secret1", Role: models.RoleAGM})
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
}

func TestAuthenticate_Failures(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)

	_, err := r.Authenticate(ctx, "nobody", "admin123")
	assert.True(t, apperr.Is(err, apperr.UnknownUser))
	_, err = r.Authenticate(ctx, "admin", "wrong")
	assert.True(t, apperr.Is(err, apperr.InvalidCredentials))
	_, err = r.Authenticate(ctx, "admin", "")
	assert.True(t, apperr.Is(err, apperr.InvalidCredentials))
}

func TestGetAndList_Scoped(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	h := testutil.SeedHierarchy(t, store)
	r := NewRegistry(store, testutil.Vault(), zaptest.NewLogger(t))

	names := func(s *auth.Session) []string {
		list, err := r.List(ctx, s)
		require.NoError(t, err)
		var out []string
		for _, a := range list {
			assert.Empty(t, a.PasswordHash)
			out = append(out, a.Username)
		}
		return out
	}
	assert.ElementsMatch(t, []string{"root", "a1", "m1", "m2", "b1", "b2"}, names(h.Admin))
	assert.ElementsMatch(t, []string{"a1", "m1", "m2", "b1", "b2"}, names(h.AGM))
	assert.ElementsMatch(t, []string{"m1", "b1"}, names(h.North))
	assert.ElementsMatch(t, []string{"b1"}, names(h.B1))

	acc, err := r.Get(ctx, h.North, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleBranch, acc.Role)
	assert.Empty(t, acc.PasswordHash)

	_, err = r.Get(ctx, h.North, "b2")
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
	_, err = r.Get(ctx, h.Admin, "nobody")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestNormalizeBranches(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeBranches(nil))
	assert.Equal(t, []string{"A", "B"}, NormalizeBranches([]string{"A", " B ", "A", "  "}))
}
