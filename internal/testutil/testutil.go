// Package testutil builds stores and seeded account hierarchies for tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"customerIntake/internal/auth"
	"customerIntake/internal/credential"
	"customerIntake/internal/db"
	"customerIntake/models"
	"customerIntake/repository"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

// Password is the password every seeded account gets.
const Password = "secret1"

// OpenTempDB opens a migrated SQLite database under t.TempDir().
// The database is closed via t.Cleanup.
func OpenTempDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "intake.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// NewStore returns a file-backed store under t.TempDir().
func NewStore(t *testing.T) *repository.Store {
	t.Helper()
	b := repository.NewFileBackend(filepath.Join(t.TempDir(), "crm_data.json"))
	return repository.NewStore(b, zaptest.NewLogger(t))
}

// Vault returns a vault at bcrypt's minimum cost so tests stay fast.
func Vault() *credential.Vault {
	return credential.NewVault(bcrypt.MinCost)
}

// SeedAccount writes an account straight into the store, bypassing the
// creation matrix, and returns its session.
func SeedAccount(t *testing.T, store repository.SnapshotStore, username string, role models.Role, branches ...string) *auth.Session {
	t.Helper()
	hash, err := Vault().Hash(Password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if branches == nil {
		branches = []string{}
	}
	acc := &models.Account{
		Username:         username,
		PasswordHash:     hash,
		Role:             role,
		AssignedBranches: branches,
		CreatedBy:        "testutil",
		CreatedAt:        time.Now().UTC(),
	}
	err = store.Update(context.Background(), func(snap *models.Snapshot) error {
		snap.Users[username] = acc
		return nil
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", username, err)
	}
	return auth.NewSession(acc)
}

// Hierarchy holds the sessions of a seeded organisation.
type Hierarchy struct {
	Admin *auth.Session // root
	AGM   *auth.Session // a1
	North *auth.Session // m1, area manager of North
	South *auth.Session // m2, area manager of South
	B1    *auth.Session // b1, branch user in North
	B2    *auth.Session // b2, branch user in South
}

// SeedHierarchy seeds one account per role plus a second area manager and
// branch user on another branch.
func SeedHierarchy(t *testing.T, store repository.SnapshotStore) Hierarchy {
	t.Helper()
	return Hierarchy{
		Admin: SeedAccount(t, store, "root", models.RoleAdmin),
		AGM:   SeedAccount(t, store, "a1", models.RoleAGM),
		North: SeedAccount(t, store, "m1", models.RoleAreaManager, "North"),
		South: SeedAccount(t, store, "m2", models.RoleAreaManager, "South"),
		B1:    SeedAccount(t, store, "b1", models.RoleBranch, "North"),
		B2:    SeedAccount(t, store, "b2", models.RoleBranch, "South"),
	}
}
