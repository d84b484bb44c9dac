// Package accounts is the account registry: creation under the role matrix,
// authentication, the one-time admin bootstrap and scoped read models.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"customerIntake/internal/apperr"
	"customerIntake/internal/auth"
	"customerIntake/internal/credential"
	"customerIntake/internal/logger"
	"customerIntake/models"
	"customerIntake/repository"

	"go.uber.org/zap"
)

// MinPasswordLength is the shortest password CreateAccount and Bootstrap accept.
const MinPasswordLength = 6

// CreateAccountRequest carries the fields of a new account.
type CreateAccountRequest struct {
	Username string
	Password string
	Role     models.Role
	Branches []string
}

// Registry owns account creation and lookup.
type Registry struct {
	store repository.SnapshotStore
	vault *credential.Vault
	log   *zap.Logger
	now   func() time.Time
}

// NewRegistry wires a registry over store.
func NewRegistry(store repository.SnapshotStore, vault *credential.Vault, log *zap.Logger) *Registry {
	return &Registry{
		store: store,
		vault: vault,
		log:   logger.OrNop(log).Named("accounts"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount creates an account on behalf of sess. The role matrix is
// checked first, then the input in this order: username, uniqueness,
// password length, branch count. Area managers may only hand out their own
// branches.
func (r *Registry) CreateAccount(ctx context.Context, sess *auth.Session, req CreateAccountRequest) (*models.Account, error) {
	username := strings.TrimSpace(req.Username)
	branches := NormalizeBranches(req.Branches)

	var hash string
	var hashErr error
	if utf8.RuneCountInString(req.Password) >= MinPasswordLength {
		hash, hashErr = r.vault.Hash(req.Password)
	}

	var created *models.Account
	err := r.store.Update(ctx, func(snap *models.Snapshot) error {
		creator, err := auth.Resolve(snap, sess)
		if err != nil {
			return err
		}
		if !req.Role.Valid() {
			return apperr.New(apperr.InvalidInput, "unknown role %q", req.Role)
		}
		if !auth.CanCreate(creator.Role, req.Role) {
			return apperr.New(apperr.PermissionDenied, "%s may not create %s accounts", creator.Role, req.Role)
		}
		if username == "" {
			return apperr.New(apperr.InvalidInput, "username is required")
		}
		if _, exists := snap.Users[username]; exists {
			return apperr.New(apperr.DuplicateUsername, "username %q already exists", username)
		}
		if utf8.RuneCountInString(req.Password) < MinPasswordLength {
			return apperr.New(apperr.WeakPassword, "password must be at least %d characters", MinPasswordLength)
		}
		if err := checkBranches(req.Role, branches); err != nil {
			return err
		}
		if !auth.CanAssignBranches(creator, branches) {
			return apperr.New(apperr.PermissionDenied, "%s may only assign their own branches", creator.Username)
		}
		if hashErr != nil {
			return hashErr
		}
		created = &models.Account{
			Username:         username,
			PasswordHash:     hash,
			Role:             req.Role,
			AssignedBranches: branches,
			CreatedBy:        creator.Username,
			CreatedAt:        r.now(),
		}
		snap.Users[username] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("account created",
		zap.String("username", created.Username),
		zap.String("role", string(created.Role)),
		zap.Strings("branches", created.AssignedBranches),
		zap.String("created_by", created.CreatedBy))
	return created.Redacted(), nil
}

func checkBranches(role models.Role, branches []string) error {
	switch role {
	case models.RoleBranch:
		if len(branches) != 1 {
			return apperr.New(apperr.InvalidBranchAssignment, "a branch account needs exactly one branch, got %d", len(branches))
		}
	case models.RoleAreaManager:
		if len(branches) == 0 {
			return apperr.New(apperr.InvalidBranchAssignment, "an area manager needs at least one branch")
		}
	case models.RoleAGM, models.RoleAdmin:
		if len(branches) != 0 {
			return apperr.New(apperr.InvalidBranchAssignment, "%s accounts act on every branch and take none", role)
		}
	}
	return nil
}

// NormalizeBranches trims names, drops empty entries and duplicates, and
// keeps the first-seen order.
func NormalizeBranches(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Authenticate checks a username and password and returns the session.
// The two failure kinds stay distinct; callers facing users should show one
// generic message for both.
func (r *Registry) Authenticate(ctx context.Context, username, password string) (*auth.Session, error) {
	snap, err := repository.LoadForRead(ctx, r.store)
	if err != nil {
		return nil, err
	}
	acc, ok := snap.Users[strings.TrimSpace(username)]
	if !ok {
		r.log.Info("login failed", zap.String("username", username), zap.String("reason", "unknown user"))
		return nil, apperr.New(apperr.UnknownUser, "unknown user %q", username)
	}
	if !r.vault.Verify(password, acc.PasswordHash) {
		r.log.Info("login failed", zap.String("username", acc.Username), zap.String("reason", "bad password"))
		return nil, apperr.New(apperr.InvalidCredentials, "invalid credentials")
	}
	r.log.Debug("login", zap.String("username", acc.Username), zap.String("role", string(acc.Role)))
	return auth.NewSession(acc), nil
}

var errAlreadyPresent = errors.New("account already present")

// Bootstrap creates the admin account when no account of that name exists.
// It reports whether an account was created and is safe to call repeatedly.
func (r *Registry) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, apperr.New(apperr.InvalidInput, "bootstrap username is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return false, apperr.New(apperr.WeakPassword, "bootstrap password must be at least %d characters", MinPasswordLength)
	}
	snap, err := repository.LoadForRead(ctx, r.store)
	if err != nil {
		return false, err
	}
	if _, ok := snap.Users[username]; ok {
		return false, nil
	}
	hash, err := r.vault.Hash(password)
	if err != nil {
		return false, err
	}
	err = r.store.Update(ctx, func(snap *models.Snapshot) error {
		if _, ok := snap.Users[username]; ok {
			return errAlreadyPresent
		}
		snap.Users[username] = &models.Account{
			Username:         username,
			PasswordHash:     hash,
			Role:             models.RoleAdmin,
			AssignedBranches: []string{},
			CreatedBy:        "system",
			CreatedAt:        r.now(),
		}
		return nil
	})
	if errors.Is(err, errAlreadyPresent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	r.log.Info("default admin account created", zap.String("username", username))
	return true, nil
}

// Get returns one account inside the caller's scope, without its hash.
func (r *Registry) Get(ctx context.Context, sess *auth.Session, username string) (*models.Account, error) {
	snap, err := repository.LoadForRead(ctx, r.store)
	if err != nil {
		return nil, err
	}
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return nil, err
	}
	target, ok := snap.Users[username]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "account %q not found", username)
	}
	if !auth.CanViewAccount(actor, target) {
		return nil, apperr.New(apperr.PermissionDenied, "account %q is outside your scope", username)
	}
	return target.Redacted(), nil
}

// List returns the accounts inside the caller's scope in creation order,
// without hashes.
func (r *Registry) List(ctx context.Context, sess *auth.Session) ([]*models.Account, error) {
	snap, err := repository.LoadForRead(ctx, r.store)
	if err != nil {
		return nil, err
	}
	actor, err := auth.Resolve(snap, sess)
	if err != nil {
		return nil, err
	}
	var out []*models.Account
	for _, a := range snap.AccountsInOrder() {
		if auth.CanViewAccount(actor, a) {
			out = append(out, a.Redacted())
		}
	}
	return out, nil
}
