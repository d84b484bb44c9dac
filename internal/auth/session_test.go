package auth

import (
	"testing"
	"time"

	"customerIntake/internal/apperr"
	"customerIntake/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestNewSession_CopiesBranches(t *testing.T) {
	acc := account("m1", models.RoleAreaManager, "North")
	s := NewSession(acc)
	s.Branches[0] = "South"
	assert.Equal(t, "North", acc.AssignedBranches[0])
	assert.Nil(t, NewSession(nil))
}

func TestResolve_UsesStoredAccount(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Users["m1"] = account("m1", models.RoleAreaManager, "North")

	// The session claims more than the store grants.
	forged := &Session{Username: "m1", Role: models.RoleAdmin}
	acc, err := Resolve(snap, forged)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAreaManager, acc.Role)

	_, err = Resolve(snap, &Session{Username: "ghost", Role: models.RoleAdmin})
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
	_, err = Resolve(snap, nil)
	assert.True(t, apperr.Is(err, apperr.PermissionDenied))
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	iss, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	tok, exp, err := iss.Issue(&Session{Username: "m1", Role: models.RoleAreaManager, Branches: []string{"North"}})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	s, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "m1", s.Username)
	assert.Equal(t, models.RoleAreaManager, s.Role)
	assert.Equal(t, []string{"North"}, s.Branches)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	iss, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	tok, _, err := iss.Issue(&Session{Username: "a1", Role: models.RoleAGM})
	require.NoError(t, err)

	other, err := NewTokenIssuer("wrong", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(tok)
	assert.True(t, apperr.Is(err, apperr.InvalidCredentials))

	_, err = iss.Parse("not-a-token")
	assert.True(t, apperr.Is(err, apperr.InvalidCredentials))

	old, err := NewTokenIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	old.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := old.Issue(&Session{Username: "a1", Role: models.RoleAGM})
	require.NoError(t, err)
	_, err = iss.Parse(expired)
	assert.True(t, apperr.Is(err, apperr.InvalidCredentials))

	_, _, err = iss.Issue(&Session{})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
}
