package auth_test

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go-retail-core/internal/auth"
	"go-retail-core/internal/database"
	"go-retail-core/internal/models"
)

func newGate(t *testing.T) (*auth.Gate, *gorm.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return auth.NewGate(db, "test-secret", time.Hour, log), db
}

func TestAuthenticate(t *testing.T) {
	gate, db := newGate(t)
	require.NoError(t, gate.CreateUser("meera", "s3cret!", models.RoleUser))

	session, err := gate.Authenticate("meera", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "meera", session.Username)
	assert.Equal(t, models.RoleUser, session.Role)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	// last_login is stamped on success
	var user models.User
	require.NoError(t, db.Where("username = ?", "meera").First(&user).Error)
	require.NotNil(t, user.LastLogin)
	_, err = time.Parse(time.RFC3339, *user.LastLogin)
	assert.NoError(t, err)

	// wrong password and unknown user are indistinguishable
	_, err = gate.Authenticate("meera", "wrong")
	assert.ErrorIs(t, err, auth.ErrAuthFailure)
	_, err = gate.Authenticate("nobody", "s3cret!")
	assert.ErrorIs(t, err, auth.ErrAuthFailure)
}

func TestTokenRoundTrip(t *testing.T) {
	gate, _ := newGate(t)
	require.NoError(t, gate.CreateUser("meera", "s3cret!", models.RoleAdmin))

	session, err := gate.Authenticate("meera", "s3cret!")
	require.NoError(t, err)

	claims, err := gate.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "meera", claims.Username)
	assert.Equal(t, string(models.RoleAdmin), claims.Role)

	_, err = gate.ValidateToken(session.Token + "tampered")
	assert.Error(t, err)

	// a token signed with a different secret is rejected
	log := logrus.New()
	log.SetOutput(io.Discard)
	otherDB, err := database.Open(filepath.Join(t.TempDir(), "other.db"))
	require.NoError(t, err)
	other := auth.NewGate(otherDB, "another-secret", time.Hour, log)
	_, err = other.ValidateToken(session.Token)
	assert.Error(t, err)
}

func TestAuthorize_CapabilityTable(t *testing.T) {
	gate, _ := newGate(t)

	adminOps := []auth.Operation{
		auth.OpCreateInvoice, auth.OpManageCatalog, auth.OpViewReports,
		auth.OpCreateSnapshot, auth.OpRestoreSnapshot, auth.OpManageSettings, auth.OpManageUsers,
	}
	for _, op := range adminOps {
		assert.NoError(t, gate.Authorize(models.RoleAdmin, op), "admin %s", op)
	}

	userAllowed := []auth.Operation{
		auth.OpCreateInvoice, auth.OpManageCatalog, auth.OpViewReports, auth.OpCreateSnapshot,
	}
	for _, op := range userAllowed {
		assert.NoError(t, gate.Authorize(models.RoleUser, op), "user %s", op)
	}

	userDenied := []auth.Operation{
		auth.OpRestoreSnapshot, auth.OpManageSettings, auth.OpManageUsers,
	}
	for _, op := range userDenied {
		err := gate.Authorize(models.RoleUser, op)
		var unauthorized *auth.UnauthorizedError
		require.ErrorAs(t, err, &unauthorized, "user %s", op)
		assert.Equal(t, op, unauthorized.Operation)
		assert.Equal(t, models.RoleUser, unauthorized.Role)
	}

	// unknown roles hold no capabilities at all
	assert.Error(t, gate.Authorize(models.Role("superuser"), auth.OpCreateInvoice))
}

func TestCreateUser_Validation(t *testing.T) {
	gate, _ := newGate(t)

	assert.Error(t, gate.CreateUser("", "pw", models.RoleUser))
	assert.Error(t, gate.CreateUser("u", "", models.RoleUser))
	assert.Error(t, gate.CreateUser("u", "pw", models.Role("owner")))

	require.NoError(t, gate.CreateUser("u", "pw", models.RoleUser))
	assert.Error(t, gate.CreateUser("u", "pw2", models.RoleUser), "duplicate username")
}

func TestSetPassword(t *testing.T) {
	gate, _ := newGate(t)
	require.NoError(t, gate.CreateUser("meera", "old", models.RoleUser))

	require.NoError(t, gate.SetPassword("meera", "new"))

	_, err := gate.Authenticate("meera", "old")
	assert.ErrorIs(t, err, auth.ErrAuthFailure)
	_, err = gate.Authenticate("meera", "new")
	assert.NoError(t, err)

	assert.Error(t, gate.SetPassword("nobody", "pw"))
}

func TestEnsureDefaultAdmin(t *testing.T) {
	gate, db := newGate(t)

	require.NoError(t, gate.EnsureDefaultAdmin())
	require.NoError(t, gate.EnsureDefaultAdmin()) // idempotent

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	session, err := gate.Authenticate("admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, session.Role)

	// does not reseed once any account exists, even a non-admin one
	require.NoError(t, db.Exec("DELETE FROM users").Error)
	require.NoError(t, gate.CreateUser("meera", "pw", models.RoleUser))
	require.NoError(t, gate.EnsureDefaultAdmin())

	users, err := gate.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "meera", users[0].Username)
}
