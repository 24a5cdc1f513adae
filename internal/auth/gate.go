// Package auth is the access gate: it authenticates users against stored
// bcrypt hashes and authorizes sensitive operations through a closed
// capability table instead of role strings scattered across call sites.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"go-retail-core/internal/models"
)

// ErrAuthFailure covers both unknown users and wrong passwords; callers
// cannot tell the two apart.
var ErrAuthFailure = errors.New("invalid credentials")

// UnauthorizedError names the refused operation.
type UnauthorizedError struct {
	Operation Operation
	Role      models.Role
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("role %q is not allowed to perform %s", e.Role, e.Operation)
}

// Operation is a gated action.
type Operation string

const (
	OpCreateInvoice   Operation = "invoice.create"
	OpManageCatalog   Operation = "catalog.manage"
	OpViewReports     Operation = "reports.view"
	OpCreateSnapshot  Operation = "backup.create"
	OpRestoreSnapshot Operation = "backup.restore"
	OpManageSettings  Operation = "settings.manage"
	OpManageUsers     Operation = "users.manage"
)

// capabilities is the complete authorization policy. Anything not listed for
// a role is denied.
var capabilities = map[models.Role]map[Operation]bool{
	models.RoleAdmin: {
		OpCreateInvoice:   true,
		OpManageCatalog:   true,
		OpViewReports:     true,
		OpCreateSnapshot:  true,
		OpRestoreSnapshot: true,
		OpManageSettings:  true,
		OpManageUsers:     true,
	},
	models.RoleUser: {
		OpCreateInvoice:  true,
		OpManageCatalog:  true,
		OpViewReports:    true,
		OpCreateSnapshot: true,
	},
}

// Session is a successfully authenticated login.
type Session struct {
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type Gate struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	log    *logrus.Logger
}

func NewGate(db *gorm.DB, secret string, ttl time.Duration, log *logrus.Logger) *Gate {
	return &Gate{db: db, secret: []byte(secret), ttl: ttl, log: log}
}

// Authenticate verifies the password against the stored hash, stamps
// last_login and issues a signed session token.
func (g *Gate) Authenticate(username, password string) (*Session, error) {
	var user models.User
	if err := g.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuthFailure
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		g.log.WithField("username", username).Warn("failed login attempt")
		return nil, ErrAuthFailure
	}

	now := time.Now().UTC()
	lastLogin := now.Format(time.RFC3339)
	err := g.db.Model(&models.User{}).Where("username = ?", username).
		Update("last_login", lastLogin).Error
	if err != nil {
		return nil, fmt.Errorf("record last login: %w", err)
	}

	expires := now.Add(g.ttl)
	token, err := g.signToken(user.Username, user.Role, expires)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &Session{
		Username:  user.Username,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: expires,
	}, nil
}

// Authorize checks the capability table. It returns *UnauthorizedError when
// the role may not perform the operation.
func (g *Gate) Authorize(role models.Role, op Operation) error {
	if capabilities[role][op] {
		return nil
	}
	return &UnauthorizedError{Operation: op, Role: role}
}

// CreateUser provisions an account with a bcrypt password hash.
func (g *Gate) CreateUser(username, password string, role models.Role) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Username: username, PasswordHash: string(hash), Role: role}
	if err := g.db.Create(&user).Error; err != nil {
		return fmt.Errorf("create user %q: %w", username, err)
	}
	return nil
}

// SetPassword rotates a user's password hash.
func (g *Gate) SetPassword(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	result := g.db.Model(&models.User{}).Where("username = ?", username).
		Update("password_hash", string(hash))
	if result.Error != nil {
		return fmt.Errorf("update password for %q: %w", username, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no such user %q", username)
	}
	return nil
}

// ListUsers returns accounts without their hashes (the model hides them).
func (g *Gate) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := g.db.Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// EnsureDefaultAdmin seeds the admin/admin123 account on a fresh install so
// the owner can log in and change it. It does nothing once any user exists.
func (g *Gate) EnsureDefaultAdmin() error {
	var count int64
	if err := g.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := g.CreateUser("admin", "admin123", models.RoleAdmin); err != nil {
		return err
	}
	g.log.Warn("seeded default admin account; change its password")
	return nil
}
