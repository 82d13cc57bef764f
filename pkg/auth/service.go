// Package auth resolves request identities into persisted users.
// Authentication itself happens at the reverse proxy; this package trusts
// the identity headers it is handed and decides the role.
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ridgeline/intranet/pkg/observability"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// Service upserts users on sign-in and resolves their role from the
// configured admin email list.
type Service struct {
	db     *sql.DB
	logger *observability.Logger

	mu          sync.RWMutex
	adminEmails map[string]bool
}

// NewService creates an identity service with an initial admin email list.
func NewService(db *sql.DB, adminEmails []string, logger *observability.Logger) *Service {
	s := &Service{
		db:     db,
		logger: logger,
	}
	s.SetAdminEmails(adminEmails)
	return s
}

// SetAdminEmails replaces the admin email list. Safe to call while requests
// are being served; the watcher calls this on file change.
func (s *Service) SetAdminEmails(emails []string) {
	normalized := make(map[string]bool, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			normalized[email] = true
		}
	}
	s.mu.Lock()
	s.adminEmails = normalized
	s.mu.Unlock()
}

// IsAdminEmail reports whether the email is on the admin list.
func (s *Service) IsAdminEmail(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminEmails[strings.ToLower(strings.TrimSpace(email))]
}

// Resolve upserts the user for an authenticated identity and returns the
// persisted record. The role is re-resolved on every sign-in, so adding or
// removing an email from the admin list takes effect on the next request.
func (s *Service) Resolve(ctx context.Context, email, name, image string) (*wiki.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("empty identity email")
	}
	if name == "" {
		name = email
	}

	role := wiki.RoleStaff
	if s.IsAdminEmail(email) {
		role = wiki.RoleAdmin
	}

	user := &wiki.User{
		Email: email,
		Name:  name,
		Image: image,
		Role:  role,
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM users WHERE email = $1", email,
	).Scan(&user.ID, &user.CreatedAt)
	switch err {
	case nil:
		if _, err := s.db.ExecContext(ctx,
			"UPDATE users SET name = $1, image = $2, role = $3 WHERE id = $4",
			name, image, string(role), user.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	case sql.ErrNoRows:
		now := time.Now()
		user.CreatedAt = now
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO users (email, name, image, role, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, email, name, image, string(role), now).Scan(&user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.WithFields(map[string]interface{}{
			"email": email,
			"role":  string(role),
		}).Info("created user on first sign-in")
	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*wiki.User, error) {
	var user wiki.User
	var role string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, image, role, created_at FROM users WHERE id = $1", id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.Image, &role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d not found", id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Role = wiki.Role(role)
	return &user, nil
}
