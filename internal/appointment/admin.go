package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminDirectory holds the admin accounts seeded at start. It is read-only
// afterwards.
//
// Login is a placeholder username/password check, not an authentication
// boundary; it issues no session.
type AdminDirectory struct {
	admins map[string]Admin
}

// NewAdminDirectory seeds one admin. The password is kept only as a bcrypt hash.
func NewAdminDirectory(username, password string) (*AdminDirectory, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	admin := Admin{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
	}
	return &AdminDirectory{admins: map[string]Admin{username: admin}}, nil
}

func (d *AdminDirectory) Get(ctx context.Context, username string) (*Admin, error) {
	admin, ok := d.admins[username]
	if !ok {
		return nil, ErrAdminNotFound
	}
	return &admin, nil
}

func (d *AdminDirectory) Login(ctx context.Context, username, password string) (*Admin, error) {
	admin, err := d.Get(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(admin.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}
