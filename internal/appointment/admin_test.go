package appointment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminDirectoryLogin(t *testing.T) {
	admins, err := NewAdminDirectory("admin", "admin123")
	require.NoError(t, err)
	ctx := context.Background()

	admin, err := admins.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Username)
	assert.NotEqual(t, []byte("admin123"), admin.PasswordHash)

	_, err = admins.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = admins.Login(ctx, "root", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = admins.Get(ctx, "root")
	assert.ErrorIs(t, err, ErrAdminNotFound)
}
