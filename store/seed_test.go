package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShopAPI/models"
	"ShopAPI/store"
	"ShopAPI/store/memstore"
)

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	admin, created, err := store.EnsureAdmin(ctx, s, "Admin", " Admin@Shop.test ", "password123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "admin@shop.test", admin.Email)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CheckPassword("password123"))

	again, created, err := store.EnsureAdmin(ctx, s, "Admin", "admin@shop.test", "different1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
	assert.True(t, again.CheckPassword("password123"))
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	user := &models.User{Name: "Jane", Email: "jane@shop.test", Role: models.RoleUser}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, s.CreateUser(ctx, user))

	promoted, created, err := store.EnsureAdmin(ctx, s, "Admin", "jane@shop.test", "ignored1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, promoted.ID)

	stored, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)
}
