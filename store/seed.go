package store

import (
	"context"
	"errors"

	"ShopAPI/models"
)

// EnsureAdmin 建立管理員帳號，已存在時將其權限提升為admin，不修改密碼
func EnsureAdmin(ctx context.Context, users Users, name, email, password string) (*models.User, bool, error) {
	email = models.NormalizeEmail(email)
	existing, err := users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return existing, false, nil
		}
		existing.Role = models.RoleAdmin
		if err := users.UpdateUser(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	admin := &models.User{Name: name, Email: email, Role: models.RoleAdmin}
	if err := admin.SetPassword(password); err != nil {
		return nil, false, err
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		return nil, false, err
	}
	return admin, true, nil
}
