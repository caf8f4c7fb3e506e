package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShopAPI/cache"
	"ShopAPI/models"
)

func newManager(t *testing.T) (*Manager, *rsa.PrivateKey) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewManager(key, &key.PublicKey, time.Hour, cache.NewSessions(rdb)), key
}

func TestGenerateAndVerify(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	user := &models.User{ID: "u1", Role: models.RoleAdmin}

	token, issued, err := m.GenerateToken(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestRevokeToken(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	token, claims, err := m.GenerateToken(ctx, &models.User{ID: "u1", Role: models.RoleUser})
	require.NoError(t, err)
	require.NoError(t, m.RevokeToken(ctx, claims))

	_, err = m.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRevokeUser(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	user := &models.User{ID: "u1", Role: models.RoleUser}

	first, _, err := m.GenerateToken(ctx, user)
	require.NoError(t, err)
	second, _, err := m.GenerateToken(ctx, user)
	require.NoError(t, err)

	require.NoError(t, m.RevokeUser(ctx, "u1"))
	for _, token := range []string{first, second} {
		_, err := m.VerifyToken(ctx, token)
		assert.ErrorIs(t, err, ErrSessionRevoked)
	}
}

func TestVerifyExpired(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	token, _, err := m.GenerateToken(ctx, &models.User{ID: "u1", Role: models.RoleUser})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherKeyAndAlgorithm(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	claims := &Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		ID:        "jti",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(other)
	require.NoError(t, err)
	_, err = m.VerifyToken(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.VerifyToken(ctx, hmac)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.VerifyToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoadKeys(t *testing.T) {
	private, public, ephemeral, err := LoadKeys("", "")
	require.NoError(t, err)
	assert.True(t, ephemeral)
	assert.Equal(t, &private.PublicKey, public)

	dir := t.TempDir()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privatePath := filepath.Join(dir, "private_key.pem")
	publicPath := filepath.Join(dir, "public_key.pem")

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(privatePath, pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0o600))
	require.NoError(t, os.WriteFile(publicPath, pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	}), 0o600))

	private, public, ephemeral, err = LoadKeys(privatePath, publicPath)
	require.NoError(t, err)
	assert.False(t, ephemeral)
	assert.True(t, key.Equal(private))
	assert.True(t, key.PublicKey.Equal(public))

	_, _, _, err = LoadKeys(filepath.Join(dir, "missing.pem"), publicPath)
	assert.Error(t, err)
}
