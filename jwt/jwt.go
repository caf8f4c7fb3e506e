package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ShopAPI/cache"
	"ShopAPI/models"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionRevoked = errors.New("session revoked")
)

type Claims struct {
	UserID string      `json:"userID"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
	sessions   *cache.Sessions
	now        func() time.Time
}

func NewManager(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, ttl time.Duration, sessions *cache.Sessions) *Manager {
	return &Manager{
		privateKey: privateKey,
		publicKey:  publicKey,
		ttl:        ttl,
		sessions:   sessions,
		now:        time.Now,
	}
}

// 讀取私鑰
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(keyBytes)
}

// 讀取公鑰
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(keyBytes)
}

// LoadKeys 從PEM檔讀取金鑰，兩個路徑都沒設定時產生臨時金鑰(重啟後舊Token全部失效)
func LoadKeys(privateKeyPath, publicKeyPath string) (*rsa.PrivateKey, *rsa.PublicKey, bool, error) {
	if privateKeyPath == "" && publicKeyPath == "" {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, nil, false, err
		}
		return key, &key.PublicKey, true, nil
	}

	privateKey, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, nil, false, fmt.Errorf("load private key: %w", err)
	}
	publicKey, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, nil, false, fmt.Errorf("load public key: %w", err)
	}
	return privateKey, publicKey, false, nil
}

// GenerateToken 生成JWT Token並登記Session
func (m *Manager) GenerateToken(ctx context.Context, user *models.User) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", nil, err
	}

	if err := m.sessions.Create(ctx, claims.ID, user.ID, m.ttl); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	return tokenString, claims, nil
}

// VerifyToken 驗證簽章與期限，並確認Session尚未登出
func (m *Manager) VerifyToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	//從Redis檢查Session是否已刪除
	userID, err := m.sessions.UserID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if userID != claims.UserID {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// RevokeToken 登出目前的Token
func (m *Manager) RevokeToken(ctx context.Context, claims *Claims) error {
	return m.sessions.Revoke(ctx, claims.ID, claims.UserID)
}

// RevokeUser 登出使用者所有Token
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	return m.sessions.RevokeUser(ctx, userID)
}
