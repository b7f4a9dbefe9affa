package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin access is not configured")
)

// Argon2id parameters for newly hashed passwords.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// Claims are the JWT claims issued to the operator.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AdminConfig configures operator login.
type AdminConfig struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

// AdminAuth authenticates the single operator account and issues tokens.
type AdminAuth struct {
	username     string
	passwordHash string
	secret       []byte
	ttl          time.Duration
	logger       *zap.Logger
}

// NewAdminAuth creates the authenticator. Login is refused when no
// credentials or secret are configured.
func NewAdminAuth(cfg AdminConfig, logger *zap.Logger) *AdminAuth {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	return &AdminAuth{
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		secret:       []byte(cfg.JWTSecret),
		ttl:          cfg.TokenTTL,
		logger:       logger,
	}
}

// Enabled reports whether admin login is possible.
func (a *AdminAuth) Enabled() bool {
	return a.username != "" && a.passwordHash != "" && len(a.secret) > 0
}

// Login verifies the operator credentials and returns a signed token.
func (a *AdminAuth) Login(username, password string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrAdminDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := VerifyPassword(a.passwordHash, password)
	if !userOK || !passOK {
		a.logger.Warn("Admin login rejected", zap.String("username", username))
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := time.Now()
	expirationTime := now.Add(a.ttl)
	claims := &Claims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	a.logger.Info("Admin logged in", zap.String("username", username))
	return tokenString, expirationTime, nil
}

// ParseToken validates a bearer token and returns its claims.
func (a *AdminAuth) ParseToken(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrAdminDisabled
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// HashPassword hashes password with Argon2id in the PHC string format.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword compares password with an encoded Argon2id hash.
func VerifyPassword(encoded, password string) bool {
	// ["", "argon2id", "v=19", "m=65536,t=1,p=4", salt, hash]
	sections := strings.Split(encoded, "$")
	if len(sections) != 6 || sections[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(sections[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(sections[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(sections[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
