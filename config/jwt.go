package config

import (
	"errors"
	"fmt"
	"time"

	"libraryhub_go/models"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig holds token settings
type JWTConfig struct {
	SecretKey      string
	ExpirationTime time.Duration
	Issuer         string
}

// GetJWTConfig reads token settings from the environment
func GetJWTConfig() *JWTConfig {
	return &JWTConfig{
		SecretKey:      GetEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		ExpirationTime: GetEnvDuration("JWT_EXPIRATION", 7*24*time.Hour),
		Issuer:         "libraryhub",
	}
}

// Claims carries the subject id and its role
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies session tokens
type JWTService struct {
	config *JWTConfig
	now    func() time.Time
}

// NewJWTService creates a service for cfg
func NewJWTService(cfg *JWTConfig) *JWTService {
	return &JWTService{
		config: cfg,
		now:    time.Now,
	}
}

// GenerateToken signs a token for subject. The jti lets logout revoke it.
func (s *JWTService) GenerateToken(subject string, role models.Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("cannot sign token for role %d", int(role))
	}
	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        fmt.Sprintf("%s-%d", subject, now.UnixNano()),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.ExpirationTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.SecretKey))
}

// ValidateToken verifies the signature and expiry of tokenString
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.SecretKey), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.Role.Valid() {
		return nil, errors.New("invalid token role")
	}

	return claims, nil
}

// Expiration is the configured token lifetime
func (s *JWTService) Expiration() time.Duration {
	return s.config.ExpirationTime
}
