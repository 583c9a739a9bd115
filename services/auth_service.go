package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"libraryhub_go/config"
	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthConfig limits failed logins per account and client address
type AuthConfig struct {
	MaxLoginAttempts   int
	LoginBlockDuration time.Duration
}

// DefaultAuthConfig allows 5 failures per 15 minutes
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		MaxLoginAttempts:   5,
		LoginBlockDuration: 15 * time.Minute,
	}
}

// ErrTooManyAttempts is returned while an account is locked out
var ErrTooManyAttempts = newError(ErrUnauthorized, "Too many failed login attempts, please try again later")

// AuthService logs admins and students in and out
type AuthService struct {
	db         *gorm.DB
	rdb        *redis.Client
	jwtService *config.JWTService
	authConfig *AuthConfig
}

// NewAuthService creates the service. rdb may be nil, which disables
// revocation and the failed login counter.
func NewAuthService(db *gorm.DB, rdb *redis.Client, jwtService *config.JWTService) *AuthService {
	return &AuthService{
		db:         db,
		rdb:        rdb,
		jwtService: jwtService,
		authConfig: DefaultAuthConfig(),
	}
}

// AdminLoginRequest is the admin credential pair
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// StudentLoginRequest is the student credential pair
type StudentLoginRequest struct {
	EnrollmentNumber string `json:"enrollmentNumber" binding:"required"`
	Password         string `json:"password" binding:"required"`
}

// CreateAdminRequest creates a staff account
type CreateAdminRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

// AdminLogin checks admin credentials and returns a signed token
func (as *AuthService) AdminLogin(ctx context.Context, req *AdminLoginRequest, clientIP string) (*models.Admin, string, error) {
	identity := "admin:" + strings.ToLower(req.Email)
	if err := as.checkAttempts(ctx, identity, clientIP); err != nil {
		return nil, "", err
	}

	var admin models.Admin
	if err := as.db.WithContext(ctx).Where("email = ?", strings.ToLower(req.Email)).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			as.recordFailure(ctx, identity, clientIP, "admin not found")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		as.recordFailure(ctx, identity, clientIP, "invalid password")
		return nil, "", ErrInvalidCredentials
	}

	token, err := as.jwtService.GenerateToken(admin.ID, models.RoleAdmin)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	as.clearFailures(ctx, identity, clientIP)
	middleware.InfoLogger("admin logged in", zap.String("admin_id", admin.ID))
	return &admin, token, nil
}

// StudentLogin checks student credentials and returns a signed token
func (as *AuthService) StudentLogin(ctx context.Context, req *StudentLoginRequest, clientIP string) (*models.Student, string, error) {
	identity := "student:" + req.EnrollmentNumber
	if err := as.checkAttempts(ctx, identity, clientIP); err != nil {
		return nil, "", err
	}

	student, err := loadStudentByEnrollment(as.db.WithContext(ctx), req.EnrollmentNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			as.recordFailure(ctx, identity, clientIP, "student not found")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(student.Password), []byte(req.Password)); err != nil {
		as.recordFailure(ctx, identity, clientIP, "invalid password")
		return nil, "", ErrInvalidCredentials
	}

	token, err := as.jwtService.GenerateToken(student.ID, models.RoleStudent)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	as.clearFailures(ctx, identity, clientIP)
	middleware.InfoLogger("student logged in", zap.String("student_id", student.ID))
	return student, token, nil
}

// Logout revokes token for the rest of its lifetime. Tokens that no longer
// verify are ignored.
func (as *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" || as.rdb == nil {
		return nil
	}
	claims, err := as.jwtService.ValidateToken(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := as.rdb.Set(ctx, blacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Verify validates token and rejects revoked ones
func (as *AuthService) Verify(ctx context.Context, token string) (string, models.Role, error) {
	claims, err := as.jwtService.ValidateToken(token)
	if err != nil {
		return "", 0, err
	}
	if as.rdb != nil {
		n, err := as.rdb.Exists(ctx, blacklistKey(claims.ID)).Result()
		if err != nil {
			middleware.WarnLogger("token blacklist lookup failed", zap.Error(err))
		} else if n > 0 {
			return "", 0, ErrTokenRevoked
		}
	}
	return claims.Subject, claims.Role, nil
}

// CreateAdmin stores a staff account with a hashed password
func (as *AuthService) CreateAdmin(ctx context.Context, req *CreateAdminRequest) (*models.Admin, error) {
	db := as.db.WithContext(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := db.Model(&models.Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, Conflictf("Admin with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := models.Admin{Name: strings.TrimSpace(req.Name), Email: email, Password: string(hash)}
	if err := db.Create(&admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return &admin, nil
}

func blacklistKey(jti string) string {
	return "token:blacklist:" + jti
}

func loginLimitKey(identity, clientIP string) string {
	return fmt.Sprintf("login:limit:%s:%s", identity, clientIP)
}

func (as *AuthService) checkAttempts(ctx context.Context, identity, clientIP string) error {
	if as.rdb == nil {
		return nil
	}
	attempts, err := as.rdb.Get(ctx, loginLimitKey(identity, clientIP)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.WarnLogger("login attempt lookup failed", zap.Error(err))
		return nil
	}
	if attempts >= as.authConfig.MaxLoginAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (as *AuthService) recordFailure(ctx context.Context, identity, clientIP, reason string) {
	middleware.WarnLogger("login failed",
		zap.String("identity", identity),
		zap.String("ip", clientIP),
		zap.String("reason", reason),
	)
	if as.rdb == nil {
		return
	}
	key := loginLimitKey(identity, clientIP)
	pipe := as.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, as.authConfig.LoginBlockDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.WarnLogger("failed to record login failure", zap.Error(err))
	}
}

func (as *AuthService) clearFailures(ctx context.Context, identity, clientIP string) {
	if as.rdb == nil {
		return
	}
	as.rdb.Del(ctx, loginLimitKey(identity, clientIP))
}
