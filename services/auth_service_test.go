package services

import (
	"context"
	"testing"
	"time"

	"libraryhub_go/config"
	"libraryhub_go/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestAuth(t *testing.T, db *gorm.DB, rdb *redis.Client) *AuthService {
	t.Helper()
	jwtService := config.NewJWTService(&config.JWTConfig{
		SecretKey:      "test-secret",
		ExpirationTime: time.Hour,
		Issuer:         "libraryhub",
	})
	return NewAuthService(db, rdb, jwtService)
}

func TestAdminLogin(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db, nil)
	ctx := context.Background()

	admin, err := auth.CreateAdmin(ctx, &CreateAdminRequest{Name: "Root", Email: "Root@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", admin.Email)

	_, err = auth.CreateAdmin(ctx, &CreateAdminRequest{Name: "Again", Email: "root@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrConflict)

	logged, token, err := auth.AdminLogin(ctx, &AdminLoginRequest{Email: "ROOT@example.com", Password: "secret1"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, logged.ID)
	assert.NotEmpty(t, token)

	subject, role, err := auth.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, subject)
	assert.Equal(t, models.RoleAdmin, role)

	_, _, err = auth.AdminLogin(ctx, &AdminLoginRequest{Email: "root@example.com", Password: "wrong"}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = auth.AdminLogin(ctx, &AdminLoginRequest{Email: "nobody@example.com", Password: "secret1"}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStudentLogin(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db, nil)
	students := NewStudentService(db, nil)
	ctx := context.Background()

	created, err := students.CreateStudent(ctx, &CreateStudentRequest{
		Name:             "Asha",
		EnrollmentNumber: "EN001",
		Password:         "secret1",
	})
	require.NoError(t, err)

	student, token, err := auth.StudentLogin(ctx, &StudentLoginRequest{EnrollmentNumber: "EN001", Password: "secret1"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, student.ID)

	subject, role, err := auth.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, subject)
	assert.Equal(t, models.RoleStudent, role)

	_, _, err = auth.StudentLogin(ctx, &StudentLoginRequest{EnrollmentNumber: "EN001", Password: "nope"}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = auth.StudentLogin(ctx, &StudentLoginRequest{EnrollmentNumber: "EN404", Password: "secret1"}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	auth := newTestAuth(t, db, rdb)
	ctx := context.Background()

	_, err := auth.CreateAdmin(ctx, &CreateAdminRequest{Name: "Root", Email: "root@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, token, err := auth.AdminLogin(ctx, &AdminLoginRequest{Email: "root@example.com", Password: "secret1"}, "10.0.0.1")
	require.NoError(t, err)

	_, _, err = auth.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, token))
	_, _, err = auth.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "token:blacklist:")
	assert.True(t, mr.TTL(keys[0]) > 0)
	assert.True(t, mr.TTL(keys[0]) <= time.Hour)

	// garbage tokens are ignored on logout but rejected on verify
	assert.NoError(t, auth.Logout(ctx, "not-a-token"))
	_, _, err = auth.Verify(ctx, "not-a-token")
	assert.Error(t, err)
}

func TestLoginLockout(t *testing.T) {
	db := newTestDB(t)
	rdb, mr := newTestRedis(t)
	auth := newTestAuth(t, db, rdb)
	ctx := context.Background()

	_, err := auth.CreateAdmin(ctx, &CreateAdminRequest{Name: "Root", Email: "root@example.com", Password: "secret1"})
	require.NoError(t, err)

	bad := &AdminLoginRequest{Email: "root@example.com", Password: "wrong"}
	for i := 0; i < 5; i++ {
		_, _, err = auth.AdminLogin(ctx, bad, "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	good := &AdminLoginRequest{Email: "root@example.com", Password: "secret1"}
	_, _, err = auth.AdminLogin(ctx, good, "10.0.0.1")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// another address is not locked out, and success clears its counter
	_, _, err = auth.AdminLogin(ctx, bad, "10.0.0.2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.AdminLogin(ctx, good, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, mr.Exists(loginLimitKey("admin:root@example.com", "10.0.0.2")))

	mr.FastForward(16 * time.Minute)
	_, _, err = auth.AdminLogin(ctx, good, "10.0.0.1")
	assert.NoError(t, err)
}
