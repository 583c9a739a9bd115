package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the variable or defaultValue when it is unset
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt returns an integer variable
func GetEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetEnvBool returns a boolean variable
func GetEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// GetEnvDuration returns a duration variable such as "15m" or "168h"
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvList splits a comma separated variable
func GetEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AppConfig aggregates everything the process reads from the environment.
type AppConfig struct {
	Server   *ServerConfig
	Database *DatabaseConfig
	Redis    *RedisConfig
	JWT      *JWTConfig
	Cookie   *CookieConfig

	CORSOrigins []string
	// RulesPath is an optional YAML file overriding the gamification tables.
	RulesPath string
	// Timezone decides where calendar days start for streaks and resets.
	Timezone string
	// UploadDir receives book cover images.
	UploadDir string
}

// CookieConfig controls the auth cookie.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite string
	MaxAge   time.Duration
}

// Load reads the configuration. Call godotenv before it so .env values apply.
func Load() *AppConfig {
	server := GetServerConfig()
	return &AppConfig{
		Server:   server,
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
		JWT:      GetJWTConfig(),
		Cookie: &CookieConfig{
			Name:     "token",
			Secure:   server.Mode == "release" || GetEnvBool("COOKIE_SECURE", false),
			SameSite: GetEnv("COOKIE_SAMESITE", sameSiteFor(server.Mode)),
			MaxAge:   GetEnvDuration("COOKIE_MAX_AGE", 7*24*time.Hour),
		},
		CORSOrigins: GetEnvList("CORS_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://localhost:4173",
		}),
		RulesPath: GetEnv("GAMIFICATION_RULES", ""),
		Timezone:  GetEnv("APP_TIMEZONE", "Local"),
		UploadDir: GetEnv("UPLOAD_DIR", "./uploads"),
	}
}

// Location resolves Timezone, falling back to the local zone.
func (c *AppConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func sameSiteFor(mode string) string {
	if mode == "release" {
		return "none"
	}
	return "lax"
}
