package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the shared client. It stays nil when Redis is disabled.
var RedisClient *redis.Client

// RedisConfig holds connection settings
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// GetRedisConfig reads the Redis settings from the environment
func GetRedisConfig() *RedisConfig {
	return &RedisConfig{
		Enabled:  GetEnvBool("REDIS_ENABLED", true),
		Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
		Password: GetEnv("REDIS_PASSWORD", ""),
		DB:       GetEnvInt("REDIS_DB", 0),
	}
}

// InitializeRedis connects RedisClient
func InitializeRedis(cfg *RedisConfig) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("Redis client initialized successfully")
	return nil
}

// CloseRedis closes RedisClient
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// GetServerConfig reads the server settings from the environment
func GetServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            GetEnv("SERVER_PORT", "8080"),
		Mode:            GetEnv("GIN_MODE", "debug"),
		ReadTimeout:     GetEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    GetEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: GetEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// SetupRouter builds the engine with recovery and the health probe
func SetupRouter(cfg *ServerConfig) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", HealthHandler)

	return r
}

// HealthHandler reports database and Redis connectivity
func HealthHandler(c *gin.Context) {
	health := gin.H{
		"status":  "ok",
		"message": "Server is running",
	}

	if DB != nil {
		sqlDB, err := DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				health["database"] = "connected"
			} else {
				health["database"] = "disconnected"
			}
		} else {
			health["database"] = "error"
		}
	} else {
		health["database"] = "not initialized"
	}

	if RedisClient != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := RedisClient.Ping(ctx).Err(); err == nil {
			health["redis"] = "connected"
		} else {
			health["redis"] = "disconnected"
		}
	} else {
		health["redis"] = "not initialized"
	}

	c.JSON(http.StatusOK, health)
}

// StartServer serves r until SIGINT or SIGTERM, then drains connections
func StartServer(r *gin.Engine, cfg *ServerConfig) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s in %s mode", cfg.Port, cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
