package middleware

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"libraryhub_go/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const accessLogStream = "access_logs"

var (
	logger           *zap.Logger
	accessLogChannel chan *AccessLog
)

// AccessLog is one served request
type AccessLog struct {
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Query      string    `json:"query,omitempty"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent,omitempty"`
	StatusCode int       `json:"status_code"`
	Latency    int64     `json:"latency_ms"`
	UserID     string    `json:"user_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// InitLogger builds the global logger and starts the access log workers
func InitLogger(mode string) error {
	var err error
	var zapConfig zap.Config

	if mode == "debug" || mode == "" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err = zapConfig.Build()
	if err != nil {
		return err
	}

	accessLogChannel = make(chan *AccessLog, 1000)
	startLogWorkers(3)

	return nil
}

// SetLogger replaces the global logger, mainly for tests
func SetLogger(l *zap.Logger) {
	logger = l
}

func startLogWorkers(workerCount int) {
	for i := 0; i < workerCount; i++ {
		go func() {
			for accessLog := range accessLogChannel {
				accessLog.process()
			}
		}()
	}
}

func (al *AccessLog) process() {
	logger.Info("access_log",
		zap.String("time", al.Time.Format(time.RFC3339)),
		zap.String("method", al.Method),
		zap.String("path", al.Path),
		zap.String("query", al.Query),
		zap.String("ip", al.IP),
		zap.String("user_agent", al.UserAgent),
		zap.Int("status_code", al.StatusCode),
		zap.Int64("latency_ms", al.Latency),
		zap.String("user_id", al.UserID),
		zap.String("role", al.Role),
		zap.String("request_id", al.RequestID),
		zap.String("error", al.Error),
	)

	if config.RedisClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	logData, _ := json.Marshal(al)
	err := config.RedisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: accessLogStream,
		MaxLen: 100000,
		Approx: true,
		Values: map[string]interface{}{
			"timestamp":   al.Time.Unix(),
			"method":      al.Method,
			"path":        al.Path,
			"status_code": al.StatusCode,
			"latency_ms":  al.Latency,
			"ip":          al.IP,
			"user_id":     al.UserID,
			"full_data":   string(logData),
		},
	}).Err()
	if err != nil {
		logger.Debug("access log stream write failed", zap.Error(err))
	}
}

// Logger returns the access log middleware
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		accessLog := &AccessLog{
			Time:       start,
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Query:      c.Request.URL.RawQuery,
			IP:         c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			StatusCode: c.Writer.Status(),
			Latency:    time.Since(start).Milliseconds(),
			UserID:     c.GetString(ContextUserID),
			RequestID:  requestID,
		}
		if role, ok := c.Get(ContextRole); ok {
			if s, ok := role.(interface{ String() string }); ok {
				accessLog.Role = s.String()
			}
		}
		if len(c.Errors) > 0 {
			accessLog.Error = c.Errors.String()
		}

		if accessLogChannel == nil {
			return
		}
		select {
		case accessLogChannel <- accessLog:
		default:
			log.Printf("Log channel is full, dropping log: %s %s", accessLog.Method, accessLog.Path)
		}
	}
}

// ErrorLogger logs at error level
func ErrorLogger(msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Error(msg, fields...)
	}
}

// WarnLogger logs at warn level
func WarnLogger(msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Warn(msg, fields...)
	}
}

// InfoLogger logs at info level
func InfoLogger(msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Info(msg, fields...)
	}
}

// DebugLogger logs at debug level
func DebugLogger(msg string, fields ...zap.Field) {
	if logger != nil {
		logger.Debug(msg, fields...)
	}
}

// FlushLogger syncs buffered entries
func FlushLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
