package config

import (
	"fmt"
	"log"
	"time"

	"libraryhub_go/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DatabaseConfig holds connection settings
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Charset  string
	// Path is the SQLite file when Driver is "sqlite".
	Path     string
	LogLevel logger.LogLevel
}

// GetDatabaseConfig reads the database settings from the environment
func GetDatabaseConfig() *DatabaseConfig {
	cfg := &DatabaseConfig{
		Driver:   GetEnv("DB_DRIVER", "mysql"),
		Host:     GetEnv("DB_HOST", "localhost"),
		Port:     GetEnv("DB_PORT", "3306"),
		User:     GetEnv("DB_USER", "root"),
		Password: GetEnv("DB_PASSWORD", ""),
		DBName:   GetEnv("DB_NAME", "libraryhub"),
		Charset:  GetEnv("DB_CHARSET", "utf8mb4"),
		Path:     GetEnv("DB_PATH", "libraryhub.db"),
		LogLevel: logger.Silent,
	}
	if GetEnv("GIN_MODE", "release") == "debug" {
		cfg.LogLevel = logger.Info
	}

	log.Printf("Database config: driver=%s host=%s port=%s user=%s db=%s password=%s",
		cfg.Driver, cfg.Host, cfg.Port, cfg.User, cfg.DBName, maskPassword(cfg.Password))
	return cfg
}

// maskPassword keeps only the first two characters
func maskPassword(pwd string) string {
	if len(pwd) == 0 {
		return "(empty)"
	}
	if len(pwd) <= 2 {
		return "***"
	}
	return pwd[:2] + "***"
}

// DSN builds the driver specific connection string
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.Charset)
}

// OpenDatabase opens a connection without touching the DB global
func OpenDatabase(cfg *DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
		// borrow records keep dangling book ids after a catalog delete
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// InitDatabase connects and stores the handle in DB
func InitDatabase(cfg *DatabaseConfig) error {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return err
	}
	DB = db
	log.Println("Database connected successfully")
	return nil
}

// AutoMigrate creates or updates every table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Admin{},
		&models.Book{},
		&models.Student{},
		&models.BorrowRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// CloseDatabase closes the DB global
func CloseDatabase() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
