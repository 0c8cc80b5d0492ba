package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Service is a handle on the backing database used by the key-value store.
type Service interface {
	Health() map[string]string
	Close() error
}

// GormService is a Service backed by a GORM connection pool.
type GormService interface {
	Service
	GetDB() *gorm.DB
}

// SQLService is a Service backed by a plain database/sql pool.
type SQLService interface {
	Service
	SQL() *sql.DB
}

var (
	database = os.Getenv("BLUEPRINT_DB_DATABASE")
	password = os.Getenv("BLUEPRINT_DB_PASSWORD")
	username = os.Getenv("BLUEPRINT_DB_USERNAME")
	port     = os.Getenv("BLUEPRINT_DB_PORT")
	host     = os.Getenv("BLUEPRINT_DB_HOST")
)

// PostgresDSN builds the connection string from the BLUEPRINT_DB_* environment.
func PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, username, password, database, port)
}

type gormService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgres opens a GORM connection pool for dsn.
func NewPostgres(dsn string, zl *zap.Logger) (GormService, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &gormService{db: db, logger: zl}, nil
}

func (s *gormService) GetDB() *gorm.DB {
	return s.db
}

// Health check needs to use the underlying sql.DB from GORM
func (s *gormService) Health() map[string]string {
	sqlDB, err := s.db.DB()
	if err != nil {
		s.logger.Error("get db for health check", zap.Error(err))
		return map[string]string{
			"status": "down",
			"error":  fmt.Sprintf("failed to get underlying DB for health check: %v", err),
		}
	}
	stats := poolHealth(sqlDB, s.logger)
	stats["driver"] = "postgres"
	return stats
}

func (s *gormService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		s.logger.Error("get underlying sql.DB for closing", zap.Error(err))
		return err
	}
	s.logger.Info("closing connection pool", zap.String("database", database))
	return sqlDB.Close()
}

type sqliteService struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLite opens (creating if needed) the SQLite database file at path.
func NewSQLite(path string, zl *zap.Logger) (SQLService, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	return &sqliteService{db: db, path: path, logger: zl}, nil
}

func (s *sqliteService) SQL() *sql.DB {
	return s.db
}

func (s *sqliteService) Health() map[string]string {
	stats := poolHealth(s.db, s.logger)
	stats["driver"] = "sqlite"
	stats["path"] = s.path
	return stats
}

func (s *sqliteService) Close() error {
	s.logger.Info("closing sqlite database", zap.String("path", s.path))
	return s.db.Close()
}

type memoryService struct{}

// NewMemory returns a Service for the in-process store. It is always healthy.
func NewMemory() Service {
	return memoryService{}
}

func (memoryService) Health() map[string]string {
	return map[string]string{"status": "up", "message": "It's healthy", "driver": "memory"}
}

func (memoryService) Close() error { return nil }

func poolHealth(sqlDB *sql.DB, zl *zap.Logger) map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		zl.Warn("db down", zap.Error(err))
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 80 {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}
