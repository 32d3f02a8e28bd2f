package db

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/textlane/textlane/internal/config"
	"github.com/textlane/textlane/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

// Module provides the gorm connection.
var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the configured database with tracing and metrics plugins installed.
func New(cfg config.Config) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialect, &gorm.Config{
		Logger:         logger.NewGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBName))); err != nil {
		return nil, err
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)

	return conn, nil
}

// NewTest opens an isolated in-memory sqlite database for tests.
func NewTest() (*gorm.DB, error) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
}
