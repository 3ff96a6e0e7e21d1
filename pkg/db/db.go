package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tyemirov/signedattach/pkg/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// InitDB opens (or creates) the SQLite audit database and migrates its schema.
func InitDB(dbPath string, slogLogger *slog.Logger) (*gorm.DB, error) {
	slogLogger.Info("Initializing SQLite DB", "path", dbPath)

	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: &slogGormLogger{logger: slogLogger, level: logger.Warn},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}

	if err := database.AutoMigrate(&model.SigningRequest{}, &model.SignedObject{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return database, nil
}

// slogGormLogger routes GORM's logging through slog.
type slogGormLogger struct {
	logger *slog.Logger
	level  logger.LogLevel
}

var _ logger.Interface = (*slogGormLogger)(nil)

func (l *slogGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &slogGormLogger{logger: l.logger, level: level}
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		l.logger.ErrorContext(ctx, "gorm_query_failed", "error", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		l.logger.WarnContext(ctx, "gorm_slow_query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.logger.DebugContext(ctx, "gorm_query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
