package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-meal-planner/backend/internal/config"
)

const (
	connectRetries = 5
	pingTimeout    = 5 * time.Second
)

// Open открывает пул подключений к PostgreSQL с ретраями и экспоненциальной паузой.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	// MaxIdleConns maps closest to MinConns in pgxpool.
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	backoff := time.Second
	for attempt := 1; attempt <= connectRetries; attempt++ {
		var pool *pgxpool.Pool
		pool, err = connect(ctx, poolConfig)
		if err == nil {
			logger.Info("database connected",
				slog.String("host", cfg.Host),
				slog.String("database", cfg.Name),
				slog.Int("attempt", attempt),
			)
			return pool, nil
		}

		logger.Warn("database connection failed",
			slog.Int("attempt", attempt),
			slog.Int("retries", connectRetries),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", connectRetries, err)
}

func connect(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
