package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/config"
	"example.com/ai-meal-planner/backend/internal/events"
	"example.com/ai-meal-planner/backend/internal/export"
	"example.com/ai-meal-planner/backend/internal/lifecycle"
	"example.com/ai-meal-planner/backend/internal/notifications"
	"example.com/ai-meal-planner/backend/internal/planner"
	"example.com/ai-meal-planner/backend/internal/repository"
	"example.com/ai-meal-planner/backend/internal/telemetry"
)

// Core - общие зависимости HTTP-сервера и plannerctl.
type Core struct {
	Users      *repository.UserRepository
	Tokens     *repository.RefreshTokenRepository
	Plans      *repository.PlanRepository
	Lists      *repository.ShoppingListRepository
	Stats      *repository.StatsRepository
	Admin      *repository.AdminRepository
	AI         *ai.Service
	Backfiller *planner.Backfiller
	Lifecycle  *lifecycle.Service
	Hub        *notifications.Hub
	Events     events.Publisher
	// Exporter равен nil, если бакет не настроен.
	Exporter *export.S3Exporter

	aiClient ai.Client
	logger   *slog.Logger
}

// NewCore собирает репозитории, AI-клиент, конвейер генерации и жизненный цикл планов.
func NewCore(ctx context.Context, cfg config.Config, logger *slog.Logger, db *pgxpool.Pool) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}

	core := &Core{
		Users:  repository.NewUserRepository(db),
		Tokens: repository.NewRefreshTokenRepository(db),
		Plans:  repository.NewPlanRepository(db),
		Lists:  repository.NewShoppingListRepository(db),
		Stats:  repository.NewStatsRepository(db),
		Admin:  repository.NewAdminRepository(db),
		Hub:    notifications.NewHub(),
		logger: logger,
	}

	client, err := ai.NewClient(ctx, ai.Options{
		Provider:    cfg.AI.Provider,
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Region:      cfg.AI.Region,
		Timeout:     cfg.AI.Timeout,
		MaxTokens:   cfg.AI.MaxOutputTokens,
		Temperature: cfg.AI.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("ai client: %w", err)
	}
	core.aiClient = client

	recorder := &aiRequestRecorder{
		repo:     repository.NewAIRepository(db),
		provider: cfg.AI.Provider,
		model:    cfg.AI.Model,
		logger:   logger,
	}
	core.AI = ai.NewService(ai.NewThrottledClient(client, cfg.AI.RateLimitPerMinute, cfg.AI.RateLimitBurst), recorder)

	orchestrator := planner.NewOrchestrator(core.AI, core.AI, planner.Config{
		TolerancePct:       cfg.Planner.TolerancePct,
		RepairRounds:       cfg.Planner.RepairRounds,
		RepairTolerancePct: cfg.Planner.RepairTolerancePct,
		MaxExistingTitles:  cfg.Planner.MaxExistingTitles,
		SkeletonMinDays:    cfg.Planner.SkeletonMinDays,
		DayConcurrency:     cfg.Planner.DayConcurrency,
	},
		planner.WithLogger(logger),
		planner.WithTracer(otel.Tracer(telemetry.InstrumentationName)),
		planner.WithMeter(otel.Meter(telemetry.InstrumentationName)),
	)

	core.Backfiller = planner.NewBackfiller(core.AI, planner.BatchConfig{
		BatchSize:   cfg.Backfill.BatchSize,
		Concurrency: cfg.Backfill.Concurrency,
		Delay:       cfg.Backfill.Delay,
	}, logger)

	core.Events = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
			Timeout:  cfg.Kafka.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		core.Events = publisher
	}

	if cfg.Export.Bucket != "" {
		exporter, err := export.NewS3Exporter(ctx, cfg.Export.Region, cfg.Export.Bucket, cfg.Export.Prefix)
		if err != nil {
			_ = core.Events.Close()
			return nil, fmt.Errorf("s3 exporter: %w", err)
		}
		core.Exporter = exporter
	}

	core.Lifecycle = lifecycle.NewService(lifecycle.Deps{
		Users:    core.Users,
		Plans:    core.Plans,
		Lists:    core.Lists,
		Runner:   orchestrator,
		Filler:   core.Backfiller,
		Notifier: core.Hub,
		Events:   core.Events,
		Logger:   logger,
	}, lifecycle.Config{
		HorizonDays:       cfg.Planner.HorizonDays,
		MaxHorizonDays:    cfg.Planner.MaxHorizonDays,
		GenerationLease:   cfg.Planner.GenerationLease,
		GenerationTimeout: cfg.Planner.GenerationTimeout,
		RecentPlans:       cfg.Planner.RecentPlans,
		BackfillLimit:     cfg.Backfill.PlanLimit,
	})

	return core, nil
}

// Close дожидается фоновых генераций, закрывает SSE-потоки и продюсер событий.
func (c *Core) Close(ctx context.Context) error {
	var errs []error
	if err := c.Lifecycle.WaitContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait generations: %w", err))
	}
	c.Hub.Close()
	if err := c.Events.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close events: %w", err))
	}
	if closer, ok := c.aiClient.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ai client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// aiRequestRecorder пишет каждый вызов модели в ai_requests.
type aiRequestRecorder struct {
	repo     *repository.AIRepository
	provider string
	model    string
	logger   *slog.Logger
}

func (r *aiRequestRecorder) Record(ctx context.Context, record ai.CallRecord) {
	entry := repository.AIRequestLog{
		UserID:          record.UserID,
		RequestType:     record.RequestType,
		Provider:        r.provider,
		Model:           r.model,
		Prompt:          record.Prompt,
		RequestPayload:  record.Payload,
		ResponsePayload: record.Response,
		RawResponse:     string(record.RawResponse),
		Success:         record.Err == nil,
		LatencyMS:       record.Latency.Milliseconds(),
	}
	if record.Err != nil {
		message := record.Err.Error()
		entry.ErrorMessage = &message
	}

	// запись лога не должна зависеть от отмены запроса, вызвавшего модель
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := r.repo.LogRequest(logCtx, entry); err != nil {
		r.logger.Warn("failed to log ai request",
			slog.String("request_type", record.RequestType),
			slog.String("error", err.Error()),
		)
	}
}
