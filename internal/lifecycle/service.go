package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/ai-meal-planner/backend/internal/events"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/notifications"
	"example.com/ai-meal-planner/backend/internal/planner"
)

var (
	ErrProfileIncomplete = errors.New("daily goal is not set")
	ErrInvalidHorizon    = errors.New("invalid plan horizon")
)

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
	TryStartGeneration(ctx context.Context, id uuid.UUID, lease time.Duration) (bool, error)
	FinishGeneration(ctx context.Context, id uuid.UUID) error
	SetRejectionFeedback(ctx context.Context, id uuid.UUID, feedback *string) error
}

type PlanStore interface {
	CreateSuperseding(ctx context.Context, plan models.MealPlan) (models.MealPlan, error)
	GetByID(ctx context.Context, userID, planID uuid.UUID) (models.MealPlan, error)
	Transition(ctx context.Context, userID, planID uuid.UUID, from, to models.PlanStatus, feedback *string) (models.MealPlan, error)
	// Activate утверждает план и сохраняет список покупок атомарно.
	Activate(ctx context.Context, userID, planID uuid.UUID, build func(models.MealPlan) []models.ShoppingItem) (models.MealPlan, models.ShoppingList, error)
	ReplaceDays(ctx context.Context, planID uuid.UUID, days map[string]models.DayPlan) error
	ClaimNeedingDetail(ctx context.Context, limit int) ([]models.MealPlan, error)
	RecentTitles(ctx context.Context, userID uuid.UUID, plans int) ([]string, error)
}

type ShoppingListStore interface {
	Upsert(ctx context.Context, list models.ShoppingList) (models.ShoppingList, error)
	Get(ctx context.Context, userID, planID uuid.UUID) (models.ShoppingList, error)
	ToggleItem(ctx context.Context, userID, planID uuid.UUID, index int) (models.ShoppingList, error)
}

// Runner - конвейер генерации плана.
type Runner interface {
	Run(ctx context.Context, req planner.Request) (planner.Result, error)
}

// PlanFiller дописывает рецепты к блюдам плана.
type PlanFiller interface {
	FillPlan(ctx context.Context, plan *models.MealPlan, dislikes []string) (int, error)
}

type Notifier interface {
	Publish(userID uuid.UUID, event notifications.Event)
}

type Config struct {
	HorizonDays       int
	MaxHorizonDays    int
	GenerationLease   time.Duration
	GenerationTimeout time.Duration
	// Сколько последних планов пользователя дают названия для разнообразия.
	RecentPlans   int
	BackfillLimit int
}

func DefaultConfig() Config {
	return Config{
		HorizonDays:       7,
		MaxHorizonDays:    14,
		GenerationLease:   10 * time.Minute,
		GenerationTimeout: 5 * time.Minute,
		RecentPlans:       3,
		BackfillLimit:     20,
	}
}

// Service управляет жизненным циклом плана: генерация в фоне, утверждение,
// отклонение, список покупок и дозаполнение рецептов.
type Service struct {
	users    UserStore
	plans    PlanStore
	lists    ShoppingListStore
	runner   Runner
	filler   PlanFiller
	notifier Notifier
	events   events.Publisher
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

type Deps struct {
	Users    UserStore
	Plans    PlanStore
	Lists    ShoppingListStore
	Runner   Runner
	Filler   PlanFiller
	Notifier Notifier
	Events   events.Publisher
	Logger   *slog.Logger
}

func NewService(deps Deps, cfg Config) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	defaults := DefaultConfig()
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaults.HorizonDays
	}
	if cfg.MaxHorizonDays < cfg.HorizonDays {
		cfg.MaxHorizonDays = cfg.HorizonDays
	}
	if cfg.GenerationLease <= 0 {
		cfg.GenerationLease = defaults.GenerationLease
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaults.GenerationTimeout
	}
	if cfg.BackfillLimit <= 0 {
		cfg.BackfillLimit = defaults.BackfillLimit
	}

	return &Service{
		users:    deps.Users,
		plans:    deps.Plans,
		lists:    deps.Lists,
		runner:   deps.Runner,
		filler:   deps.Filler,
		notifier: deps.Notifier,
		events:   deps.Events,
		cfg:      cfg,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Wait дожидается фоновых генераций.
func (s *Service) Wait() {
	s.wg.Wait()
}

// WaitContext ждет фоновые генерации, но не дольше ctx.
func (s *Service) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) notify(userID uuid.UUID, eventType string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(userID, notifications.Event{Type: eventType, Data: data})
}

func (s *Service) publish(ctx context.Context, eventType string, userID uuid.UUID, planID *uuid.UUID, data map[string]interface{}) {
	err := s.events.Publish(ctx, events.Event{
		Type:       eventType,
		UserID:     userID,
		PlanID:     planID,
		Data:       data,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("publish event failed",
			slog.String("type", eventType),
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}
