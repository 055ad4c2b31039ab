package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/events"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/notifications"
	"example.com/ai-meal-planner/backend/internal/planner"
)

const dateLayout = "2006-01-02"

type GenerationOutcome string

const (
	OutcomeStarted         GenerationOutcome = "started"
	OutcomeAlreadyCreating GenerationOutcome = "already_creating"
)

type GenerateOptions struct {
	// StartDate по умолчанию - завтрашний день.
	StartDate *time.Time
	Days      int
}

type GenerationState struct {
	Status    models.GenerationStatus `json:"status"`
	StartedAt *time.Time              `json:"started_at,omitempty"`
}

// GeneratePlan занимает флаг генерации пользователя и запускает конвейер в фоне.
// Если генерация уже идет, возвращает OutcomeAlreadyCreating без ошибки.
func (s *Service) GeneratePlan(ctx context.Context, userID uuid.UUID, opts GenerateOptions) (GenerationOutcome, error) {
	days := opts.Days
	if days == 0 {
		days = s.cfg.HorizonDays
	}
	if days < 1 || days > s.cfg.MaxHorizonDays {
		return "", fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidHorizon, s.cfg.MaxHorizonDays)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.DailyGoal.Calories <= 0 {
		return "", ErrProfileIncomplete
	}

	start := s.now().UTC().AddDate(0, 0, 1)
	if opts.StartDate != nil {
		start = opts.StartDate.UTC()
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	claimed, err := s.users.TryStartGeneration(ctx, userID, s.cfg.GenerationLease)
	if err != nil {
		return "", fmt.Errorf("claim generation: %w", err)
	}
	if !claimed {
		return OutcomeAlreadyCreating, nil
	}

	s.notify(userID, notifications.EventGenerationStarted, map[string]interface{}{
		"start_date": start.Format(dateLayout),
		"days":       days,
	})

	s.wg.Add(1)
	go s.runGeneration(user, start, days)

	return OutcomeStarted, nil
}

// GenerationStatus возвращает флаг генерации; просроченный флаг считается свободным.
func (s *Service) GenerationStatus(ctx context.Context, userID uuid.UUID) (GenerationState, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return GenerationState{}, err
	}

	if user.GenerationStatus != models.GenerationStatusCreating {
		return GenerationState{Status: models.GenerationStatusIdle}, nil
	}
	if user.GenerationStartedAt != nil && s.now().Sub(*user.GenerationStartedAt) > s.cfg.GenerationLease {
		return GenerationState{Status: models.GenerationStatusIdle}, nil
	}
	return GenerationState{Status: user.GenerationStatus, StartedAt: user.GenerationStartedAt}, nil
}

func (s *Service) runGeneration(user models.User, start time.Time, days int) {
	defer s.wg.Done()

	logger := s.logger.With(slog.String("user_id", user.ID.String()))

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.users.FinishGeneration(ctx, user.ID); err != nil {
			logger.Error("clear generation flag failed", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithTimeout(ai.WithUserID(context.Background(), user.ID), s.cfg.GenerationTimeout)
	defer cancel()

	plan, err := s.generate(ctx, user, start, days)
	if err != nil {
		logger.Error("plan generation failed", slog.String("error", err.Error()))
		s.notify(user.ID, notifications.EventPlanFailed, map[string]interface{}{
			"error": "plan generation failed",
		})
		s.publish(context.WithoutCancel(ctx), events.TypePlanFailed, user.ID, nil, map[string]interface{}{"error": err.Error()})
		return
	}

	logger.Info("plan generated",
		slog.String("plan_id", plan.ID.String()),
		slog.String("source", string(plan.Source)),
		slog.Bool("is_valid", plan.IsValid),
		slog.Int("invalid_meals", plan.InvalidMealsCount),
	)
	data := map[string]interface{}{
		"plan_id":             plan.ID.String(),
		"is_valid":            plan.IsValid,
		"invalid_meals_count": plan.InvalidMealsCount,
	}
	s.notify(user.ID, notifications.EventPlanReady, data)
	s.publish(context.WithoutCancel(ctx), events.TypePlanGenerated, user.ID, &plan.ID, data)
}

func (s *Service) generate(ctx context.Context, user models.User, start time.Time, days int) (models.MealPlan, error) {
	dates, cheatDates := horizon(start, days, user.CheatDays)

	titles, err := s.plans.RecentTitles(ctx, user.ID, s.cfg.RecentPlans)
	if err != nil {
		s.logger.Warn("load recent titles failed",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		titles = nil
	}

	feedback := ""
	if user.LastRejectionFeedback != nil {
		feedback = *user.LastRejectionFeedback
	}

	result, err := s.runner.Run(ctx, planner.Request{
		Dates:             dates,
		CheatDates:        cheatDates,
		DailyTarget:       user.DailyGoal,
		MealSettings:      user.MealSettings,
		Dislikes:          user.Dislikes,
		ExistingTitles:    titles,
		RejectionFeedback: feedback,
	})
	if err != nil {
		return models.MealPlan{}, err
	}

	plan, err := s.plans.CreateSuperseding(ctx, models.MealPlan{
		UserID:            user.ID,
		Status:            models.PlanStatusPending,
		StartDate:         start,
		EndDate:           start.AddDate(0, 0, days-1),
		Days:              result.Days,
		Anchors:           result.Anchors,
		Source:            result.Source,
		IsValid:           result.IsValid,
		InvalidMealsCount: result.InvalidMealsCount,
	})
	if err != nil {
		return models.MealPlan{}, fmt.Errorf("store plan: %w", err)
	}

	if feedback != "" {
		if err := s.users.SetRejectionFeedback(ctx, user.ID, nil); err != nil {
			s.logger.Warn("clear rejection feedback failed",
				slog.String("user_id", user.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return plan, nil
}

// horizon возвращает даты плана и те из них, что выпадают на читмил-дни недели.
func horizon(start time.Time, days int, cheatDays []time.Weekday) ([]string, []string) {
	cheat := make(map[time.Weekday]bool, len(cheatDays))
	for _, day := range cheatDays {
		cheat[day] = true
	}

	dates := make([]string, 0, days)
	var cheatDates []string
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		dates = append(dates, date.Format(dateLayout))
		if cheat[date.Weekday()] {
			cheatDates = append(cheatDates, date.Format(dateLayout))
		}
	}
	return dates, cheatDates
}
