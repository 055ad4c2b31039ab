package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/nutrition"
)

const instrumentationName = "example.com/ai-meal-planner/backend/internal/planner"

var ErrEmptyHorizon = errors.New("plan horizon is empty")

type Config struct {
	TolerancePct       float64
	RepairRounds       int
	RepairTolerancePct float64
	MaxExistingTitles  int
	// Горизонт от SkeletonMinDays дней генерируется в две фазы; 0 отключает.
	SkeletonMinDays int
	DayConcurrency  int
}

func DefaultConfig() Config {
	return Config{
		TolerancePct:       nutrition.DefaultTolerancePct,
		RepairRounds:       1,
		RepairTolerancePct: nutrition.DefaultTolerancePct,
		MaxExistingTitles:  60,
		SkeletonMinDays:    5,
		DayConcurrency:     4,
	}
}

// Request is everything a plan run needs about the user and the horizon.
type Request struct {
	Dates             []string
	CheatDates        []string
	DailyTarget       models.NutritionVector
	MealSettings      map[models.MealType]models.MealSlotSetting
	Dislikes          []string
	ExistingTitles    []string
	RejectionFeedback string
}

type Result struct {
	Days              map[string]models.DayPlan
	Anchors           []models.Anchor
	Pools             []models.IngredientPool
	Source            models.PlanSource
	IsValid           bool
	InvalidMealsCount int
}

type Orchestrator struct {
	anchors   *AnchorResolver
	generator Generator
	skeleton  *SkeletonExpander
	cfg       Config
	logger    *slog.Logger
	tracer    trace.Tracer

	runs           metric.Int64Counter
	repairAccepted metric.Int64Counter
	fallbackMeals  metric.Int64Counter
	runDuration    metric.Float64Histogram
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

func WithMeter(meter metric.Meter) Option {
	return func(o *Orchestrator) { o.initMetrics(meter) }
}

// NewOrchestrator собирает конвейер генерации плана.
func NewOrchestrator(estimator Estimator, generator Generator, cfg Config, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = defaults.TolerancePct
	}
	if cfg.RepairRounds < 0 {
		cfg.RepairRounds = 0
	}
	if cfg.RepairTolerancePct <= 0 {
		cfg.RepairTolerancePct = defaults.RepairTolerancePct
	}
	if cfg.MaxExistingTitles <= 0 {
		cfg.MaxExistingTitles = defaults.MaxExistingTitles
	}
	if cfg.DayConcurrency <= 0 {
		cfg.DayConcurrency = defaults.DayConcurrency
	}

	o := &Orchestrator{
		generator: generator,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    otel.Tracer(instrumentationName),
	}
	o.initMetrics(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(o)
	}

	o.anchors = NewAnchorResolver(estimator, o.logger)
	o.skeleton = NewSkeletonExpander(generator, cfg.DayConcurrency, o.logger)
	return o
}

func (o *Orchestrator) initMetrics(meter metric.Meter) {
	o.runs, _ = meter.Int64Counter("planner_runs_total",
		metric.WithDescription("Plan generation runs by outcome"))
	o.repairAccepted, _ = meter.Int64Counter("planner_repair_accepted_total",
		metric.WithDescription("Repair candidates accepted into plans"))
	o.fallbackMeals, _ = meter.Int64Counter("planner_fallback_meals_total",
		metric.WithDescription("Meals replaced by the deterministic fallback"))
	o.runDuration, _ = meter.Float64Histogram("planner_run_duration_seconds",
		metric.WithDescription("Duration of a plan generation run in seconds"))
}

// run holds the mutable state of one pass through the pipeline.
type run struct {
	req     Request
	anchors []models.Anchor
	targets nutrition.MealTargets
	titles  *TitleSet
	days    map[string]models.DayPlan
	pools   []models.IngredientPool
	source  models.PlanSource
}

// Run выполняет ANCHOR_RESOLVE → GENERATE → VALIDATE → REPAIR → FALLBACK.
// Ошибка возвращается только если не удалась сама генерация.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(attribute.Int("planner.days", len(req.Dates))))
	defer span.End()

	start := time.Now()
	if len(req.Dates) == 0 {
		return Result{}, ErrEmptyHorizon
	}

	state := &run{req: req, titles: NewTitleSet(o.cfg.MaxExistingTitles)}
	state.titles.Add(req.ExistingTitles...)

	state.anchors = o.resolveAnchors(ctx, req)
	state.targets = nutrition.SlotTargets(req.DailyTarget, state.anchors)

	if err := o.generate(ctx, state); err != nil {
		o.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		span.SetStatus(codes.Error, "generation failed")
		span.RecordError(err)
		return Result{}, err
	}
	state.titles.AddDays(state.days)

	validation := o.validate(state)
	for round := 0; round < o.cfg.RepairRounds && !validation.IsValid; round++ {
		o.repair(ctx, state, validation.InvalidMeals)
		validation = o.validate(state)
	}

	fallbacks := o.fallback(ctx, state, validation.InvalidMeals)

	result := Result{
		Days:              state.days,
		Anchors:           state.anchors,
		Pools:             state.pools,
		Source:            state.source,
		IsValid:           fallbacks == 0,
		InvalidMealsCount: fallbacks,
	}

	outcome := "valid"
	if !result.IsValid {
		outcome = "fallback"
	}
	o.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	o.runDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("source", string(result.Source))))
	span.SetAttributes(
		attribute.Bool("planner.valid", result.IsValid),
		attribute.Int("planner.fallbacks", fallbacks),
	)

	o.logger.Info("plan generated",
		slog.Int("days", len(result.Days)),
		slog.String("source", string(result.Source)),
		slog.Bool("is_valid", result.IsValid),
		slog.Int("invalid_meals", result.InvalidMealsCount),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (o *Orchestrator) resolveAnchors(ctx context.Context, req Request) []models.Anchor {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.ResolveAnchors")
	defer span.End()

	anchors := o.anchors.Resolve(ctx, req.MealSettings, req.DailyTarget)
	span.SetAttributes(attribute.Int("planner.anchors", len(anchors)))
	return anchors
}

func (o *Orchestrator) generate(ctx context.Context, state *run) error {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Generate")
	defer span.End()

	req := state.req
	slots := anchorSlots(state.anchors, req.MealSettings)

	if o.cfg.SkeletonMinDays > 0 && len(req.Dates) >= o.cfg.SkeletonMinDays {
		state.source = models.PlanSourceTwoPhase
		days, pools, err := o.skeleton.Expand(ctx, ExpandInput{
			Dates:             req.Dates,
			CheatDates:        req.CheatDates,
			Targets:           state.targets,
			Anchors:           slots,
			Dislikes:          req.Dislikes,
			ExistingTitles:    state.titles.List(),
			RejectionFeedback: req.RejectionFeedback,
		})
		if err != nil {
			return err
		}
		state.days = days
		state.pools = pools
	} else {
		state.source = models.PlanSourceSinglePass
		response, err := o.generator.GeneratePlan(ctx, ai.PlanRequest{
			Dates:             req.Dates,
			CheatDates:        req.CheatDates,
			DailyTarget:       req.DailyTarget,
			RemainingBudget:   nutrition.RemainingBudget(req.DailyTarget, state.anchors),
			SlotTargets:       state.targets,
			Anchors:           slots,
			Dislikes:          req.Dislikes,
			ExistingTitles:    state.titles.List(),
			RejectionFeedback: req.RejectionFeedback,
		})
		if err != nil {
			return fmt.Errorf("generate plan: %w", err)
		}
		state.days = o.daysFromResponse(req, response)
	}

	for _, day := range state.days {
		applyAnchors(day, state.anchors)
		fillMissing(day)
	}
	recomputeAll(state.days)
	span.SetAttributes(attribute.String("planner.source", string(state.source)))
	return nil
}

func (o *Orchestrator) daysFromResponse(req Request, response ai.PlanResponse) map[string]models.DayPlan {
	cheat := cheatSet(req.CheatDates)
	days := make(map[string]models.DayPlan, len(req.Dates))
	for _, date := range req.Dates {
		days[date] = models.DayPlan{IsCheatDay: cheat[date], Meals: map[models.MealType]models.MealSlot{}}
	}

	for _, generated := range response.Days {
		day, ok := days[generated.Date]
		if !ok {
			o.logger.Warn("generated day outside horizon dropped", slog.String("date", generated.Date))
			continue
		}
		for mealType, candidate := range generated.Meals {
			day.Meals[mealType] = candidateSlot(candidate)
		}
	}
	return days
}

func (o *Orchestrator) validate(state *run) models.ValidationResult {
	return nutrition.ValidatePlan(state.days, state.targets, nutrition.ValidateOptions{
		TolerancePct: o.cfg.TolerancePct,
		FixedTitles:  fixedTitles(state.anchors),
	})
}

// repair отправляет все невалидные слоты одним запросом. Если запрос упал,
// не применяется ничего; кандидат принимается только в пределах допуска по калориям.
func (o *Orchestrator) repair(ctx context.Context, state *run, invalid []models.PlanValidationError) int {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Repair",
		trace.WithAttributes(attribute.Int("planner.invalid_meals", len(invalid))))
	defer span.End()

	anchored := make(map[models.MealType]models.Anchor, len(state.anchors))
	for _, anchor := range state.anchors {
		anchored[anchor.MealType] = anchor
	}

	slots := make([]ai.RepairSlot, 0, len(invalid))
	byKey := make(map[string]ai.RepairSlot, len(invalid))
	for _, meal := range invalid {
		slot := ai.RepairSlot{
			Key:          slotKey(meal.Date, meal.MealType),
			Date:         meal.Date,
			MealType:     meal.MealType,
			Target:       meal.Target,
			CurrentTitle: state.days[meal.Date].Meals[meal.MealType].Title,
			Problems:     meal.Errors,
		}
		if anchor, ok := anchored[meal.MealType]; ok {
			slot.Constraint = fmt.Sprintf("%s: %s", anchor.Mode, state.req.MealSettings[meal.MealType].Text)
		}
		slots = append(slots, slot)
		byKey[slot.Key] = slot
	}

	response, err := o.generator.RepairMeals(ctx, ai.RepairRequest{
		Slots:          slots,
		Dislikes:       state.req.Dislikes,
		ExistingTitles: state.titles.List(),
		TolerancePct:   o.cfg.RepairTolerancePct,
	})
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("repair batch failed", slog.Int("slots", len(slots)), slog.Any("error", err))
		return 0
	}

	keys := make([]string, 0, len(response.Meals))
	for key := range response.Meals {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	touched := map[string]bool{}
	accepted := 0
	for _, key := range keys {
		slot, ok := byKey[key]
		if !ok {
			o.logger.Warn("repair candidate for unknown slot dropped", slog.String("key", key))
			continue
		}

		candidate := response.Meals[key]
		if !nutrition.WithinTolerance(candidate.Nutrition.Calories, slot.Target.Calories, o.cfg.RepairTolerancePct) {
			o.logger.Info("repair candidate rejected",
				slog.String("key", key),
				slog.Float64("calories", candidate.Nutrition.Calories),
				slog.Float64("target", slot.Target.Calories),
			)
			continue
		}

		day := state.days[slot.Date]
		meal := candidateSlot(candidate)
		if anchor, ok := anchored[slot.MealType]; ok && anchor.Mode == models.SlotModeCustom {
			meal.Tags = append(meal.Tags, models.TagAnchor)
		}
		day.Meals[slot.MealType] = meal
		touched[slot.Date] = true
		state.titles.Add(candidate.Title)
		accepted++
	}

	for date := range touched {
		state.days[date] = nutrition.RecomputeDayTotals(state.days[date])
	}

	o.repairAccepted.Add(ctx, int64(accepted))
	span.SetAttributes(attribute.Int("planner.repair_accepted", accepted))
	return accepted
}

func (o *Orchestrator) fallback(ctx context.Context, state *run, invalid []models.PlanValidationError) int {
	if len(invalid) == 0 {
		return 0
	}

	for _, meal := range invalid {
		day := state.days[meal.Date]
		day.Meals[meal.MealType] = FallbackMeal(meal.Date, meal.MealType, meal.Target)
		state.days[meal.Date] = nutrition.RecomputeDayTotals(day)
		o.logger.Warn("meal replaced by fallback",
			slog.String("date", meal.Date),
			slog.String("meal_type", string(meal.MealType)),
			slog.Any("errors", meal.Errors),
		)
	}

	o.fallbackMeals.Add(ctx, int64(len(invalid)))
	return len(invalid)
}
