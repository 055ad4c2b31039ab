package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Типы запросов, под которыми вызовы попадают в журнал.
const (
	RequestEstimate = "estimate_nutrition"
	RequestPlan     = "generate_plan"
	RequestRepair   = "repair_meals"
	RequestSkeleton = "generate_skeleton"
	RequestDay      = "expand_day"
	RequestRecipe   = "detail_recipe"
)

var (
	ErrNoJSON          = errors.New("ai response does not contain json")
	ErrInvalidResponse = errors.New("invalid ai response")
)

// CallRecord describes one collaborator round trip.
type CallRecord struct {
	UserID      *uuid.UUID
	RequestType string
	Prompt      string
	Payload     []byte
	Response    []byte
	RawResponse []byte
	Latency     time.Duration
	Err         error
}

type Recorder interface {
	Record(ctx context.Context, record CallRecord)
}

type Service struct {
	client   Client
	recorder Recorder
	logger   *slog.Logger
}

// NewService создает сервис работы с AI-клиентом. recorder может быть nil.
func NewService(client Client, recorder Recorder) *Service {
	return &Service{client: client, recorder: recorder, logger: slog.Default()}
}

// EstimateNutrition оценивает КБЖУ блюда по свободному описанию.
func (s *Service) EstimateNutrition(ctx context.Context, input EstimateRequest) (EstimateResponse, error) {
	var response EstimateResponse
	err := s.exchange(ctx, RequestEstimate, estimatePrompt, input, &response, func() error {
		response.Title = strings.TrimSpace(response.Title)
		return validateEstimateResponse(response)
	})
	if err != nil {
		return EstimateResponse{}, err
	}
	return response, nil
}

// GeneratePlan запрашивает полный план на все даты.
func (s *Service) GeneratePlan(ctx context.Context, input PlanRequest) (PlanResponse, error) {
	var response PlanResponse
	err := s.exchange(ctx, RequestPlan, generatePlanPrompt, input, &response, func() error {
		for i := range response.Days {
			response.Days[i].Date = strings.TrimSpace(response.Days[i].Date)
			normalizeMeals(response.Days[i].Meals)
		}
		return validatePlanResponse(response, input)
	})
	if err != nil {
		return PlanResponse{}, err
	}
	return response, nil
}

// RepairMeals запрашивает замену всех невалидных блюд одним вызовом.
func (s *Service) RepairMeals(ctx context.Context, input RepairRequest) (RepairResponse, error) {
	var response RepairResponse
	err := s.exchange(ctx, RequestRepair, repairPrompt, input, &response, func() error {
		normalizeMeals(response.Meals)
		return validateRepairResponse(response)
	})
	if err != nil {
		return RepairResponse{}, err
	}
	return response, nil
}

// GenerateSkeleton запрашивает каркас меню и пулы ингредиентов.
func (s *Service) GenerateSkeleton(ctx context.Context, input SkeletonRequest) (SkeletonResponse, error) {
	var response SkeletonResponse
	err := s.exchange(ctx, RequestSkeleton, skeletonPrompt, input, &response, func() error {
		for i := range response.Days {
			response.Days[i].Date = strings.TrimSpace(response.Days[i].Date)
		}
		return validateSkeletonResponse(response, input)
	})
	if err != nil {
		return SkeletonResponse{}, err
	}
	return response, nil
}

// ExpandDay детализирует один день каркаса.
func (s *Service) ExpandDay(ctx context.Context, input DayRequest) (DayResponse, error) {
	var response DayResponse
	err := s.exchange(ctx, RequestDay, expandDayPrompt, input, &response, func() error {
		normalizeMeals(response.Meals)
		return validateDayResponse(response, input)
	})
	if err != nil {
		return DayResponse{}, err
	}
	return response, nil
}

// DetailRecipe дописывает ингредиенты и шаги к готовому блюду.
func (s *Service) DetailRecipe(ctx context.Context, input RecipeRequest) (RecipeResponse, error) {
	var response RecipeResponse
	err := s.exchange(ctx, RequestRecipe, recipePrompt, input, &response, func() error {
		return validateRecipeResponse(response)
	})
	if err != nil {
		return RecipeResponse{}, err
	}
	return response, nil
}

func (s *Service) exchange(ctx context.Context, requestType string, spec promptSpec, input, target interface{}, check func() error) error {
	prompt, payload, err := spec.build(input)
	if err != nil {
		return err
	}

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	start := time.Now()
	content, raw, err := s.client.Chat(ctx, messages)
	if err == nil {
		err = parseJSON(content, target)
	}
	if err == nil && check != nil {
		err = check()
	}

	var response []byte
	if err == nil {
		response, _ = json.Marshal(target)
	}

	s.record(ctx, CallRecord{
		RequestType: requestType,
		Prompt:      prompt,
		Payload:     payload,
		Response:    response,
		RawResponse: raw,
		Latency:     time.Since(start),
		Err:         err,
	})

	if err != nil {
		s.logger.Warn("ai request failed", slog.String("request_type", requestType), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, record CallRecord) {
	if s.recorder == nil {
		return
	}
	if userID, ok := UserIDFromContext(ctx); ok {
		record.UserID = &userID
	}
	s.recorder.Record(ctx, record)
}

func normalizeMeals[K comparable](meals map[K]MealCandidate) {
	for key, candidate := range meals {
		normalizeCandidate(&candidate)
		meals[key] = candidate
	}
}
