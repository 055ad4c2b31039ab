package planner

import (
	"context"
	"errors"
	"sync"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/models"
)

var (
	dailyGoal       = models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200}
	breakfastTarget = models.NutritionVector{Calories: 360, Protein: 24, Fat: 10, Carbs: 40}
	mainTarget      = models.NutritionVector{Calories: 720, Protein: 48, Fat: 20, Carbs: 80}
)

var errCollaborator = errors.New("collaborator unavailable")

type stubEstimator struct {
	mu        sync.Mutex
	responses map[string]ai.EstimateResponse
	err       error
	calls     []ai.EstimateRequest
}

func (s *stubEstimator) EstimateNutrition(_ context.Context, input ai.EstimateRequest) (ai.EstimateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, input)
	if s.err != nil {
		return ai.EstimateResponse{}, s.err
	}
	return s.responses[input.Description], nil
}

type stubGenerator struct {
	mu sync.Mutex

	plan      ai.PlanResponse
	planErr   error
	planCalls []ai.PlanRequest

	repairs        []ai.RepairResponse
	repairErr      error
	repairRequests []ai.RepairRequest

	skeleton      ai.SkeletonResponse
	skeletonErr   error
	days          map[string]ai.DayResponse
	dayErrs       map[string]error
	dayRequests   []ai.DayRequest
	recipe        ai.RecipeResponse
	recipeErrs    map[string]error
	recipeCalls   int
	inFlight      int
	maxInFlight   int
	recipeBlocker chan struct{}
}

func (s *stubGenerator) GeneratePlan(_ context.Context, input ai.PlanRequest) (ai.PlanResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planCalls = append(s.planCalls, input)
	return s.plan, s.planErr
}

// RepairMeals отдает ответы по порядку раундов; ответ возвращается даже вместе с ошибкой.
func (s *stubGenerator) RepairMeals(_ context.Context, input ai.RepairRequest) (ai.RepairResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round := len(s.repairRequests)
	s.repairRequests = append(s.repairRequests, input)

	var response ai.RepairResponse
	if round < len(s.repairs) {
		response = s.repairs[round]
	}
	return response, s.repairErr
}

func (s *stubGenerator) GenerateSkeleton(_ context.Context, _ ai.SkeletonRequest) (ai.SkeletonResponse, error) {
	return s.skeleton, s.skeletonErr
}

func (s *stubGenerator) ExpandDay(_ context.Context, input ai.DayRequest) (ai.DayResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayRequests = append(s.dayRequests, input)
	if err := s.dayErrs[input.Date]; err != nil {
		return ai.DayResponse{}, err
	}
	return s.days[input.Date], nil
}

func (s *stubGenerator) DetailRecipe(_ context.Context, input ai.RecipeRequest) (ai.RecipeResponse, error) {
	s.mu.Lock()
	s.recipeCalls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	blocker := s.recipeBlocker
	err := s.recipeErrs[input.Title]
	s.mu.Unlock()

	if blocker != nil {
		<-blocker
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if err != nil {
		return ai.RecipeResponse{}, err
	}
	return s.recipe, nil
}

func candidate(title string, n models.NutritionVector) ai.MealCandidate {
	return ai.MealCandidate{
		Title:       title,
		Nutrition:   n,
		Ingredients: []models.Ingredient{{Name: "米", Amount: "150g"}},
		Steps:       []string{"炊く"},
	}
}

func scale(n models.NutritionVector, ratio float64) models.NutritionVector {
	return models.NutritionVector{
		Calories: n.Calories * ratio,
		Protein:  n.Protein * ratio,
		Fat:      n.Fat * ratio,
		Carbs:    n.Carbs * ratio,
	}
}

// exactDay returns a day whose meals hit the 20/40/40 split exactly.
func exactDay(date string) ai.GeneratedDay {
	return ai.GeneratedDay{
		Date: date,
		Meals: map[models.MealType]ai.MealCandidate{
			models.MealTypeBreakfast: candidate("朝定食 "+date, breakfastTarget),
			models.MealTypeLunch:     candidate("昼定食 "+date, mainTarget),
			models.MealTypeDinner:    candidate("夕定食 "+date, mainTarget),
		},
	}
}
