package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/models"
)

func newTestOrchestrator(generator *stubGenerator, estimator *stubEstimator, mutate func(*Config)) *Orchestrator {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	if estimator == nil {
		estimator = &stubEstimator{}
	}
	return NewOrchestrator(estimator, generator, cfg)
}

func singleDayRequest() Request {
	return Request{
		Dates:       []string{"2024-05-01"},
		DailyTarget: dailyGoal,
	}
}

func TestRunAllMealsWithinTolerance(t *testing.T) {
	generator := &stubGenerator{plan: ai.PlanResponse{Days: []ai.GeneratedDay{exactDay("2024-05-01")}}}
	orchestrator := newTestOrchestrator(generator, nil, nil)

	result, err := orchestrator.Run(context.Background(), singleDayRequest())
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, 0, result.InvalidMealsCount)
	assert.Equal(t, models.PlanSourceSinglePass, result.Source)
	assert.Empty(t, generator.repairRequests)
	assert.Equal(t, dailyGoal, result.Days["2024-05-01"].TotalNutrition)

	require.Len(t, generator.planCalls, 1)
	assert.Equal(t, mainTarget, generator.planCalls[0].SlotTargets[models.MealTypeLunch])
	assert.Equal(t, dailyGoal, generator.planCalls[0].RemainingBudget)
}

func TestRunFallbackWhenRepairMisses(t *testing.T) {
	day := exactDay("2024-05-01")
	day.Meals[models.MealTypeLunch] = candidate("大盛りカツ丼", scale(mainTarget, 1.4))

	generator := &stubGenerator{
		plan: ai.PlanResponse{Days: []ai.GeneratedDay{day}},
		repairs: []ai.RepairResponse{{Meals: map[string]ai.MealCandidate{
			"2024-05-01_lunch": candidate("特盛り牛丼", scale(mainTarget, 1.3)),
		}}},
	}
	orchestrator := newTestOrchestrator(generator, nil, nil)

	result, err := orchestrator.Run(context.Background(), singleDayRequest())
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.InvalidMealsCount)

	lunch := result.Days["2024-05-01"].Meals[models.MealTypeLunch]
	assert.Equal(t, mainTarget, lunch.Nutrition)
	assert.True(t, lunch.HasTag(models.TagFallback))
	assert.True(t, lunch.HasTag(models.TagSafetySubstitute))
	assert.NotEmpty(t, lunch.Ingredients)
	assert.Equal(t, dailyGoal, result.Days["2024-05-01"].TotalNutrition)

	require.Len(t, generator.repairRequests, 1)
	repair := generator.repairRequests[0]
	require.Len(t, repair.Slots, 1)
	assert.Equal(t, "2024-05-01_lunch", repair.Slots[0].Key)
	assert.Equal(t, mainTarget, repair.Slots[0].Target)
	assert.Equal(t, "大盛りカツ丼", repair.Slots[0].CurrentTitle)
	assert.Contains(t, repair.ExistingTitles, "大盛りカツ丼")
}

func TestRepairAcceptanceBoundary(t *testing.T) {
	tests := []struct {
		name      string
		ratio     float64
		wantValid bool
	}{
		{"exactly fifteen percent over", 1.15, true},
		{"just past fifteen percent", 1.1501, false},
		{"fifteen percent under", 0.85, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := exactDay("2024-05-01")
			day.Meals[models.MealTypeDinner] = candidate("唐揚げ定食", scale(mainTarget, 1.5))

			generator := &stubGenerator{
				plan: ai.PlanResponse{Days: []ai.GeneratedDay{day}},
				repairs: []ai.RepairResponse{{Meals: map[string]ai.MealCandidate{
					"2024-05-01_dinner": candidate("鶏の照り焼き", scale(mainTarget, tt.ratio)),
				}}},
			}
			result, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), singleDayRequest())
			require.NoError(t, err)

			dinner := result.Days["2024-05-01"].Meals[models.MealTypeDinner]
			assert.Equal(t, tt.wantValid, result.IsValid)
			if tt.wantValid {
				assert.Equal(t, "鶏の照り焼き", dinner.Title)
				assert.Equal(t, 0, result.InvalidMealsCount)
			} else {
				assert.True(t, dinner.HasTag(models.TagFallback))
				assert.Equal(t, 1, result.InvalidMealsCount)
			}
		})
	}
}

func TestRepairUnknownKeyDropped(t *testing.T) {
	day := exactDay("2024-05-01")
	day.Meals[models.MealTypeLunch] = candidate("ラーメン", scale(mainTarget, 0.5))

	generator := &stubGenerator{
		plan: ai.PlanResponse{Days: []ai.GeneratedDay{day}},
		repairs: []ai.RepairResponse{{Meals: map[string]ai.MealCandidate{
			"2024-05-09_lunch": candidate("冷やし中華", mainTarget),
			"2024-05-01_snack": candidate("おにぎり", mainTarget),
		}}},
	}
	result, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), singleDayRequest())
	require.NoError(t, err)

	assert.NotContains(t, result.Days, "2024-05-09")
	assert.NotContains(t, result.Days["2024-05-01"].Meals, models.MealTypeSnack)
	assert.True(t, result.Days["2024-05-01"].Meals[models.MealTypeLunch].HasTag(models.TagFallback))
	assert.Equal(t, 1, result.InvalidMealsCount)
}

func TestRepairErrorAppliesNothing(t *testing.T) {
	day := exactDay("2024-05-01")
	day.Meals[models.MealTypeLunch] = candidate("ラーメン", scale(mainTarget, 0.5))
	day.Meals[models.MealTypeDinner] = candidate("焼肉", scale(mainTarget, 1.6))

	generator := &stubGenerator{
		plan: ai.PlanResponse{Days: []ai.GeneratedDay{day}},
		repairs: []ai.RepairResponse{{Meals: map[string]ai.MealCandidate{
			"2024-05-01_lunch":  candidate("親子丼", mainTarget),
			"2024-05-01_dinner": candidate("鯖の味噌煮", mainTarget),
		}}},
		repairErr: errCollaborator,
	}
	result, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), singleDayRequest())
	require.NoError(t, err)

	meals := result.Days["2024-05-01"].Meals
	assert.True(t, meals[models.MealTypeLunch].HasTag(models.TagFallback))
	assert.True(t, meals[models.MealTypeDinner].HasTag(models.TagFallback))
	assert.Equal(t, 2, result.InvalidMealsCount)
	assert.False(t, result.IsValid)
}

func TestGenerateErrorIsFatal(t *testing.T) {
	generator := &stubGenerator{planErr: errCollaborator}

	_, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), singleDayRequest())
	require.ErrorIs(t, err, errCollaborator)
	assert.Empty(t, generator.repairRequests)
}

func TestRunRejectsEmptyHorizon(t *testing.T) {
	_, err := newTestOrchestrator(&stubGenerator{}, nil, nil).Run(context.Background(), Request{DailyTarget: dailyGoal})
	require.ErrorIs(t, err, ErrEmptyHorizon)
}

func TestRepairRoundsAreTunable(t *testing.T) {
	day := exactDay("2024-05-01")
	day.Meals[models.MealTypeLunch] = candidate("ラーメン", scale(mainTarget, 0.5))

	for _, rounds := range []int{0, 1, 3} {
		generator := &stubGenerator{plan: ai.PlanResponse{Days: []ai.GeneratedDay{day}}}
		result, err := newTestOrchestrator(generator, nil, func(cfg *Config) {
			cfg.RepairRounds = rounds
		}).Run(context.Background(), singleDayRequest())
		require.NoError(t, err)

		assert.Len(t, generator.repairRequests, rounds)
		assert.Equal(t, 1, result.InvalidMealsCount)
	}
}

func TestCheatDayIsNotRepaired(t *testing.T) {
	cheat := exactDay("2024-05-02")
	cheat.Meals[models.MealTypeDinner] = candidate("ピザ", scale(mainTarget, 2))

	generator := &stubGenerator{plan: ai.PlanResponse{Days: []ai.GeneratedDay{exactDay("2024-05-01"), cheat}}}
	result, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), Request{
		Dates:       []string{"2024-05-01", "2024-05-02"},
		CheatDates:  []string{"2024-05-02"},
		DailyTarget: dailyGoal,
	})
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.True(t, result.Days["2024-05-02"].IsCheatDay)
	assert.Equal(t, "ピザ", result.Days["2024-05-02"].Meals[models.MealTypeDinner].Title)
	assert.Empty(t, generator.repairRequests)
}

func TestMissingMealEndsInFallback(t *testing.T) {
	day := exactDay("2024-05-01")
	delete(day.Meals, models.MealTypeBreakfast)

	generator := &stubGenerator{plan: ai.PlanResponse{Days: []ai.GeneratedDay{day}}}
	result, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), singleDayRequest())
	require.NoError(t, err)

	breakfast := result.Days["2024-05-01"].Meals[models.MealTypeBreakfast]
	assert.True(t, breakfast.HasTag(models.TagFallback))
	assert.Equal(t, breakfastTarget, breakfast.Nutrition)
}

// chatReply отвечает одним и тем же текстом на любой запрос.
type chatReply struct {
	content string
	calls   int
}

func (c *chatReply) Chat(context.Context, []ai.Message) (string, []byte, error) {
	c.calls++
	return c.content, nil, nil
}

func TestOmittedDinnerFromModelEndsInFallback(t *testing.T) {
	client := &chatReply{content: `{"days": [{"date": "2024-05-01", "meals": {
		"breakfast": {"title": "納豆ご飯", "nutrition": {"calories": 360, "protein": 24, "fat": 10, "carbs": 40}},
		"lunch": {"title": "鶏の照り焼き", "nutrition": {"calories": 720, "protein": 48, "fat": 20, "carbs": 80}}}}]}`}
	service := ai.NewService(client, nil)

	result, err := NewOrchestrator(service, service, DefaultConfig()).Run(context.Background(), singleDayRequest())
	require.NoError(t, err)

	dinner := result.Days["2024-05-01"].Meals[models.MealTypeDinner]
	assert.True(t, dinner.HasTag(models.TagFallback))
	assert.Equal(t, mainTarget, dinner.Nutrition)
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.InvalidMealsCount)
	// генерация и одна неудачная попытка ремонта
	assert.Equal(t, 2, client.calls)
}

func TestFixedAnchorBypassesValidation(t *testing.T) {
	estimator := &stubEstimator{responses: map[string]ai.EstimateResponse{
		"いつものグラノーラ": {Title: "グラノーラ", Nutrition: models.NutritionVector{Calories: 400, Protein: 10, Fat: 12, Carbs: 60}},
	}}

	day := exactDay("2024-05-01")
	day.Meals[models.MealTypeBreakfast] = candidate("別の朝食", breakfastTarget)
	lunchTarget := models.NutritionVector{Calories: 700, Protein: 55, Fat: 19, Carbs: 70}
	day.Meals[models.MealTypeLunch] = candidate("昼定食", lunchTarget)
	day.Meals[models.MealTypeDinner] = candidate("夕定食", lunchTarget)

	generator := &stubGenerator{plan: ai.PlanResponse{Days: []ai.GeneratedDay{day}}}
	req := singleDayRequest()
	req.MealSettings = map[models.MealType]models.MealSlotSetting{
		models.MealTypeBreakfast: {Mode: models.SlotModeFixed, Text: "いつものグラノーラ"},
	}

	result, err := newTestOrchestrator(generator, estimator, nil).Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Anchors, 1)
	breakfast := result.Days["2024-05-01"].Meals[models.MealTypeBreakfast]
	assert.Equal(t, "いつものグラノーラ", breakfast.Title)
	assert.True(t, breakfast.HasTag(models.TagAnchor))
	assert.True(t, result.IsValid)

	request := generator.planCalls[0]
	assert.Equal(t, models.NutritionVector{Calories: 1400, Protein: 110, Fat: 38, Carbs: 140}, request.RemainingBudget)
	require.Len(t, request.Anchors, 1)
	assert.Equal(t, models.SlotModeFixed, request.Anchors[0].Mode)
}

func TestFixedAnchorSkipsCheatDay(t *testing.T) {
	estimator := &stubEstimator{responses: map[string]ai.EstimateResponse{
		"いつものグラノーラ": {Title: "グラノーラ", Nutrition: models.NutritionVector{Calories: 400, Protein: 10, Fat: 12, Carbs: 60}},
	}}

	cheat := exactDay("2024-05-02")
	cheat.Meals[models.MealTypeBreakfast] = candidate("パンケーキ", scale(breakfastTarget, 2))
	generator := &stubGenerator{plan: ai.PlanResponse{Days: []ai.GeneratedDay{exactDay("2024-05-01"), cheat}}}

	req := Request{
		Dates:       []string{"2024-05-01", "2024-05-02"},
		CheatDates:  []string{"2024-05-02"},
		DailyTarget: dailyGoal,
		MealSettings: map[models.MealType]models.MealSlotSetting{
			models.MealTypeBreakfast: {Mode: models.SlotModeFixed, Text: "いつものグラノーラ"},
		},
	}
	result, err := newTestOrchestrator(generator, estimator, nil).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "いつものグラノーラ", result.Days["2024-05-01"].Meals[models.MealTypeBreakfast].Title)
	cheatBreakfast := result.Days["2024-05-02"].Meals[models.MealTypeBreakfast]
	assert.Equal(t, "パンケーキ", cheatBreakfast.Title)
	assert.False(t, cheatBreakfast.HasTag(models.TagAnchor))
}

func TestTwoPhaseForLongHorizons(t *testing.T) {
	dates := []string{"2024-05-01", "2024-05-02", "2024-05-03", "2024-05-04", "2024-05-05"}

	skeleton := ai.SkeletonResponse{
		Pools: []models.IngredientPool{
			{Period: models.DateRange{Start: "2024-05-01", End: "2024-05-03"}, Ingredients: []string{"鶏むね肉"}},
			{Period: models.DateRange{Start: "2024-05-04", End: "2024-05-05"}, Ingredients: []string{"鮭"}},
		},
	}
	days := map[string]ai.DayResponse{}
	for _, date := range dates {
		skeleton.Days = append(skeleton.Days, ai.DailySkeleton{Date: date, Meals: map[models.MealType]ai.SkeletonMeal{
			models.MealTypeBreakfast: {Title: "朝 " + date, ApproxCalories: 360},
			models.MealTypeLunch:     {Title: "昼 " + date, ApproxCalories: 720},
			models.MealTypeDinner:    {Title: "夕 " + date, ApproxCalories: 720},
		}})
		days[date] = ai.DayResponse{Meals: exactDay(date).Meals}
	}

	generator := &stubGenerator{
		skeleton: skeleton,
		days:     days,
		dayErrs:  map[string]error{"2024-05-03": errCollaborator},
	}
	result, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), Request{Dates: dates, DailyTarget: dailyGoal})
	require.NoError(t, err)

	assert.Equal(t, models.PlanSourceTwoPhase, result.Source)
	assert.Len(t, result.Pools, 2)
	assert.Empty(t, generator.planCalls)
	assert.Len(t, generator.dayRequests, len(dates))

	for _, request := range generator.dayRequests {
		want := "鶏むね肉"
		if request.Date >= "2024-05-04" {
			want = "鮭"
		}
		assert.Equal(t, []string{want}, request.Pool.Ingredients, request.Date)
	}

	failed := result.Days["2024-05-03"].Meals[models.MealTypeLunch]
	assert.Equal(t, "昼 2024-05-03", failed.Title)
	assert.True(t, failed.HasTag(models.TagNeedsDetail))
	assert.Equal(t, mainTarget, failed.Nutrition)
	assert.True(t, result.IsValid)
}

func TestSkeletonErrorIsFatal(t *testing.T) {
	generator := &stubGenerator{skeletonErr: errCollaborator}
	dates := []string{"2024-05-01", "2024-05-02", "2024-05-03", "2024-05-04", "2024-05-05"}

	_, err := newTestOrchestrator(generator, nil, nil).Run(context.Background(), Request{Dates: dates, DailyTarget: dailyGoal})
	require.ErrorIs(t, err, errCollaborator)
	assert.Empty(t, generator.dayRequests)
}
