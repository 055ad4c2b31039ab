package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"example.com/ai-meal-planner/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	content string
	err     error
	calls   [][]Message
}

func (c *scriptedClient) Chat(_ context.Context, messages []Message) (string, []byte, error) {
	c.calls = append(c.calls, messages)
	if c.err != nil {
		return "", nil, c.err
	}
	return c.content, []byte(`{"raw":true}`), nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []CallRecord
}

func (r *memoryRecorder) Record(_ context.Context, record CallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

const twoDayPlan = "```json\n" + `{"days": [
 {"date": "2024-05-01", "meals": {
  "breakfast": {"title": " 納豆ご飯 ", "nutrition": {"calories": 360, "protein": 24, "fat": 10, "carbs": 40}, "ingredients": [{"name": "納豆", "amount": "1パック"}], "steps": ["混ぜる"]},
  "lunch": {"title": "鶏むね肉の照り焼き", "nutrition": {"calories": 720, "protein": 48, "fat": 20, "carbs": 80}},
  "dinner": {"title": "鮭の塩焼き", "nutrition": {"calories": 720, "protein": 48, "fat": 20, "carbs": 80}}}},
 {"date": "2024-05-02", "meals": {
  "breakfast": {"title": "卵焼き定食", "nutrition": {"calories": 360, "protein": 24, "fat": 10, "carbs": 40}},
  "lunch": {"title": "豚の生姜焼き", "nutrition": {"calories": 720, "protein": 48, "fat": 20, "carbs": 80}},
  "dinner": {"title": "麻婆豆腐", "nutrition": {"calories": 720, "protein": 48, "fat": 20, "carbs": 80}}}}
]}` + "\n```"

func planRequest() PlanRequest {
	return PlanRequest{
		Dates:       []string{"2024-05-01", "2024-05-02"},
		DailyTarget: models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200},
	}
}

func TestGeneratePlanParsesFencedResponse(t *testing.T) {
	client := &scriptedClient{content: twoDayPlan}
	recorder := &memoryRecorder{}
	service := NewService(client, recorder)

	userID := uuid.New()
	ctx := WithUserID(context.Background(), userID)

	response, err := service.GeneratePlan(ctx, planRequest())
	require.NoError(t, err)
	require.Len(t, response.Days, 2)

	breakfast := response.Days[0].Meals[models.MealTypeBreakfast]
	assert.Equal(t, "納豆ご飯", breakfast.Title)
	assert.Equal(t, 360.0, breakfast.Nutrition.Calories)

	require.Len(t, client.calls, 1)
	assert.Equal(t, "system", client.calls[0][0].Role)
	assert.Contains(t, client.calls[0][1].Content, `"2024-05-01"`)

	require.Len(t, recorder.records, 1)
	record := recorder.records[0]
	assert.Equal(t, RequestPlan, record.RequestType)
	require.NotNil(t, record.UserID)
	assert.Equal(t, userID, *record.UserID)
	assert.NoError(t, record.Err)
}

func TestGeneratePlanRejectsMissingDate(t *testing.T) {
	client := &scriptedClient{content: twoDayPlan}
	service := NewService(client, nil)

	request := planRequest()
	request.Dates = append(request.Dates, "2024-05-03")

	_, err := service.GeneratePlan(context.Background(), request)
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Contains(t, err.Error(), "missing date 2024-05-03")
}

func TestGeneratePlanAcceptsMissingMeal(t *testing.T) {
	content := `{"days": [{"date": "2024-05-01", "meals": {"breakfast": {"title": "粥", "nutrition": {"calories": 300}}}}]}`
	service := NewService(&scriptedClient{content: content}, nil)

	request := planRequest()
	request.Dates = []string{"2024-05-01"}

	response, err := service.GeneratePlan(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, response.Days, 1)
	assert.Len(t, response.Days[0].Meals, 1)
	assert.Contains(t, response.Days[0].Meals, models.MealTypeBreakfast)
}

func TestGeneratePlanRejectsUnknownMealType(t *testing.T) {
	content := `{"days": [{"date": "2024-05-01", "meals": {"brunch": {"title": "粥", "nutrition": {"calories": 300}}}}]}`
	service := NewService(&scriptedClient{content: content}, nil)

	request := planRequest()
	request.Dates = []string{"2024-05-01"}

	_, err := service.GeneratePlan(context.Background(), request)
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Contains(t, err.Error(), "unknown meal type")
}

func TestGeneratePlanRecordsTransportError(t *testing.T) {
	transportErr := errors.New("timeout")
	recorder := &memoryRecorder{}
	service := NewService(&scriptedClient{err: transportErr}, recorder)

	_, err := service.GeneratePlan(context.Background(), planRequest())
	require.ErrorIs(t, err, transportErr)
	require.Len(t, recorder.records, 1)
	assert.ErrorIs(t, recorder.records[0].Err, transportErr)
	assert.Nil(t, recorder.records[0].UserID)
}

func TestRepairMealsKeepsKeys(t *testing.T) {
	content := `{"meals": {"2024-05-01_lunch": {"title": "牛丼", "nutrition": {"calories": 700, "protein": 40, "fat": 22, "carbs": 85}}, "bogus": {"title": "x", "nutrition": {"calories": 1}}}}`
	service := NewService(&scriptedClient{content: content}, nil)

	response, err := service.RepairMeals(context.Background(), RepairRequest{TolerancePct: 15})
	require.NoError(t, err)
	assert.Len(t, response.Meals, 2)
	assert.Equal(t, "牛丼", response.Meals["2024-05-01_lunch"].Title)
}

func TestRepairMealsRejectsNegativeNutrition(t *testing.T) {
	content := `{"meals": {"2024-05-01_lunch": {"title": "牛丼", "nutrition": {"calories": -5}}}}`
	service := NewService(&scriptedClient{content: content}, nil)

	_, err := service.RepairMeals(context.Background(), RepairRequest{})
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEstimateNutrition(t *testing.T) {
	content := `{"title": "コンビニおにぎり2個", "nutrition": {"calories": 360, "protein": 8, "fat": 4, "carbs": 76}, "reason": "一般的なおにぎり"}`
	client := &scriptedClient{content: content}
	service := NewService(client, nil)

	response, err := service.EstimateNutrition(context.Background(), EstimateRequest{
		MealType:    models.MealTypeBreakfast,
		Description: "おにぎり2個",
	})
	require.NoError(t, err)
	assert.Equal(t, 360.0, response.Nutrition.Calories)
	assert.True(t, strings.Contains(client.calls[0][1].Content, "おにぎり2個"))
}

func TestGenerateSkeletonValidatesPools(t *testing.T) {
	content := `{"days": [{"date": "2024-05-01", "meals": {
	  "breakfast": {"title": "トースト", "main_ingredients": ["食パン"], "approx_calories": 350},
	  "lunch": {"title": "親子丼", "main_ingredients": ["鶏もも肉", "卵"], "approx_calories": 700},
	  "dinner": {"title": "肉じゃが", "main_ingredients": ["豚こま", "じゃがいも"], "approx_calories": 720}}}],
	 "ingredient_pools": []}`
	service := NewService(&scriptedClient{content: content}, nil)

	_, err := service.GenerateSkeleton(context.Background(), SkeletonRequest{Dates: []string{"2024-05-01"}})
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Contains(t, err.Error(), "pools")
}

func TestDetailRecipeRequiresSteps(t *testing.T) {
	service := NewService(&scriptedClient{content: `{"ingredients": [{"name": "卵", "amount": "2個"}], "steps": []}`}, nil)

	_, err := service.DetailRecipe(context.Background(), RecipeRequest{Title: "卵焼き"})
	require.ErrorIs(t, err, ErrInvalidResponse)
}
