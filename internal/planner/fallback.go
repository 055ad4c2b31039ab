package planner

import (
	"github.com/google/uuid"

	"example.com/ai-meal-planner/backend/internal/models"
)

type fallbackRecipe struct {
	title       string
	ingredients []models.Ingredient
	steps       []string
}

var fallbackRecipes = map[models.MealType]fallbackRecipe{
	models.MealTypeBreakfast: {
		title: "ゆで卵とオートミールの朝食",
		ingredients: []models.Ingredient{
			{Name: "オートミール", Amount: "40g"},
			{Name: "卵", Amount: "2個"},
			{Name: "牛乳", Amount: "200ml"},
			{Name: "バナナ", Amount: "1本"},
		},
		steps: []string{
			"卵を8分ゆでる。",
			"オートミールに牛乳を加えて電子レンジで2分加熱する。",
			"バナナを添えて盛り付ける。",
		},
	},
	models.MealTypeLunch: {
		title: "鶏むね肉と玄米のプレート",
		ingredients: []models.Ingredient{
			{Name: "鶏むね肉", Amount: "150g"},
			{Name: "玄米ご飯", Amount: "200g"},
			{Name: "ブロッコリー", Amount: "80g"},
			{Name: "オリーブオイル", Amount: "小さじ1"},
			{Name: "塩", Amount: "少々"},
		},
		steps: []string{
			"鶏むね肉に塩をふり、オリーブオイルで両面を焼く。",
			"ブロッコリーをゆでる。",
			"玄米ご飯と一緒に盛り付ける。",
		},
	},
	models.MealTypeDinner: {
		title: "鮭の塩焼きと温野菜の定食",
		ingredients: []models.Ingredient{
			{Name: "鮭", Amount: "1切れ"},
			{Name: "ご飯", Amount: "180g"},
			{Name: "にんじん", Amount: "1/2本"},
			{Name: "キャベツ", Amount: "100g"},
			{Name: "味噌", Amount: "大さじ1"},
		},
		steps: []string{
			"鮭に塩をふり、グリルで焼く。",
			"にんじんとキャベツを蒸す。",
			"味噌汁を作り、ご飯と一緒に盛り付ける。",
		},
	},
	models.MealTypeSnack: {
		title: "ギリシャヨーグルトとナッツ",
		ingredients: []models.Ingredient{
			{Name: "ギリシャヨーグルト", Amount: "100g"},
			{Name: "ミックスナッツ", Amount: "20g"},
		},
		steps: []string{"ヨーグルトにナッツをのせる。"},
	},
}

// FallbackMeal возвращает детерминированное блюдо, питание которого равно цели слота.
// Один и тот же слот всегда получает один и тот же ID.
func FallbackMeal(date string, mealType models.MealType, target models.NutritionVector) models.MealSlot {
	recipe, ok := fallbackRecipes[mealType]
	if !ok {
		recipe = fallbackRecipes[models.MealTypeLunch]
	}

	ingredients := make([]models.Ingredient, len(recipe.ingredients))
	copy(ingredients, recipe.ingredients)
	steps := make([]string, len(recipe.steps))
	copy(steps, recipe.steps)

	return models.MealSlot{
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(slotKey(date, mealType))).String(),
		Title:       recipe.title,
		Status:      models.MealStatusPlanned,
		Nutrition:   target,
		Tags:        []string{models.TagFallback, models.TagSafetySubstitute},
		Ingredients: ingredients,
		Steps:       steps,
	}
}
