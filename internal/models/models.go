package models

import (
	"time"

	"github.com/google/uuid"
)

type MealType string

type SlotMode string

type MealStatus string

type PlanStatus string

type PlanSource string

type GenerationStatus string

type ShoppingCategory string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"

	SlotModeAuto   SlotMode = "auto"
	SlotModeFixed  SlotMode = "fixed"
	SlotModeCustom SlotMode = "custom"

	MealStatusPlanned   MealStatus = "planned"
	MealStatusSwapped   MealStatus = "swapped"
	MealStatusCompleted MealStatus = "completed"

	PlanStatusPending  PlanStatus = "pending"
	PlanStatusActive   PlanStatus = "active"
	PlanStatusArchived PlanStatus = "archived"

	PlanSourceSinglePass PlanSource = "single_pass"
	PlanSourceTwoPhase   PlanSource = "two_phase"

	GenerationStatusIdle     GenerationStatus = "idle"
	GenerationStatusCreating GenerationStatus = "creating"

	CategoryMeat      ShoppingCategory = "meat"
	CategoryFish      ShoppingCategory = "fish"
	CategoryVegetable ShoppingCategory = "vegetable"
	CategoryFruit     ShoppingCategory = "fruit"
	CategoryEggDairy  ShoppingCategory = "egg_dairy"
	CategorySoy       ShoppingCategory = "soy"
	CategoryStaple    ShoppingCategory = "staple"
	CategorySeasoning ShoppingCategory = "seasoning"
	CategoryOther     ShoppingCategory = "other"
	CategoryPantry    ShoppingCategory = "pantry"
)

// Tags attached to generated meals.
const (
	TagFallback         = "fallback"
	TagSafetySubstitute = "safety_substitute"
	TagNeedsDetail      = "needs_detail"
	TagAnchor           = "anchor"
)

// PlannedMealTypes are the slots that carry a nutrition target.
var PlannedMealTypes = []MealType{MealTypeBreakfast, MealTypeLunch, MealTypeDinner}

// AllMealTypes fixes iteration order over a day's meals.
var AllMealTypes = []MealType{MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack}

type NutritionVector struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// Add возвращает покомпонентную сумму.
func (n NutritionVector) Add(other NutritionVector) NutritionVector {
	return NutritionVector{
		Calories: n.Calories + other.Calories,
		Protein:  n.Protein + other.Protein,
		Fat:      n.Fat + other.Fat,
		Carbs:    n.Carbs + other.Carbs,
	}
}

type MealSlotSetting struct {
	Mode SlotMode `json:"mode"`
	Text string   `json:"text,omitempty"`
}

type Anchor struct {
	MealType           MealType        `json:"meal_type"`
	Mode               SlotMode        `json:"mode"`
	ResolvedTitle      string          `json:"resolved_title"`
	EstimatedNutrition NutritionVector `json:"estimated_nutrition"`
	Reason             string          `json:"reason,omitempty"`
}

type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type MealSlot struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Status      MealStatus      `json:"status"`
	Nutrition   NutritionVector `json:"nutrition"`
	Tags        []string        `json:"tags,omitempty"`
	Ingredients []Ingredient    `json:"ingredients,omitempty"`
	Steps       []string        `json:"steps,omitempty"`
}

// HasTag сообщает, помечено ли блюдо тегом.
func (m MealSlot) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type DayPlan struct {
	IsCheatDay     bool                  `json:"is_cheat_day"`
	Meals          map[MealType]MealSlot `json:"meals"`
	TotalNutrition NutritionVector       `json:"total_nutrition"`
}

type PlanValidationError struct {
	Date     string          `json:"date"`
	MealType MealType        `json:"meal_type"`
	Actual   NutritionVector `json:"actual"`
	Target   NutritionVector `json:"target"`
	Errors   []string        `json:"errors"`
}

type ValidationResult struct {
	IsValid      bool                  `json:"is_valid"`
	InvalidMeals []PlanValidationError `json:"invalid_meals"`
	Summary      string                `json:"summary"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type IngredientPool struct {
	Period      DateRange `json:"period"`
	Ingredients []string  `json:"ingredients"`
	Strategy    string    `json:"strategy,omitempty"`
}

type ShoppingItem struct {
	Ingredient string           `json:"ingredient"`
	Amount     string           `json:"amount"`
	Category   ShoppingCategory `json:"category"`
	Checked    bool             `json:"checked"`
}

type User struct {
	ID                    uuid.UUID                    `json:"id"`
	Email                 string                       `json:"email"`
	PasswordHash          string                       `json:"-"`
	Name                  *string                      `json:"name,omitempty"`
	DailyGoal             NutritionVector              `json:"daily_goal"`
	Dislikes              []string                     `json:"dislikes"`
	MealSettings          map[MealType]MealSlotSetting `json:"meal_settings"`
	CheatDays             []time.Weekday               `json:"cheat_days"`
	GenerationStatus      GenerationStatus             `json:"generation_status"`
	GenerationStartedAt   *time.Time                   `json:"generation_started_at,omitempty"`
	LastRejectionFeedback *string                      `json:"last_rejection_feedback,omitempty"`
	CreatedAt             time.Time                    `json:"created_at"`
	UpdatedAt             time.Time                    `json:"updated_at"`
}

type MealPlan struct {
	ID                uuid.UUID          `json:"id"`
	UserID            uuid.UUID          `json:"user_id"`
	Status            PlanStatus         `json:"status"`
	StartDate         time.Time          `json:"start_date"`
	EndDate           time.Time          `json:"end_date"`
	Days              map[string]DayPlan `json:"days"`
	Anchors           []Anchor           `json:"anchors,omitempty"`
	Source            PlanSource         `json:"source"`
	IsValid           bool               `json:"is_valid"`
	InvalidMealsCount int                `json:"invalid_meals_count"`
	RejectionFeedback *string            `json:"rejection_feedback,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type ShoppingList struct {
	PlanID    uuid.UUID      `json:"plan_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Items     []ShoppingItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type RefreshToken struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *uuid.UUID `json:"replaced_by,omitempty"`
}
