package planner

import (
	"strings"

	"example.com/ai-meal-planner/backend/internal/models"
)

// TitleSet накапливает названия блюд для дедупликации между этапами.
// Не потокобезопасен: заполняется между вызовами модели, а не во время них.
type TitleSet struct {
	limit int
	order []string
	seen  map[string]struct{}
}

func NewTitleSet(limit int) *TitleSet {
	return &TitleSet{limit: limit, seen: make(map[string]struct{})}
}

func (s *TitleSet) Add(titles ...string) {
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		if _, ok := s.seen[title]; ok {
			continue
		}
		s.seen[title] = struct{}{}
		s.order = append(s.order, title)
	}
}

// AddDays добавляет названия всех блюд плана в порядке дат.
func (s *TitleSet) AddDays(days map[string]models.DayPlan) {
	for _, date := range sortedKeys(days) {
		for _, mealType := range models.AllMealTypes {
			if meal, ok := days[date].Meals[mealType]; ok {
				s.Add(meal.Title)
			}
		}
	}
}

func (s *TitleSet) Contains(title string) bool {
	_, ok := s.seen[strings.TrimSpace(title)]
	return ok
}

func (s *TitleSet) Len() int {
	return len(s.order)
}

// List возвращает не более limit самых свежих названий.
func (s *TitleSet) List() []string {
	start := 0
	if s.limit > 0 && len(s.order) > s.limit {
		start = len(s.order) - s.limit
	}
	out := make([]string, len(s.order)-start)
	copy(out, s.order[start:])
	return out
}
