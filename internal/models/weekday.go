package models

import (
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday принимает полное английское имя дня или первые три буквы.
func ParseWeekday(value string) (time.Weekday, bool) {
	name := strings.ToLower(strings.TrimSpace(value))
	if len(name) < 3 {
		return 0, false
	}
	if day, ok := weekdayNames[name]; ok {
		return day, true
	}
	for full, day := range weekdayNames {
		if full[:3] == name {
			return day, true
		}
	}
	return 0, false
}

// WeekdayName возвращает имя дня в нижнем регистре.
func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}
