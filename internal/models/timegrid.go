package models

// Grid dimensions shared by every validator and finder.
const (
	DaysPerWeek = 7
	TermWeeks   = 16
)

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the label for a day index where 0 is Monday.
func DayName(day int) string {
	if !ValidDay(day) {
		return "Unknown"
	}
	return dayNames[day]
}

// ValidDay reports whether day is addressable in the weekly grid.
func ValidDay(day int) bool {
	return day >= 0 && day < DaysPerWeek
}

// Parity is the semester group: odd semesters map to 1, even ones to 0.
func Parity(semester int) int {
	return ((semester % 2) + 2) % 2
}

// SameParity reports whether two semesters run in the same week cycle.
func SameParity(a, b int) bool {
	return Parity(a) == Parity(b)
}

// GridCell addresses one weekly teaching period.
type GridCell struct {
	Day  int `json:"day"`
	Slot int `json:"slot"`
}
