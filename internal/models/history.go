package models

// MealHistoryEntry is a past meal as reported by the analysis service.
type MealHistoryEntry struct {
	ID         int64   `json:"id"`
	MealType   string  `json:"meal_type"` // breakfast, lunch, ...
	Date       *string `json:"date"`
	TotalCarbs float64 `json:"total_carbs"`
	Dose       float64 `json:"dose"`
	Glycemia   float64 `json:"glycemia"`
	ImageURL   string  `json:"image_url,omitempty"`
}
