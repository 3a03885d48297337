package models

import (
	"time"
)

// Ingredient is one component of an analysed meal.
type Ingredient struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	CarbsPer100g float64 `json:"carbs_per_100g"` // grams of carbohydrate per 100g

	// Only set when the ingredient belongs to a specific meal
	Grams *float64 `json:"grams,omitempty"`
	Carbs *float64 `json:"carbs,omitempty"` // carbohydrate contribution for Grams
}

// AnalysisResult is the inference service's answer for one meal photo.
// Names are in the backend's language (English).
type AnalysisResult struct {
	MealID      int64        `json:"meal_id"`
	Name        *string      `json:"name"`
	Date        *string      `json:"date"`
	TotalCarbs  float64      `json:"total_carbs"` // grams
	Dose        float64      `json:"dose"`        // insulin units
	Glycemia    float64      `json:"glycemia"`    // mg/dL
	Ingredients []Ingredient `json:"ingredients"`
}

// Normalize applies the defaults for optional wire fields. An absent
// ingredient list becomes an empty one.
func (r *AnalysisResult) Normalize() {
	if r.Ingredients == nil {
		r.Ingredients = []Ingredient{}
	}
}

// DisplayName returns the meal name or an empty string.
func (r AnalysisResult) DisplayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// NormalizedMeal is an AnalysisResult whose display name and ingredient
// names have been translated into the user's language.
type NormalizedMeal struct {
	AnalysisResult
	Language   string    `json:"language"`
	RecordID   string    `json:"record_id"` // local history id
	AnalyzedAt time.Time `json:"analyzed_at"`
}
