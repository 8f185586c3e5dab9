// internal/models/meal.go
package models

import (
	"time"
)

// SentinelFood stands in for a meal the classifier produced no label for.
const SentinelFood = "Unknown Food"

type SwapSuggestion struct {
	OriginalItem string  `json:"original_item"`
	SwapItem     string  `json:"swap_item"`
	CO2Saved     float64 `json:"co2_saved"`
	Reasoning    string  `json:"reasoning"`
}

type ItemEmission struct {
	Item string  `json:"item"`
	CO2  float64 `json:"co2"`
	Tier string  `json:"tier"`
}

type DetectionResponse struct {
	RequestID       string           `json:"request_id"`
	DetectedItems   []string         `json:"detected_items"`
	TotalCO2        float64          `json:"total_co2"`
	Metaphor        string           `json:"metaphor"`
	Swaps           []SwapSuggestion `json:"swaps"`
	LeaderboardRank *int             `json:"leaderboard_rank,omitempty"`
	Breakdown       []ItemEmission   `json:"breakdown"`
	ImageURL        string           `json:"image_url,omitempty"`
}

type LeaderboardEntry struct {
	UserID        string  `json:"user_id"`
	UserName      string  `json:"user_name"`
	TotalCO2Saved float64 `json:"total_co2_saved"`
	Rank          int     `json:"rank,omitempty"`
}

type TrendData struct {
	Date       string  `json:"date"`
	CO2Emitted float64 `json:"co2_emitted"`
}

// MealRecord is one analyzed meal kept in the demo store.
type MealRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Items     []string  `json:"items"`
	TotalCO2  float64   `json:"total_co2"`
	Timestamp time.Time `json:"timestamp"`
}

// DateLayout is the day format used by trend data.
const DateLayout = "2006-01-02"
