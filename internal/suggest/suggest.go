package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"greenbite/internal/apperr"
	"greenbite/internal/logging"
	"greenbite/internal/models"
)

// Offline fallback values.
const (
	FallbackSwapItem  = "Plant-based alternative"
	FallbackCO2Saved  = 0.5
	FallbackReasoning = "Plant-based items generally have a lower footprint."
)

// ErrMalformed is returned when the model reply holds no usable suggestions.
var ErrMalformed = errors.New("malformed suggestion output")

// Outcome is the swap list the caller should show, plus the error that
// forced the offline fallback, if any.
type Outcome = apperr.Recovered[[]models.SwapSuggestion]

const systemPrompt = `You are a sustainable food expert.

IMPORTANT: Return the response ONLY as a JSON array of objects in this exact format:
[
  {"original_item": "...", "swap_item": "...", "co2_saved": [number], "reasoning": "..."}
]
Do not include markdown blocks or other text.`

// Service proposes lower-footprint food swaps through a text model.
type Service struct {
	completer Completer
	log       *logging.Logger
}

func NewService(completer Completer, log *logging.Logger) *Service {
	return &Service{completer: completer, log: log}
}

// Suggest returns swaps for the detected foods. It never fails: an empty
// list yields no swaps and no model call; any model or parse failure yields
// the offline fallback and the reason in Outcome.Err.
func (s *Service) Suggest(ctx context.Context, foods []string) Outcome {
	if len(foods) == 0 {
		return apperr.Ok([]models.SwapSuggestion{})
	}
	if s == nil || s.completer == nil {
		return apperr.Fallback(Fallback(foods), errors.New("suggestion service not configured"))
	}

	text, err := s.completer.Complete(ctx, systemPrompt, UserPrompt(foods))
	if err == nil {
		var swaps []models.SwapSuggestion
		if swaps, err = Parse(text); err == nil {
			return apperr.Ok(swaps)
		}
	}
	s.log.Printf("swap suggestions unavailable, using offline fallback: %v", err)
	return apperr.Fallback(Fallback(foods), err)
}

// UserPrompt builds the per-request instruction for foods.
func UserPrompt(foods []string) string {
	return fmt.Sprintf(`The user is eating the following food items: %s.
Suggest 1-3 direct food swaps that have a lower carbon footprint but are similar in taste or category.
Calculate roughly how much CO2 (in kg) would be saved per serving.`, strings.Join(foods, ", "))
}

// Fallback is the deterministic offline suggestion for foods.
func Fallback(foods []string) []models.SwapSuggestion {
	if len(foods) == 0 {
		return []models.SwapSuggestion{}
	}
	return []models.SwapSuggestion{{
		OriginalItem: foods[0],
		SwapItem:     FallbackSwapItem,
		CO2Saved:     FallbackCO2Saved,
		Reasoning:    FallbackReasoning,
	}}
}

// Parse extracts the suggestion array from a model reply, tolerating code
// fences and text around the array.
func Parse(text string) ([]models.SwapSuggestion, error) {
	text = stripFences(strings.TrimSpace(text))

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array", ErrMalformed)
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}

	var swaps []models.SwapSuggestion
	if err := json.Unmarshal([]byte(raw), &swaps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(swaps) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrMalformed)
	}
	for i, sw := range swaps {
		if strings.TrimSpace(sw.OriginalItem) == "" || strings.TrimSpace(sw.SwapItem) == "" {
			return nil, fmt.Errorf("%w: entry %d lacks item names", ErrMalformed, i)
		}
	}
	return swaps, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
