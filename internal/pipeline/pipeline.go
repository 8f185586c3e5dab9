// Package pipeline runs one meal photo through detection, emissions
// lookup, metaphor and swap suggestions.
package pipeline

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/google/uuid"

	"greenbite/internal/apperr"
	"greenbite/internal/classifier"
	"greenbite/internal/emissions"
	"greenbite/internal/logging"
	"greenbite/internal/metaphor"
	"greenbite/internal/models"
	"greenbite/internal/suggest"
)

type Classifier interface {
	Classify(ctx context.Context, img image.Image) ([]string, error)
}

type Suggester interface {
	Suggest(ctx context.Context, foods []string) suggest.Outcome
}

// MealStore records analyzed meals and reports leaderboard positions.
type MealStore interface {
	SaveMeal(meal *models.MealRecord) error
	Rank(userID string) (int, bool, error)
}

type Archiver interface {
	Store(ctx context.Context, id string, data []byte) (string, error)
}

// Pipeline holds the shared, read-only components. Store and Archive are
// optional.
type Pipeline struct {
	Classifier      Classifier
	Resolver        *emissions.Resolver
	Suggester       Suggester
	Store           MealStore
	Archive         Archiver
	ClassifyTimeout time.Duration
	Log             *logging.Logger

	NewID func() string
	Now   func() time.Time
}

// Estimate decodes data and returns the full detection response. Only an
// undecodable image (apperr.InputError) or a classifier failure
// (apperr.ErrClassification) is returned as an error; archive, suggestion
// and store failures are logged and the response is still produced.
func (p *Pipeline) Estimate(ctx context.Context, data []byte, userID string) (*models.DetectionResponse, error) {
	requestID := p.newID()

	img, format, err := classifier.Decode(data)
	if err != nil {
		p.Log.Logf(requestID, "rejecting upload: %v", err)
		return nil, err
	}
	p.Log.Logf(requestID, "decoded %s image %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	var imageURL string
	if p.Archive != nil {
		if imageURL, err = p.Archive.Store(ctx, requestID, data); err != nil {
			p.Log.Logf(requestID, "archive failed: %v", err)
			imageURL = ""
		}
	}

	items, err := p.classify(ctx, img)
	if err != nil {
		p.Log.Logf(requestID, "%v", err)
		return nil, err
	}
	if len(items) == 0 {
		items = []string{models.SentinelFood}
	}
	p.Log.Logf(requestID, "detected %v", items)

	resp := p.describe(ctx, requestID, items)
	resp.ImageURL = imageURL

	if userID != "" && p.Store != nil {
		resp.LeaderboardRank = p.record(requestID, userID, items, resp.TotalCO2)
	}
	return resp, nil
}

// EstimateItems skips detection and describes an already known list of
// foods. An empty list resolves to zero with no swaps.
func (p *Pipeline) EstimateItems(ctx context.Context, items []string) *models.DetectionResponse {
	if items == nil {
		items = []string{}
	}
	return p.describe(ctx, p.newID(), items)
}

func (p *Pipeline) classify(ctx context.Context, img image.Image) ([]string, error) {
	if p.Classifier == nil {
		return nil, apperr.Classificationf("no classifier configured")
	}
	if p.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ClassifyTimeout)
		defer cancel()
	}
	return p.Classifier.Classify(ctx, img)
}

func (p *Pipeline) describe(ctx context.Context, requestID string, items []string) *models.DetectionResponse {
	result := p.Resolver.Estimate(items)

	var swaps []models.SwapSuggestion
	if p.Suggester != nil {
		out := p.Suggester.Suggest(ctx, items)
		if out.Degraded() {
			p.Log.Logf(requestID, "using fallback swaps")
		}
		swaps = out.Value
	} else {
		swaps = suggest.Fallback(items)
	}

	breakdown := make([]models.ItemEmission, len(result.Breakdown))
	for i, b := range result.Breakdown {
		breakdown[i] = models.ItemEmission{Item: b.Item, CO2: b.CO2, Tier: string(b.Tier)}
	}

	return &models.DetectionResponse{
		RequestID:     requestID,
		DetectedItems: items,
		TotalCO2:      Round2(result.Total),
		Metaphor:      metaphor.For(result.Total),
		Swaps:         swaps,
		Breakdown:     breakdown,
	}
}

// record saves the meal and returns the user's rank, or nil when either
// step fails.
func (p *Pipeline) record(requestID, userID string, items []string, total float64) *int {
	meal := &models.MealRecord{
		ID:        requestID,
		UserID:    userID,
		Items:     items,
		TotalCO2:  total,
		Timestamp: p.now(),
	}
	if err := p.Store.SaveMeal(meal); err != nil {
		p.Log.Logf(requestID, "failed to record meal: %v", err)
		return nil
	}
	rank, ok, err := p.Store.Rank(userID)
	if err != nil {
		p.Log.Logf(requestID, "failed to rank user %s: %v", userID, err)
		return nil
	}
	if !ok {
		return nil
	}
	return &rank
}

func (p *Pipeline) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }
