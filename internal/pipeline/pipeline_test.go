package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"greenbite/internal/apperr"
	"greenbite/internal/classifier"
	"greenbite/internal/emissions"
	"greenbite/internal/models"
	"greenbite/internal/storage"
	"greenbite/internal/suggest"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// favoring returns a scorer that gives each named label a logit of 5.
func favoring(names ...string) classifier.Scorer {
	return classifier.ScorerFunc(func(_ context.Context, _ image.Image, descriptions []string) ([]float64, error) {
		logits := make([]float64, len(descriptions))
		for _, n := range names {
			for i, l := range classifier.DefaultVocabulary {
				if l.Name == n {
					logits[i] = 5
				}
			}
		}
		return logits, nil
	})
}

type classifierFunc func(ctx context.Context, img image.Image) ([]string, error)

func (f classifierFunc) Classify(ctx context.Context, img image.Image) ([]string, error) {
	return f(ctx, img)
}

type fixedSuggester struct {
	got []string
	out suggest.Outcome
}

func (s *fixedSuggester) Suggest(_ context.Context, foods []string) suggest.Outcome {
	s.got = foods
	return s.out
}

type archiveFunc func(ctx context.Context, id string, data []byte) (string, error)

func (f archiveFunc) Store(ctx context.Context, id string, data []byte) (string, error) {
	return f(ctx, id, data)
}

func newPipeline(c Classifier) *Pipeline {
	return &Pipeline{
		Classifier: c,
		Resolver:   emissions.NewResolver(nil, emissions.HeuristicTable()),
		NewID:      func() string { return "req-1" },
	}
}

func TestEstimate_TwoFoods(t *testing.T) {
	p := newPipeline(classifier.New(favoring("samosa", "biryani"), nil, nil))
	sugg := &fixedSuggester{out: apperr.Ok([]models.SwapSuggestion{{OriginalItem: "biryani", SwapItem: "veg biryani", CO2Saved: 1.5}})}
	p.Suggester = sugg

	resp, err := p.Estimate(context.Background(), pngBytes(t), "")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if len(resp.DetectedItems) != 2 || resp.DetectedItems[0] != "samosa" || resp.DetectedItems[1] != "biryani" {
		t.Fatalf("items = %v", resp.DetectedItems)
	}
	if resp.TotalCO2 != 2.8 {
		t.Fatalf("total = %v", resp.TotalCO2)
	}
	if resp.Metaphor != "That's equivalent to driving a car for 11.2 km." {
		t.Fatalf("metaphor = %q", resp.Metaphor)
	}
	if resp.RequestID != "req-1" || resp.LeaderboardRank != nil || resp.ImageURL != "" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(sugg.got) != 2 || len(resp.Swaps) != 1 || resp.Swaps[0].SwapItem != "veg biryani" {
		t.Fatalf("swaps = %+v (asked for %v)", resp.Swaps, sugg.got)
	}
	if len(resp.Breakdown) != 2 || resp.Breakdown[1].Tier != "heuristic" || resp.Breakdown[1].CO2 != 2.5 {
		t.Fatalf("breakdown = %+v", resp.Breakdown)
	}
}

func TestEstimate_SentinelWhenNothingDetected(t *testing.T) {
	p := newPipeline(classifierFunc(func(context.Context, image.Image) ([]string, error) { return nil, nil }))

	resp, err := p.Estimate(context.Background(), pngBytes(t), "")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if len(resp.DetectedItems) != 1 || resp.DetectedItems[0] != models.SentinelFood {
		t.Fatalf("items = %v", resp.DetectedItems)
	}
	if resp.TotalCO2 != 0.5 {
		t.Fatalf("total = %v", resp.TotalCO2)
	}
	// No suggester configured: offline fallback for the sentinel.
	if len(resp.Swaps) != 1 || resp.Swaps[0].OriginalItem != models.SentinelFood || resp.Swaps[0].SwapItem != suggest.FallbackSwapItem {
		t.Fatalf("swaps = %+v", resp.Swaps)
	}
}

func TestEstimate_InvalidImage(t *testing.T) {
	called := false
	p := newPipeline(classifierFunc(func(context.Context, image.Image) ([]string, error) {
		called = true
		return nil, nil
	}))

	_, err := p.Estimate(context.Background(), []byte("not an image"), "")
	if !apperr.IsInput(err) {
		t.Fatalf("expected input error, got %v", err)
	}
	if called {
		t.Fatalf("classifier must not run on undecodable input")
	}
}

func TestEstimate_ClassificationFailure(t *testing.T) {
	p := newPipeline(classifier.New(classifier.ScorerFunc(func(context.Context, image.Image, []string) ([]float64, error) {
		return nil, errors.New("model offline")
	}), nil, nil))

	_, err := p.Estimate(context.Background(), pngBytes(t), "")
	if !errors.Is(err, apperr.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
}

func TestEstimate_ClassifyTimeout(t *testing.T) {
	p := newPipeline(classifier.New(classifier.ScorerFunc(func(ctx context.Context, _ image.Image, _ []string) ([]float64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), nil, nil))
	p.ClassifyTimeout = 10 * time.Millisecond

	_, err := p.Estimate(context.Background(), pngBytes(t), "")
	if !errors.Is(err, apperr.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
}

func TestEstimate_NoClassifier(t *testing.T) {
	p := newPipeline(nil)
	if _, err := p.Estimate(context.Background(), pngBytes(t), ""); !errors.Is(err, apperr.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
}

func TestEstimate_RecordsMealAndRank(t *testing.T) {
	store, err := storage.NewSQLiteStorage(storage.MemoryDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.SeedDemo(); err != nil {
		t.Fatal(err)
	}

	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p := newPipeline(classifier.New(favoring("pizza"), nil, nil))
	p.Store = store
	p.Now = func() time.Time { return day }

	resp, err := p.Estimate(context.Background(), pngBytes(t), "user_9")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if resp.LeaderboardRank == nil || *resp.LeaderboardRank != 3 {
		t.Fatalf("rank = %v", resp.LeaderboardRank)
	}

	trend, err := store.GetTrend("user_9")
	if err != nil {
		t.Fatal(err)
	}
	if len(trend) != 1 || trend[0].Date != "2024-05-01" || trend[0].CO2Emitted != 2.2 {
		t.Fatalf("trend = %+v", trend)
	}
}

func TestEstimate_Archive(t *testing.T) {
	p := newPipeline(classifier.New(favoring("dosa"), nil, nil))
	var gotID string
	p.Archive = archiveFunc(func(_ context.Context, id string, data []byte) (string, error) {
		gotID = id
		return "https://cdn.example.com/meals/" + id + ".png", nil
	})

	resp, err := p.Estimate(context.Background(), pngBytes(t), "")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if gotID != "req-1" || resp.ImageURL != "https://cdn.example.com/meals/req-1.png" {
		t.Fatalf("archive id %q, url %q", gotID, resp.ImageURL)
	}

	p.Archive = archiveFunc(func(context.Context, string, []byte) (string, error) {
		return "", errors.New("bucket gone")
	})
	resp, err = p.Estimate(context.Background(), pngBytes(t), "")
	if err != nil {
		t.Fatalf("archive failure must not fail the request: %v", err)
	}
	if resp.ImageURL != "" {
		t.Fatalf("url = %q", resp.ImageURL)
	}
}

func TestEstimateItems(t *testing.T) {
	p := newPipeline(nil)
	resp := p.EstimateItems(context.Background(), []string{"Butter Chicken", "naan"})
	if resp.TotalCO2 != 4 {
		t.Fatalf("total = %v", resp.TotalCO2)
	}

	empty := p.EstimateItems(context.Background(), nil)
	if empty.TotalCO2 != 0 || len(empty.Swaps) != 0 {
		t.Fatalf("empty = %+v", empty)
	}
	if empty.DetectedItems == nil {
		t.Fatalf("detected items must be an empty list, not nil")
	}
}

func TestRound2(t *testing.T) {
	for in, want := range map[float64]float64{2.8: 2.8, 1.004: 1, 3.456: 3.46, 0: 0} {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}
