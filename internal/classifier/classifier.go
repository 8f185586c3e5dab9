package classifier

import (
	"context"
	"image"
	"math"
	"sort"

	"greenbite/internal/apperr"
	"greenbite/internal/logging"
)

// Selection constants. Changing them changes tested behavior.
const (
	TopK      = 3
	Threshold = 0.05
)

// Scorer produces one raw similarity score (logit) per description for an
// image, aligned with the order of descriptions. Implementations may block
// for a long time and must honor ctx.
type Scorer interface {
	Score(ctx context.Context, img image.Image, descriptions []string) ([]float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, img image.Image, descriptions []string) ([]float64, error)

func (f ScorerFunc) Score(ctx context.Context, img image.Image, descriptions []string) ([]float64, error) {
	return f(ctx, img, descriptions)
}

// Candidate is one vocabulary entry with its probability for an image.
type Candidate struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Probability float64 `json:"probability"`
}

// Classifier is a zero-shot food classifier over a closed vocabulary.
// It holds no per-request state and is safe for concurrent use.
type Classifier struct {
	vocab  Vocabulary
	scorer Scorer
	log    *logging.Logger
}

// New builds a classifier. An empty vocab falls back to DefaultVocabulary.
func New(scorer Scorer, vocab Vocabulary, log *logging.Logger) *Classifier {
	if len(vocab) == 0 {
		vocab = DefaultVocabulary
	}
	return &Classifier{vocab: vocab, scorer: scorer, log: log}
}

func (c *Classifier) Vocabulary() Vocabulary { return c.vocab }

// Classify returns between 1 and TopK food names for img.
func (c *Classifier) Classify(ctx context.Context, img image.Image) ([]string, error) {
	ranked, err := c.Rank(ctx, img)
	if err != nil {
		return nil, err
	}
	selected := Select(ranked)
	names := make([]string, len(selected))
	for i, cand := range selected {
		names[i] = cand.Name
	}
	return names, nil
}

// Rank scores the resized image against the whole vocabulary and returns
// every candidate, most probable first.
func (c *Classifier) Rank(ctx context.Context, img image.Image) ([]Candidate, error) {
	if img == nil {
		return nil, apperr.Classificationf("nil image")
	}
	if c.scorer == nil {
		return nil, apperr.Classificationf("no inference backend configured")
	}

	logits, err := c.scorer.Score(ctx, Preprocess(img), c.vocab.Descriptions())
	if err != nil {
		return nil, apperr.Classificationf("%v", err)
	}
	if len(logits) != len(c.vocab) {
		return nil, apperr.Classificationf("backend returned %d scores for %d labels", len(logits), len(c.vocab))
	}

	probs, err := Softmax(logits)
	if err != nil {
		return nil, apperr.Classificationf("%v", err)
	}

	ranked := make([]Candidate, len(c.vocab))
	for i, l := range c.vocab {
		ranked[i] = Candidate{Index: i, Name: l.Name, Description: l.Description, Probability: probs[i]}
	}
	SortCandidates(ranked)

	if c.log.Enabled() {
		for _, cand := range ranked[:min(5, len(ranked))] {
			c.log.Printf("  [%.3f] %s", cand.Probability, cand.Description)
		}
	}
	return ranked, nil
}

// SortCandidates orders by probability descending, then by vocabulary index.
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Probability != cands[j].Probability {
			return cands[i].Probability > cands[j].Probability
		}
		return cands[i].Index < cands[j].Index
	})
}

// Select applies the top-k and threshold rules to a ranked candidate list:
// of the first TopK candidates, those with probability strictly above
// Threshold survive. When none survive the single best candidate is kept,
// so a non-empty input never yields an empty result.
func Select(ranked []Candidate) []Candidate {
	if len(ranked) == 0 {
		return nil
	}
	out := make([]Candidate, 0, TopK)
	for _, cand := range ranked[:min(TopK, len(ranked))] {
		if cand.Probability > Threshold {
			out = append(out, cand)
		}
	}
	if len(out) == 0 {
		out = append(out, ranked[0])
	}
	return out
}

// Softmax converts logits into a probability distribution. -Inf logits get
// probability 0; NaN, +Inf or an all -Inf vector is an error.
func Softmax(logits []float64) ([]float64, error) {
	if len(logits) == 0 {
		return nil, errEmptyScores
	}
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if math.IsNaN(l) || math.IsInf(l, 1) {
			return nil, errBadScore
		}
		if l > maxLogit {
			maxLogit = l
		}
	}
	if math.IsInf(maxLogit, -1) {
		return nil, errBadScore
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}
