package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"strings"
)

const (
	DefaultHFBaseURL = "https://api-inference.huggingface.co"
	DefaultHFModel   = "openai/clip-vit-base-patch32"
)

// minProbability keeps log() finite for labels the backend scored as zero.
const minProbability = 1e-12

// HFError reports a non-200 response from the inference endpoint.
type HFError struct {
	StatusCode int
	Body       string
}

func (e *HFError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("inference endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// HuggingFaceScorer scores images with a hosted CLIP model through the
// zero-shot-image-classification task of the Hugging Face inference API.
//
// The endpoint answers with softmax probabilities per candidate label; the
// scorer hands back log(p), which the classifier's softmax maps back to p.
type HuggingFaceScorer struct {
	Client  *http.Client
	BaseURL string // optional; defaults to DefaultHFBaseURL
	Model   string // optional; defaults to DefaultHFModel
	Token   string
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type hfLabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (s *HuggingFaceScorer) Score(ctx context.Context, img image.Image, descriptions []string) ([]float64, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultHFBaseURL
	}
	model := strings.Trim(strings.TrimSpace(s.Model), "/")
	if model == "" {
		model = DefaultHFModel
	}

	raw, err := EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	body, err := json.Marshal(hfRequest{
		Inputs:     base64.StdEncoding.EncodeToString(raw),
		Parameters: hfParameters{CandidateLabels: descriptions},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := strings.TrimSpace(s.Token); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &HFError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var scores []hfLabelScore
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	byLabel := make(map[string]float64, len(scores))
	for _, sc := range scores {
		byLabel[sc.Label] = sc.Score
	}
	logits := make([]float64, len(descriptions))
	for i, d := range descriptions {
		p, ok := byLabel[d]
		if !ok {
			return nil, fmt.Errorf("response has no score for %q", d)
		}
		logits[i] = math.Log(math.Max(p, minProbability))
	}
	return logits, nil
}
