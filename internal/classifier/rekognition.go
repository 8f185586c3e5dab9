package classifier

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// rekognitionLogitScale stretches label confidences (0..1) into a logit
// range comparable to CLIP's.
const rekognitionLogitScale = 10.0

// DetectLabelsAPI is the subset of the Rekognition client the scorer uses.
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionScorer scores the vocabulary with AWS Rekognition label
// detection. Each description scores the best confidence of any detected
// label whose name occurs in it as a whole word; descriptions no label
// matches score 0.
type RekognitionScorer struct {
	Client        DetectLabelsAPI
	MaxLabels     int32
	MinConfidence float32
}

// NewRekognitionScorer wraps a Rekognition client with default limits.
func NewRekognitionScorer(client DetectLabelsAPI) *RekognitionScorer {
	return &RekognitionScorer{Client: client, MaxLabels: 25, MinConfidence: 50}
}

func (s *RekognitionScorer) Score(ctx context.Context, img image.Image, descriptions []string) ([]float64, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("rekognition client not configured")
	}
	data, err := EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	out, err := s.Client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: data},
		MaxLabels:     aws.Int32(s.MaxLabels),
		MinConfidence: aws.Float32(s.MinConfidence),
	})
	if err != nil {
		return nil, err
	}

	logits := make([]float64, len(descriptions))
	for i, d := range descriptions {
		words := strings.Fields(strings.ToLower(strings.NewReplacer(",", " ").Replace(d)))
		for _, l := range out.Labels {
			if l.Name == nil || l.Confidence == nil {
				continue
			}
			if !containsPhrase(words, strings.Fields(strings.ToLower(*l.Name))) {
				continue
			}
			if v := float64(*l.Confidence) / 100 * rekognitionLogitScale; v > logits[i] {
				logits[i] = v
			}
		}
	}
	return logits, nil
}

// containsPhrase reports whether phrase occurs as a contiguous run in words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
