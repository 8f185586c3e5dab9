package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"greenbite/internal/apperr"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHuggingFaceScorer_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/models/org/clip" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer t0k" {
			t.Errorf("Authorization = %q", got)
		}

		var req hfRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		raw, err := base64.StdEncoding.DecodeString(req.Inputs)
		if err != nil {
			t.Errorf("inputs not base64: %v", err)
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			t.Errorf("inputs not png: %v", err)
		} else if img.Bounds().Dx() != InputSize {
			t.Errorf("width = %d", img.Bounds().Dx())
		}

		resp := make([]hfLabelScore, 0, len(req.Parameters.CandidateLabels))
		for i, l := range req.Parameters.CandidateLabels {
			score := 0.0
			if i == 1 {
				score = 1
			}
			resp = append(resp, hfLabelScore{Label: l, Score: score})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	scorer := &HuggingFaceScorer{BaseURL: srv.URL + "/", Model: "/org/clip", Token: " t0k "}
	c := New(scorer, nil, nil)

	got, err := c.Classify(context.Background(), uniformImage(300, 200, color.RGBA{200, 150, 50, 255}))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(got) != 1 || got[0] != "biryani" {
		t.Fatalf("got %v, want [biryani]", got)
	}
}

func TestHuggingFaceScorer_LogOfProbabilities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"label":"b","score":0.25},{"label":"a","score":0.75}]`)
	}))
	defer srv.Close()

	s := &HuggingFaceScorer{BaseURL: srv.URL}
	logits, err := s.Score(context.Background(), uniformImage(2, 2, color.White), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	probs, _ := Softmax(logits)
	if math.Abs(probs[0]-0.75) > 1e-9 || math.Abs(probs[1]-0.25) > 1e-9 {
		t.Fatalf("round trip = %v", probs)
	}
}

func TestHuggingFaceScorer_Failures(t *testing.T) {
	img := uniformImage(2, 2, color.White)

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "model loading")
		}))
		defer srv.Close()

		_, err := (&HuggingFaceScorer{BaseURL: srv.URL}).Score(context.Background(), img, []string{"a"})
		var hfErr *HFError
		if !errors.As(err, &hfErr) || hfErr.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected HFError 503, got %v", err)
		}
		if !strings.Contains(err.Error(), "model loading") {
			t.Fatalf("Error() = %q", err.Error())
		}
	})

	t.Run("missing label", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `[{"label":"a","score":1}]`)
		}))
		defer srv.Close()

		_, err := (&HuggingFaceScorer{BaseURL: srv.URL}).Score(context.Background(), img, []string{"a", "b"})
		if err == nil || !strings.Contains(err.Error(), `"b"`) {
			t.Fatalf("expected missing label error, got %v", err)
		}
	})

	t.Run("decode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "{")
		}))
		defer srv.Close()

		if _, err := (&HuggingFaceScorer{BaseURL: srv.URL}).Score(context.Background(), img, []string{"a"}); err == nil {
			t.Fatalf("expected decode error")
		}
	})

	t.Run("transport error surfaces as classification failure", func(t *testing.T) {
		want := errors.New("boom")
		s := &HuggingFaceScorer{Client: &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, want
		})}}
		_, err := New(s, nil, nil).Classify(context.Background(), img)
		if !errors.Is(err, apperr.ErrClassification) {
			t.Fatalf("expected ErrClassification, got %v", err)
		}
	})
}

type fakeRekognition struct {
	labels []types.Label
	err    error
	in     *rekognition.DetectLabelsInput
}

func (f *fakeRekognition) DetectLabels(_ context.Context, in *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &rekognition.DetectLabelsOutput{Labels: f.labels}, nil
}

func TestRekognitionScorer(t *testing.T) {
	fake := &fakeRekognition{labels: []types.Label{
		{Name: aws.String("Food"), Confidence: aws.Float32(99)},
		{Name: aws.String("Pizza"), Confidence: aws.Float32(95)},
		{Name: aws.String("Fried Chicken"), Confidence: aws.Float32(60)},
		{Name: nil, Confidence: aws.Float32(80)},
	}}
	s := NewRekognitionScorer(fake)

	logits, err := s.Score(context.Background(), uniformImage(8, 8, color.White), DefaultVocabulary.Descriptions())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if aws.ToInt32(fake.in.MaxLabels) != 25 || aws.ToFloat32(fake.in.MinConfidence) != 50 {
		t.Fatalf("unexpected limits %+v", fake.in)
	}
	if len(fake.in.Image.Bytes) == 0 {
		t.Fatalf("expected image bytes")
	}

	pizza := DefaultVocabulary.IndexOf("a photo of pizza with cheese and toppings")
	chicken := DefaultVocabulary.IndexOf("a photo of fried chicken pieces")
	if math.Abs(logits[pizza]-9.5) > 1e-4 {
		t.Fatalf("pizza logit = %v", logits[pizza])
	}
	if math.Abs(logits[chicken]-6.0) > 1e-4 {
		t.Fatalf("fried chicken logit = %v", logits[chicken])
	}
	if logits[0] != 0 {
		t.Fatalf("samosa logit = %v, want 0", logits[0])
	}

	got, err := New(s, nil, nil).Classify(context.Background(), uniformImage(8, 8, color.White))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got[0] != "pizza" {
		t.Fatalf("got %v, want pizza first", got)
	}
}

func TestRekognitionScorer_Error(t *testing.T) {
	s := NewRekognitionScorer(&fakeRekognition{err: errors.New("throttled")})
	if _, err := New(s, nil, nil).Classify(context.Background(), uniformImage(2, 2, color.White)); !errors.Is(err, apperr.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
	if _, err := (&RekognitionScorer{}).Score(context.Background(), uniformImage(2, 2, color.White), nil); err == nil {
		t.Fatalf("expected error without client")
	}
}

func TestContainsPhrase(t *testing.T) {
	words := strings.Fields("a photo of fried chicken pieces")
	if !containsPhrase(words, []string{"fried", "chicken"}) {
		t.Fatalf("expected phrase match")
	}
	if containsPhrase(words, []string{"chicken", "fried"}) {
		t.Fatalf("order must matter")
	}
	if containsPhrase(words, nil) {
		t.Fatalf("empty phrase must not match")
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, uniformImage(3, 5, color.White)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, format, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != "png" || img.Bounds() != image.Rect(0, 0, 3, 5) {
		t.Fatalf("Decode = %s %v", format, img.Bounds())
	}

	for _, bad := range [][]byte{nil, []byte("not an image")} {
		if _, _, err := Decode(bad); !apperr.IsInput(err) {
			t.Fatalf("Decode(%q): expected input error, got %v", bad, err)
		}
	}
}

// pngHeader returns a PNG signature and IHDR chunk for an 8-bit grayscale
// image of the given size, with no pixel data after it.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth; color type, compression, filter and interlace stay 0

	chunk := append([]byte("IHDR"), ihdr...)
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecode_RefusesOversizedImage(t *testing.T) {
	data := pngHeader(20000, 20000)
	if len(data) > 64 {
		t.Fatalf("header is %d bytes", len(data))
	}
	_, _, err := Decode(data)
	if !apperr.IsInput(err) {
		t.Fatalf("expected input error, got %v", err)
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Fatalf("err = %v", err)
	}
}

func TestDecode_PixelCapBoundary(t *testing.T) {
	// Exactly at the cap passes the size check and then fails on the
	// missing pixel data, not on size.
	_, _, err := Decode(pngHeader(MaxPixels, 1))
	if err == nil || strings.Contains(err.Error(), "too large") {
		t.Fatalf("err = %v", err)
	}
	_, _, err = Decode(pngHeader(MaxPixels+1, 1))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("err = %v", err)
	}
}
