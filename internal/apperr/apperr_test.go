package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsInput(t *testing.T) {
	err := fmt.Errorf("decode: %w", Inputf("invalid image file: %s", "png"))
	if !IsInput(err) {
		t.Fatalf("expected wrapped input error to be detected")
	}
	if err.Error() != "decode: invalid image file: png" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if IsInput(errors.New("plain")) {
		t.Fatalf("plain error must not be an input error")
	}
}

func TestClassificationf(t *testing.T) {
	err := Classificationf("got %d scores, want %d", 3, 20)
	if !errors.Is(err, ErrClassification) {
		t.Fatalf("expected errors.Is(err, ErrClassification)")
	}
	if err.Error() != "classification failed: got 3 scores, want 20" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestRecovered(t *testing.T) {
	ok := Ok(42)
	if ok.Degraded() || ok.Value != 42 {
		t.Fatalf("Ok = %+v", ok)
	}

	fb := Fallback("default", errors.New("boom"))
	if !fb.Degraded() || fb.Value != "default" {
		t.Fatalf("Fallback = %+v", fb)
	}
}
