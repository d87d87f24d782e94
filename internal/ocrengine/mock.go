package ocrengine

import (
	"context"
	"image"
)

// NoopOCR always returns empty text. Wired when no OCR capability is
// configured, so the pipeline degrades to manual_review instead of
// crashing — capability absence is a construction-time decision, never a
// branch inside the recognition hot path.
type NoopOCR struct{}

func (NoopOCR) Recognize(ctx context.Context, img image.Image, opts RecognizeOpts) (RawResult, error) {
	return RawResult{}, nil
}

// MockOCR returns a fixed script of responses in call order, for tests that
// need deterministic OCR output without a Tesseract install.
type MockOCR struct {
	Responses []RawResult
	calls     int
}

func (m *MockOCR) Recognize(ctx context.Context, img image.Image, opts RecognizeOpts) (RawResult, error) {
	if m.calls >= len(m.Responses) {
		return RawResult{}, nil
	}
	r := m.Responses[m.calls]
	m.calls++
	return r, nil
}
