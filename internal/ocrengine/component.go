package ocrengine

import (
	"context"
	"image"
	"time"

	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/gateway"
)

// Component is the Document OCR component: preprocess, recognize, extract.
type Component struct {
	ocr      Ocr
	maxDimPx int
	minDimPx int
}

// NewComponent wires an Ocr capability plus the preprocessing thresholds.
func NewComponent(ocr Ocr, maxDimPx, minDimPx int) *Component {
	return &Component{ocr: ocr, maxDimPx: maxDimPx, minDimPx: minDimPx}
}

// ProcessFront runs the full front-of-ID pipeline: preprocess, recognize,
// extract fields for docType.
func (c *Component) ProcessFront(ctx context.Context, img image.Image, docType domain.DocumentType) (Result, error) {
	pre := gateway.PreprocessForOCR(img, gateway.PreprocessOpts{
		MaxDimPx:   c.maxDimPx,
		MinDimPx:   c.minDimPx,
		Sharpen:    true,
		Contrast:   0.3,
		Brightness: 0.1,
	})

	raw, err := c.ocr.Recognize(ctx, pre, FrontOpts())
	if err != nil {
		return Result{}, err
	}

	fields := ExtractFields(raw, docType, time.Now())
	return Result{Fields: fields, QualityScore: fields.QualityScore}, nil
}
