package ocrengine

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	"github.com/otiai10/gosseract/v2"

	"sparkfund/services/identity-verification/internal/domain"
)

// TesseractOCR recognizes text via a local Tesseract install through the
// gosseract CGo binding.
type TesseractOCR struct {
	language string
}

// NewTesseractOCR returns a TesseractOCR using the given trained-data
// language code (e.g. "eng").
func NewTesseractOCR(language string) *TesseractOCR {
	if language == "" {
		language = "eng"
	}
	return &TesseractOCR{language: language}
}

func (t *TesseractOCR) Recognize(ctx context.Context, img image.Image, opts RecognizeOpts) (RawResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return RawResult{}, domain.ExtractionFailure(err, "set tesseract language")
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			return RawResult{}, domain.ExtractionFailure(err, "set tesseract whitelist")
		}
	}
	psm := gosseract.PSM_SINGLE_BLOCK
	if opts.PageSegMode == PSMAuto {
		psm = gosseract.PSM_AUTO
	}
	if err := client.SetPageSegMode(psm); err != nil {
		return RawResult{}, domain.ExtractionFailure(err, "set tesseract page segmentation mode")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return RawResult{}, domain.ExtractionFailure(err, "encode image for tesseract")
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return RawResult{}, domain.ExtractionFailure(err, "load image into tesseract")
	}

	text, err := client.Text()
	if err != nil {
		return RawResult{}, domain.ExtractionFailure(err, "tesseract recognize")
	}
	mean, err := client.MeanTextConf()
	if err != nil {
		mean = 0
	}

	return RawResult{
		Text:            text,
		MeanConfidence:  float64(mean),
		RecognizedChars: len(text),
	}, nil
}
