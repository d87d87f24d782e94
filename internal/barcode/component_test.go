package barcode

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/ocrengine"
	"sparkfund/services/identity-verification/internal/vision"
)

type fakeReader struct {
	text  string
	found bool
	err   error
}

func (f fakeReader) Decode(ctx context.Context, img image.Image) (string, bool, error) {
	return f.text, f.found, f.err
}

func TestComponent_BarcodeDecodeSucceeds(t *testing.T) {
	reader := fakeReader{text: "DAQD1234567DACJANEDCSDOEDBB02141990", found: true}
	c := NewComponent(reader, vision.NoopModel{}, ocrengine.NoopOCR{})

	img := image.NewGray(image.Rect(0, 0, 400, 250))
	data, err := c.Process(context.Background(), img)

	require.NoError(t, err)
	require.NotNil(t, data.Pdf417)
	assert.Equal(t, domain.Pdf417Valid, data.Pdf417.Validation)
	assert.Equal(t, "D1234567", data.MergedFields[domain.FieldDocumentNumber])
}

func TestComponent_NoDecodeAndNoOCR_IsInvalid(t *testing.T) {
	reader := fakeReader{found: false}
	c := NewComponent(reader, vision.NoopModel{}, ocrengine.NoopOCR{})

	img := image.NewGray(image.Rect(0, 0, 400, 250))
	data, err := c.Process(context.Background(), img)

	require.NoError(t, err)
	assert.Equal(t, domain.Pdf417Invalid, data.Pdf417.Validation)
}

func TestComponent_OCRFallbackSynthesizesPartial(t *testing.T) {
	reader := fakeReader{found: false}
	mockOCR := &ocrengine.MockOCR{Responses: []ocrengine.RawResult{
		{Text: "ID NUMBER D1234567 NAME JANE DOE", MeanConfidence: 70, RecognizedChars: 40},
	}}
	c := NewComponent(reader, vision.NoopModel{}, mockOCR)

	img := image.NewGray(image.Rect(0, 0, 400, 250))
	data, err := c.Process(context.Background(), img)

	require.NoError(t, err)
	require.NotNil(t, data.Pdf417)
	assert.Equal(t, 0.6, data.Pdf417.Confidence)
	assert.Equal(t, domain.Pdf417Partial, data.Pdf417.Validation)
}
