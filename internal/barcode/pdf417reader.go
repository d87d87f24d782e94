package barcode

import (
	"context"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/pdf417"

	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/gateway"
)

// Pdf417Reader decodes a raw PDF417 payload from an image, or reports that
// none was found.
type Pdf417Reader interface {
	Decode(ctx context.Context, img image.Image) (string, bool, error)
}

// ZxingReader is a hardware-style PDF417 reader backed by the gozxing port
// of ZXing: a dedicated PDF417 reader first, then a multi-format reader
// with try-harder hints, matching the two-attempt order in the decoder
// contract.
type ZxingReader struct{}

func NewZxingReader() *ZxingReader { return &ZxingReader{} }

func (z *ZxingReader) Decode(ctx context.Context, img image.Image) (string, bool, error) {
	pre := gateway.PreprocessForOCR(img, gateway.PreprocessOpts{
		Sharpen:    false,
		Contrast:   0.5,
		Brightness: 0,
	})

	bitmap, err := gozxing.NewBinaryBitmapFromImage(pre)
	if err != nil {
		return "", false, domain.ExtractionFailure(err, "build binary bitmap for pdf417 decode")
	}

	if text, ok := tryReader(pdf417.NewPDF417Reader(), bitmap); ok {
		return text, true, nil
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_PDF_417},
		gozxing.DecodeHintType_TRY_HARDER:       true,
		gozxing.DecodeHintType_PURE_BARCODE:     false,
	}
	multiFormat := gozxing.NewMultiFormatReader()
	result, err := multiFormat.DecodeWithHints(bitmap, hints)
	if err != nil || result == nil {
		return "", false, nil
	}
	return result.GetText(), true, nil
}

func tryReader(r gozxing.Reader, bitmap *gozxing.BinaryBitmap) (string, bool) {
	result, err := r.Decode(bitmap, nil)
	if err != nil || result == nil {
		return "", false
	}
	return result.GetText(), true
}
