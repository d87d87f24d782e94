package gateway

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/nfnt/resize"
	"golang.org/x/image/webp"

	"sparkfund/services/identity-verification/internal/domain"
)

// DetectMIME classifies raw bytes by leading magic bytes. Unrecognized input
// defaults to JPEG, matching lenient upload pipelines that receive images
// from mobile camera apps with occasionally missing or truncated headers.
func DetectMIME(b []byte) domain.MimeType {
	switch {
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return domain.MimeJPEG
	case len(b) >= 4 && b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47:
		return domain.MimePNG
	case len(b) >= 4 && b[0] == 0x52 && b[1] == 0x49 && b[2] == 0x46 && b[3] == 0x46:
		return domain.MimeWebP
	default:
		return domain.MimeJPEG
	}
}

// Decode yields a raster image from raw bytes, dispatching on DetectMIME.
func Decode(b []byte) (image.Image, error) {
	mime := DetectMIME(b)
	r := bytes.NewReader(b)
	switch mime {
	case domain.MimePNG:
		img, err := png.Decode(r)
		if err != nil {
			return nil, domain.ExtractionFailure(err, "decode png")
		}
		return img, nil
	case domain.MimeWebP:
		img, err := webp.Decode(r)
		if err != nil {
			return nil, domain.ExtractionFailure(err, "decode webp")
		}
		return img, nil
	default:
		img, err := jpeg.Decode(r)
		if err != nil {
			return nil, domain.ExtractionFailure(err, "decode jpeg")
		}
		return img, nil
	}
}

// PreprocessOpts controls the resize/contrast pipeline for one OCR pass.
type PreprocessOpts struct {
	MaxDimPx   int
	MinDimPx   int
	Sharpen    bool
	Contrast   float64
	Brightness float64
}

// QualityReport summarizes whether a captured image is usable before it is
// spent on an expensive OCR pass, so a caller UI can ask for a re-capture.
type QualityReport struct {
	Width, Height int
	TooSmall      bool
	TooDark       bool
	TooBright     bool
	Blurry        bool
}

// AssessQuality reports coarse capture-quality flags for img.
func AssessQuality(img image.Image) QualityReport {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rep := QualityReport{Width: w, Height: h}
	if longestSide(w, h) < 600 {
		rep.TooSmall = true
	}

	var sum, sumSq float64
	var n int
	step := maxInt(1, w/128)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			l := luminance(img.At(x, y))
			sum += l
			sumSq += l * l
			n++
		}
	}
	if n == 0 {
		return rep
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if mean < 40 {
		rep.TooDark = true
	}
	if mean > 220 {
		rep.TooBright = true
	}
	if variance < 60 {
		rep.Blurry = true
	}
	return rep
}

// PreprocessForOCR resizes, grayscales, and applies mild contrast/brightness
// adjustments per the gateway preprocessing contract. opts.Sharpen is not
// read: no sharpening is applied on any pass, so front and back-of-ID
// preprocessing differ only in resize bounds and contrast/brightness.
func PreprocessForOCR(img image.Image, opts PreprocessOpts) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := longestSide(w, h)

	resized := img
	if opts.MaxDimPx > 0 && longest > opts.MaxDimPx {
		resized = resizeLongestSide(img, opts.MaxDimPx)
	} else if opts.MinDimPx > 0 && longest < opts.MinDimPx {
		resized = resizeLongestSide(img, opts.MinDimPx)
	}

	gray := toGrayscale(resized)
	adjusted := adjustContrastBrightness(gray, opts.Contrast, opts.Brightness)
	return adjusted
}

func longestSide(w, h int) int {
	if w > h {
		return w
	}
	return h
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func resizeLongestSide(img image.Image, target int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	var newW, newH uint
	if w >= h {
		newW = uint(target)
		newH = uint(float64(h) * float64(target) / float64(w))
	} else {
		newH = uint(target)
		newW = uint(float64(w) * float64(target) / float64(h))
	}
	return resize.Resize(newW, newH, img, resize.Lanczos3)
}

func toGrayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

func adjustContrastBrightness(img *image.Gray, contrast, brightness float64) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	factor := (259 * (contrast*255 + 255)) / (255 * (259 - contrast*255))
	brightOffset := brightness * 255
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(img.GrayAt(x, y).Y)
			v = factor*(v-128) + 128 + brightOffset
			out.SetGray(x, y, color.Gray{Y: clampByte(v)})
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}

func luminance(c color.Color) float64 {
	r, g, bl, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
}
