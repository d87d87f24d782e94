package biometric

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// grayMatrix is a dense row-major grayscale buffer used by every pixel-space
// metric below.
type grayMatrix struct {
	w, h int
	px   []float64 // 0-255
}

func toGrayMatrix(img image.Image) *grayMatrix {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	m := &grayMatrix{w: w, h: h, px: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			m.px[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return m
}

func (m *grayMatrix) at(x, y int) float64 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= m.w {
		x = m.w - 1
	}
	if y >= m.h {
		y = m.h - 1
	}
	return m.px[y*m.w+x]
}

// resizeSquareGray resizes img to an n x n grayscale canonical region.
// Per §4.5 a formal face crop is a best-effort enhancement; the baseline
// path assumes the caller already centered the subject (center-crop).
func resizeSquareGray(img image.Image, n int) *grayMatrix {
	resized := resize.Resize(uint(n), uint(n), img, resize.Bilinear)
	gray := image.NewGray(resized.Bounds())
	b := resized.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(resized.At(x, y)))
		}
	}
	return toGrayMatrix(gray)
}

// centerWindow returns the w x h sub-matrix covering the central `frac`
// fraction of m (frac in (0,1]).
func centerWindow(m *grayMatrix, frac float64) *grayMatrix {
	cw := int(float64(m.w) * frac)
	ch := int(float64(m.h) * frac)
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	ox := (m.w - cw) / 2
	oy := (m.h - ch) / 2
	out := &grayMatrix{w: cw, h: ch, px: make([]float64, cw*ch)}
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			out.px[y*cw+x] = m.at(ox+x, oy+y)
		}
	}
	return out
}

// cropRect extracts the region bb from img as an n x n resized grayscale
// matrix, used by the enhanced face-detector path.
func cropRect(img image.Image, bb BoundingBox, n int) *grayMatrix {
	b := img.Bounds()
	r := image.Rect(b.Min.X+bb.X, b.Min.Y+bb.Y, b.Min.X+bb.X+bb.W, b.Min.Y+bb.Y+bb.H)
	r = r.Intersect(b)
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return resizeSquareGray(img, n)
	}
	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return resizeSquareGray(img, n)
	}
	return resizeSquareGray(sub.SubImage(r), n)
}

// flatten returns the pixel buffer normalized to [0,1].
func (m *grayMatrix) flatten() []float64 {
	out := make([]float64, len(m.px))
	for i, v := range m.px {
		out[i] = v / 255.0
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// histogram256 returns a 32-bucket normalized intensity histogram.
func histogram256(m *grayMatrix) []float64 {
	const buckets = 32
	hist := make([]float64, buckets)
	for _, v := range m.px {
		b := int(v) * buckets / 256
		if b >= buckets {
			b = buckets - 1
		}
		hist[b]++
	}
	total := float64(len(m.px))
	if total == 0 {
		return hist
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// lbpHistogram computes a simplified local-binary-pattern histogram: for
// each interior pixel, an 8-bit code from its 8 neighbors thresholded
// against the center, bucketed into a 256-bin normalized histogram.
func lbpHistogram(m *grayMatrix) []float64 {
	hist := make([]float64, 256)
	var n int
	for y := 1; y < m.h-1; y++ {
		for x := 1; x < m.w-1; x++ {
			center := m.at(x, y)
			code := 0
			neighbors := [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}
			for i, d := range neighbors {
				if m.at(x+d[0], y+d[1]) >= center {
					code |= 1 << uint(i)
				}
			}
			hist[code]++
			n++
		}
	}
	if n == 0 {
		return hist
	}
	for i := range hist {
		hist[i] /= float64(n)
	}
	return hist
}

// edgeDensity returns the mean Sobel gradient magnitude, normalized to
// roughly [0,1].
func edgeDensity(m *grayMatrix) float64 {
	var sum float64
	var n int
	for y := 1; y < m.h-1; y++ {
		for x := 1; x < m.w-1; x++ {
			gx := m.at(x+1, y-1) + 2*m.at(x+1, y) + m.at(x+1, y+1) -
				m.at(x-1, y-1) - 2*m.at(x-1, y) - m.at(x-1, y+1)
			gy := m.at(x-1, y+1) + 2*m.at(x, y+1) + m.at(x+1, y+1) -
				m.at(x-1, y-1) - 2*m.at(x, y-1) - m.at(x+1, y-1)
			sum += math.Hypot(gx, gy)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return clamp01(mean / 400.0)
}

// localVarianceTexture returns the mean local variance over non-overlapping
// 8x8 windows, normalized to roughly [0,1].
func localVarianceTexture(m *grayMatrix) float64 {
	const win = 8
	var sum float64
	var n int
	for y := 0; y+win <= m.h; y += win {
		for x := 0; x+win <= m.w; x += win {
			var s, sq float64
			var cnt int
			for dy := 0; dy < win; dy++ {
				for dx := 0; dx < win; dx++ {
					v := m.at(x+dx, y+dy)
					s += v
					sq += v * v
					cnt++
				}
			}
			mean := s / float64(cnt)
			variance := sq/float64(cnt) - mean*mean
			sum += variance
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return clamp01(mean / 2500.0)
}

func meanStd(m *grayMatrix) (mean, std float64) {
	var s, sq float64
	n := float64(len(m.px))
	if n == 0 {
		return 0, 0
	}
	for _, v := range m.px {
		s += v
		sq += v * v
	}
	mean = s / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	std = math.Sqrt(variance)
	return mean, std
}

// sharpness estimates focus via the variance of a Laplacian approximation,
// normalized to roughly [0,1].
func sharpness(m *grayMatrix) float64 {
	var sum, sumSq float64
	var n int
	for y := 1; y < m.h-1; y++ {
		for x := 1; x < m.w-1; x++ {
			lap := -4*m.at(x, y) + m.at(x-1, y) + m.at(x+1, y) + m.at(x, y-1) + m.at(x, y+1)
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return clamp01(variance / 1500.0)
}

// brightnessOptimality rewards a mean intensity near mid-gray (128).
func brightnessOptimality(m *grayMatrix) float64 {
	mean, _ := meanStd(m)
	return clamp01(1 - math.Abs(mean-128)/128)
}

// contrastScore rewards a healthy intensity spread.
func contrastScore(m *grayMatrix) float64 {
	_, std := meanStd(m)
	return clamp01(std / 80.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
