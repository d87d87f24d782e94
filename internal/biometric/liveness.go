package biometric

import (
	"context"
	"image"
	"image/color"
	"math"
)

// LivenessResult is the passive-liveness outcome plus its per-indicator
// diagnostics.
type LivenessResult struct {
	Score       float64
	Diagnostics map[string]float64
}

// Liveness scores passive liveness of a single selfie frame. The
// face-in-circle indicator is the gate: when it scores below 0.5, every
// other indicator is zeroed and the final score is derived from the gate
// alone, per §4.5.
func (c *Component) Liveness(ctx context.Context, selfie image.Image) LivenessResult {
	faceScore := c.faceInCircleScore(ctx, selfie)

	diag := map[string]float64{"face_in_circle": faceScore}

	if faceScore < 0.5 {
		diag["resolution"] = 0
		diag["color_richness"] = 0
		diag["lighting"] = 0
		diag["texture"] = 0
		diag["edge_sharpness"] = 0
		return LivenessResult{Score: clamp01(faceScore), Diagnostics: diag}
	}

	gray := toGrayMatrix(selfie)
	resolution := resolutionAdequacy(selfie)
	colorRichness := colorRichness(selfie)
	lighting := lightingNaturalness(gray)
	texture := localVarianceTexture(gray)
	edge := edgeDensity(gray)

	diag["resolution"] = resolution
	diag["color_richness"] = colorRichness
	diag["lighting"] = lighting
	diag["texture"] = texture
	diag["edge_sharpness"] = edge

	score := 0.30*faceScore + 0.20*resolution + 0.20*colorRichness + 0.25*lighting + 0.20*texture + 0.20*edge
	return LivenessResult{Score: clamp01(score), Diagnostics: diag}
}

// faceInCircleScore prefers a configured FaceDetector; absent or failed
// detection falls back to the traditional skin-hue/dark-region/symmetry
// heuristic.
func (c *Component) faceInCircleScore(ctx context.Context, selfie image.Image) float64 {
	box, found, err := c.faceDetector.Detect(ctx, selfie)
	if err == nil && found {
		return faceBoxCentering(selfie, box)
	}
	return faceHeuristicScore(selfie)
}

// faceBoxCentering rewards a detected box whose center falls within the
// 0.35*min(W,H) radius circle centered on the frame.
func faceBoxCentering(img image.Image, box BoundingBox) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	radius := 0.35 * math.Min(float64(w), float64(h))
	cx, cy := float64(w)/2, float64(h)/2
	fx, fy := float64(box.X)+float64(box.W)/2, float64(box.Y)+float64(box.H)/2
	dist := math.Hypot(fx-cx, fy-cy)
	if dist <= radius {
		return 1.0
	}
	return clamp01(1 - (dist-radius)/radius)
}

// faceHeuristicScore is the traditional fallback: skin-hue ratio within a
// center circle, a dark-region check (eyes/eyebrows), and left/right
// symmetry.
func faceHeuristicScore(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	radius := 0.35 * math.Min(float64(w), float64(h))
	cx, cy := float64(w)/2, float64(h)/2

	var skinPixels, darkPixels, sampled int
	step := maxInt(1, w/128)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			sampled++
			r, g, bl, _ := img.At(x, y).RGBA()
			ru, gu, bu := r>>8, g>>8, bl>>8
			if isSkinTone(ru, gu, bu) {
				skinPixels++
			}
			if luminanceOf(ru, gu, bu) < 60 {
				darkPixels++
			}
		}
	}
	if sampled == 0 {
		return 0
	}

	skinRatio := float64(skinPixels) / float64(sampled)
	var skinScore float64
	if skinRatio >= 0.15 && skinRatio <= 0.70 {
		skinScore = 1.0
	} else if skinRatio < 0.15 {
		skinScore = clamp01(skinRatio / 0.15)
	} else {
		skinScore = clamp01(1 - (skinRatio-0.70)/0.30)
	}

	darkRatio := float64(darkPixels) / float64(sampled)
	darkScore := clamp01(darkRatio * 8) // small, localized dark regions (eyes) are expected
	if darkScore > 1 {
		darkScore = 1
	}

	symmetry := leftRightSymmetry(img, int(cx), int(radius))

	return clamp01(0.5*skinScore + 0.2*darkScore + 0.3*symmetry)
}

func isSkinTone(r, g, b uint32) bool {
	rf, gf, bf := float64(r), float64(g), float64(b)
	return rf > 60 && gf > 30 && bf > 15 &&
		rf > gf && rf > bf &&
		math.Abs(rf-gf) > 10 &&
		(rf-bf) > 10
}

func luminanceOf(r, g, b uint32) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

func leftRightSymmetry(img image.Image, cx int, radius int) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if radius < 2 {
		return 0
	}
	var diff, n float64
	step := maxInt(1, radius/32)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for dx := 1; dx < radius; dx += step {
			xl, xr := cx-dx, cx+dx
			if xl < 0 || xr >= w {
				continue
			}
			ll := luminance(img.At(b.Min.X+xl, y))
			lr := luminance(img.At(b.Min.X+xr, y))
			diff += math.Abs(ll - lr)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	meanDiff := diff / n
	return clamp01(1 - meanDiff/90.0)
}

func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return luminanceOf(r>>8, g>>8, b>>8)
}

// resolutionAdequacy rewards 300x300 as a floor (0.2) scaling linearly up
// to 800x800 (0.9).
func resolutionAdequacy(img image.Image) float64 {
	b := img.Bounds()
	dim := math.Min(float64(b.Dx()), float64(b.Dy()))
	switch {
	case dim <= 300:
		return 0.2
	case dim >= 800:
		return 0.9
	default:
		return 0.2 + (dim-300)/(800-300)*0.7
	}
}

// colorRichness is the ratio of unique quantized colors to sampled pixels.
func colorRichness(img image.Image) float64 {
	b := img.Bounds()
	seen := map[uint32]struct{}{}
	var sampled int
	step := maxInt(1, b.Dx()/128)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			key := (r>>12)<<8 | (g>>12)<<4 | (bl >> 12)
			seen[key] = struct{}{}
			sampled++
		}
	}
	if sampled == 0 {
		return 0
	}
	return clamp01(float64(len(seen)) / float64(sampled))
}

// lightingNaturalness rewards brightness standard deviation across a 4x4
// region grid landing in the 0.05-0.30 band (normalized to 0-255 scale).
func lightingNaturalness(m *grayMatrix) float64 {
	const grid = 4
	means := make([]float64, 0, grid*grid)
	cellW, cellH := m.w/grid, m.h/grid
	if cellW == 0 || cellH == 0 {
		return 0
	}
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			var sum float64
			var n int
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					sum += m.at(x, y)
					n++
				}
			}
			if n > 0 {
				means = append(means, sum/float64(n))
			}
		}
	}
	if len(means) == 0 {
		return 0
	}
	var sum float64
	for _, v := range means {
		sum += v
	}
	mean := sum / float64(len(means))
	var sq float64
	for _, v := range means {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq/float64(len(means))) / 255.0

	switch {
	case std < 0.05:
		return clamp01(std / 0.05)
	case std <= 0.30:
		return 1.0
	default:
		return clamp01(1 - (std-0.30)/0.30)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
