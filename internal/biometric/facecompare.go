package biometric

import (
	"context"
	"image"
	"math"
)

const canonicalFaceSize = 256

var multiScaleSizes = []int{64, 128, 256}

// FaceResult is the face-comparison outcome plus its per-metric diagnostics.
type FaceResult struct {
	Similarity float64
	Confidence float64
	Diagnostics map[string]float64
	Enhanced    bool
}

// CompareFaces scores similarity between the ID photograph and the selfie.
// It always computes the center-crop baseline; when a FaceDetector finds a
// face in both images it additionally computes the enhanced structural path
// and prefers it.
func (c *Component) CompareFaces(ctx context.Context, idImage, selfie image.Image) FaceResult {
	baseline := c.compareFacesBaseline(idImage, selfie)

	idBox, idFound, idErr := c.faceDetector.Detect(ctx, idImage)
	selfieBox, selfieFound, selfieErr := c.faceDetector.Detect(ctx, selfie)
	if idErr != nil || selfieErr != nil || !idFound || !selfieFound {
		return baseline
	}

	return c.compareFacesEnhanced(idImage, idBox, selfie, selfieBox)
}

func (c *Component) compareFacesBaseline(idImage, selfie image.Image) FaceResult {
	idGray := resizeSquareGray(idImage, canonicalFaceSize)
	selfieGray := resizeSquareGray(selfie, canonicalFaceSize)

	featureSim := featureSimilarity(idGray, selfieGray)
	regionSim := cosineSimilarity(centerWindow(idGray, 0.6).flatten(), centerWindow(selfieGray, 0.6).flatten())
	multiScaleSim := multiScaleCosine(idImage, selfie)
	qualityBoost := qualityBoost(idGray, selfieGray)

	score := 0.25*featureSim + 0.25*regionSim + 0.25*multiScaleSim + qualityBoost

	return FaceResult{
		Similarity: clamp01(score),
		Confidence: 1 - variance([]float64{featureSim, regionSim, multiScaleSim}),
		Diagnostics: map[string]float64{
			"feature_similarity":  featureSim,
			"face_region_cosine":  regionSim,
			"multi_scale_cosine":  multiScaleSim,
			"quality_boost":       qualityBoost,
		},
	}
}

func (c *Component) compareFacesEnhanced(idImage image.Image, idBox BoundingBox, selfie image.Image, selfieBox BoundingBox) FaceResult {
	idGray := cropRect(idImage, idBox, canonicalFaceSize)
	selfieGray := cropRect(selfie, selfieBox, canonicalFaceSize)

	structural := structuralSimilarity(idGray, selfieGray)
	histSim := cosineSimilarity(histogram256(idGray), histogram256(selfieGray))
	edgeSim := 1 - math.Abs(edgeDensity(idGray)-edgeDensity(selfieGray))
	textureSim := 1 - math.Abs(localVarianceTexture(idGray)-localVarianceTexture(selfieGray))

	score := 0.30*structural + 0.25*histSim + 0.25*edgeSim + 0.20*textureSim

	return FaceResult{
		Similarity: clamp01(score),
		Confidence: 1 - variance([]float64{structural, histSim, edgeSim, textureSim}),
		Diagnostics: map[string]float64{
			"structural_similarity": structural,
			"histogram_similarity":  histSim,
			"edge_similarity":       edgeSim,
			"texture_similarity":    textureSim,
		},
		Enhanced: true,
	}
}

// featureSimilarity combines histogram, LBP, edge-density and
// local-variance-texture into one cosine-compared feature vector.
func featureSimilarity(a, b *grayMatrix) float64 {
	fa := append(append(histogram256(a), lbpHistogram(a)...), edgeDensity(a), localVarianceTexture(a))
	fb := append(append(histogram256(b), lbpHistogram(b)...), edgeDensity(b), localVarianceTexture(b))
	return cosineSimilarity(fa, fb)
}

// structuralSimilarity is a simplified SSIM-like comparison of the raw
// pixel buffers: 1 minus the normalized absolute mean difference.
func structuralSimilarity(a, b *grayMatrix) float64 {
	fa, fb := a.flatten(), b.flatten()
	n := len(fa)
	if len(fb) < n {
		n = len(fb)
	}
	if n == 0 {
		return 0
	}
	var diff float64
	for i := 0; i < n; i++ {
		diff += math.Abs(fa[i] - fb[i])
	}
	return clamp01(1 - diff/float64(n))
}

func multiScaleCosine(idImage, selfie image.Image) float64 {
	var sum float64
	for _, size := range multiScaleSizes {
		a := resizeSquareGray(idImage, size)
		b := resizeSquareGray(selfie, size)
		sum += cosineSimilarity(a.flatten(), b.flatten())
	}
	return sum / float64(len(multiScaleSizes))
}

// qualityBoost rewards sharp, well-exposed, well-contrasted captures; it is
// added on top of the base score, capped at its 0.15 weight.
func qualityBoost(a, b *grayMatrix) float64 {
	q := func(m *grayMatrix) float64 {
		return 0.4*sharpness(m) + 0.3*brightnessOptimality(m) + 0.3*contrastScore(m)
	}
	mean := (q(a) + q(b)) / 2
	return 0.15 * mean
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return clamp01(sq / float64(len(vals)))
}
