package biometric

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func checkerboard(w, h int, seed int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := uint8(128)
			if (x/8+y/8)%2 == 0 {
				base = 80
			}
			noise := uint8(rng.Intn(20))
			img.Set(x, y, color.RGBA{base + noise, base + noise, base + noise, 255})
		}
	}
	return img
}

func solid(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestCompareFaces_IdenticalImagesScoreHigherThanUnrelated(t *testing.T) {
	c := NewComponent(nil, Thresholds{FaceMatchThreshold: 0.65, LivenessThreshold: 0.6})
	id := checkerboard(256, 256, 1)

	same := c.CompareFaces(context.Background(), id, id)
	different := c.CompareFaces(context.Background(), id, checkerboard(256, 256, 99))

	assert.Greater(t, same.Similarity, different.Similarity)
	assert.GreaterOrEqual(t, same.Similarity, 0.9)
}

func TestCompareFaces_UsesEnhancedPathWhenDetectorFindsBothFaces(t *testing.T) {
	detector := stubDetector{box: BoundingBox{X: 10, Y: 10, W: 100, H: 100}, found: true}
	c := NewComponent(detector, Thresholds{FaceMatchThreshold: 0.65, LivenessThreshold: 0.6})
	id := checkerboard(256, 256, 2)

	res := c.CompareFaces(context.Background(), id, id)
	assert.True(t, res.Enhanced)
}

func TestLiveness_GateBelowHalfZeroesOtherIndicators(t *testing.T) {
	c := NewComponent(nil, Thresholds{FaceMatchThreshold: 0.65, LivenessThreshold: 0.6})
	// Flat gray image with no skin tone or symmetry structure: the
	// traditional fallback heuristic should score the face gate low.
	flat := solid(400, 400, 128)

	res := c.Liveness(context.Background(), flat)
	if res.Diagnostics["face_in_circle"] < 0.5 {
		assert.Zero(t, res.Diagnostics["resolution"])
		assert.Equal(t, res.Diagnostics["face_in_circle"], res.Score)
	}
}

func TestLiveness_HigherResolutionScoresAtLeastAsWellAsLowRes(t *testing.T) {
	// The box center (125,125) lies inside the 200px image's face circle and
	// close enough to the 800px image's center that its gate stays >= 0.5,
	// so neither result has its resolution indicator zeroed.
	c := NewComponent(stubDetector{box: BoundingBox{X: 75, Y: 75, W: 100, H: 100}, found: true}, Thresholds{FaceMatchThreshold: 0.65, LivenessThreshold: 0.6})
	small := checkerboard(200, 200, 3)
	large := checkerboard(800, 800, 3)

	smallRes := c.Liveness(context.Background(), small)
	largeRes := c.Liveness(context.Background(), large)
	assert.GreaterOrEqual(t, largeRes.Diagnostics["resolution"], smallRes.Diagnostics["resolution"])
}

func TestProcess_FansOutFaceAndLivenessIndependently(t *testing.T) {
	c := NewComponent(nil, Thresholds{FaceMatchThreshold: 0.65, LivenessThreshold: 0.6})
	id := checkerboard(256, 256, 4)
	selfie := checkerboard(256, 256, 4)

	report := c.Process(context.Background(), id, selfie)
	assert.NotNil(t, report)
	assert.Contains(t, report.Diagnostics, "face_feature_similarity")
	assert.Contains(t, report.Diagnostics, "liveness_face_in_circle")
}

type stubDetector struct {
	box   BoundingBox
	found bool
}

func (s stubDetector) Detect(ctx context.Context, img image.Image) (BoundingBox, bool, error) {
	return s.box, s.found, nil
}
