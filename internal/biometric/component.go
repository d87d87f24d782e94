package biometric

import (
	"context"
	"image"

	"sparkfund/services/identity-verification/internal/domain"
)

// Thresholds carries the configured floors the comparator consults.
type Thresholds struct {
	FaceMatchThreshold float64
	LivenessThreshold  float64
}

// Component is the Biometric Comparator.
type Component struct {
	faceDetector FaceDetector
	thresholds   Thresholds
}

// NewComponent wires an optional FaceDetector capability plus thresholds.
// A nil detector is replaced with NoopFaceDetector so call sites never
// branch on capability presence.
func NewComponent(detector FaceDetector, t Thresholds) *Component {
	if detector == nil {
		detector = NoopFaceDetector{}
	}
	return &Component{faceDetector: detector, thresholds: t}
}

// Process compares the selfie against the ID photograph and scores passive
// liveness of the selfie, per the request-local concurrency model: the two
// fan out independently since neither depends on the other's result.
func (c *Component) Process(ctx context.Context, idImage, selfie image.Image) *domain.BiometricReport {
	type faceOut struct{ res FaceResult }
	type liveOut struct{ res LivenessResult }

	faceCh := make(chan faceOut, 1)
	liveCh := make(chan liveOut, 1)

	go func() { faceCh <- faceOut{c.CompareFaces(ctx, idImage, selfie)} }()
	go func() { liveCh <- liveOut{c.Liveness(ctx, selfie)} }()

	face := (<-faceCh).res
	live := (<-liveCh).res

	diagnostics := map[string]float64{}
	for k, v := range face.Diagnostics {
		diagnostics["face_"+k] = v
	}
	for k, v := range live.Diagnostics {
		diagnostics["liveness_"+k] = v
	}

	return &domain.BiometricReport{
		FaceSimilarity: face.Similarity,
		LivenessScore:  live.Score,
		FacePassed:     face.Similarity >= c.thresholds.FaceMatchThreshold,
		LivenessPassed: live.Score >= c.thresholds.LivenessThreshold,
		Diagnostics:    diagnostics,
	}
}
