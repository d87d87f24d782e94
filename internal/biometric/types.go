// Package biometric implements the Biometric Comparator component: face
// similarity between a selfie and the ID photograph, and passive liveness
// scoring of the selfie, both computed over pixel-space metrics with an
// optional face-detector enhancement path.
package biometric

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"
)

// BoundingBox is a detected face region in image pixel coordinates.
type BoundingBox struct {
	X, Y, W, H int
}

// FaceDetector is the optional enhancement capability: given an image,
// locate the primary face. Absence of this capability is a
// construction-time decision (NoopFaceDetector); the baseline
// center-crop path never branches on it at call sites.
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) (BoundingBox, bool, error)
}

// NoopFaceDetector always reports no face found, so the comparator falls
// back to the center-crop baseline path. Wired when no detector sidecar is
// configured.
type NoopFaceDetector struct{}

func (NoopFaceDetector) Detect(ctx context.Context, img image.Image) (BoundingBox, bool, error) {
	return BoundingBox{}, false, nil
}

// HTTPFaceDetector calls an external face-detection sidecar over HTTP,
// adapted from the gRPC-sidecar shape of a face-embedding extractor to a
// synchronous request/response contract appropriate for a request-local,
// non-streaming pipeline step.
type HTTPFaceDetector struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPFaceDetector(endpoint string, timeout time.Duration) *HTTPFaceDetector {
	return &HTTPFaceDetector{endpoint: endpoint, httpClient: &http.Client{Timeout: timeout}}
}

type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type detectResponse struct {
	FaceDetected bool `json:"face_detected"`
	BoundingBox  struct {
		X, Y, W, H int
	} `json:"bounding_box"`
}

func (d *HTTPFaceDetector) Detect(ctx context.Context, img image.Image) (BoundingBox, bool, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return BoundingBox{}, false, err
	}
	body, err := json.Marshal(detectRequest{ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes())})
	if err != nil {
		return BoundingBox{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return BoundingBox{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return BoundingBox{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return BoundingBox{}, false, fmt.Errorf("face detector returned status %d", resp.StatusCode)
	}

	var rb detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return BoundingBox{}, false, err
	}
	if !rb.FaceDetected {
		return BoundingBox{}, false, nil
	}
	return BoundingBox{X: rb.BoundingBox.X, Y: rb.BoundingBox.Y, W: rb.BoundingBox.W, H: rb.BoundingBox.H}, true, nil
}
