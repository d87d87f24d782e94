// Package vision provides the optional external multi-modal VisionModel
// capability: an image-plus-prompt interface returning JSON-structured
// answers, used for AI OCR and AI PDF417 decode when configured.
package vision

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

	"sparkfund/services/identity-verification/internal/domain"
)

// Answer is the structured response the model returns for one prompt.
type Answer struct {
	Found      bool
	Payload    string
	Confidence float64
	Fields     map[domain.FieldName]string
}

// Model is the VisionModel capability the Engine optionally consumes.
type Model interface {
	Ask(ctx context.Context, img image.Image, prompt string) (Answer, error)
}

// NoopModel always reports not-found, used when no vision model is
// configured. Absence of the capability is a construction-time decision.
type NoopModel struct{}

func (NoopModel) Ask(ctx context.Context, img image.Image, prompt string) (Answer, error) {
	return Answer{Found: false}, nil
}

// HTTPModel calls an external multi-modal endpoint over HTTP with a JSON
// body carrying the base64-encoded image and the prompt, and expects a
// JSON-structured answer back.
type HTTPModel struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewHTTPModel(endpoint, apiKey string, timeout time.Duration, maxRetries int) *HTTPModel {
	return &HTTPModel{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

type requestBody struct {
	ImageBase64 string `json:"image_base64"`
	Prompt      string `json:"prompt"`
}

type responseBody struct {
	Found      bool              `json:"found"`
	Payload    string            `json:"payload"`
	Confidence float64           `json:"confidence"`
	Fields     map[string]string `json:"fields"`
}

func (m *HTTPModel) Ask(ctx context.Context, img image.Image, prompt string) (Answer, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return Answer{}, domain.ExtractionFailure(err, "encode image for vision model")
	}

	body, err := json.Marshal(requestBody{
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Prompt:      prompt,
	})
	if err != nil {
		return Answer{}, domain.Fatal(err, "marshal vision request")
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		answer, err := m.doRequest(ctx, body)
		if err == nil {
			return answer, nil
		}
		lastErr = err
	}
	return Answer{}, domain.TransientError(lastErr, "vision model call failed after %d attempts", m.maxRetries+1)
}

func (m *HTTPModel) doRequest(ctx context.Context, body []byte) (Answer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Answer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("vision model returned status %d", resp.StatusCode)
	}

	var rb responseBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return Answer{}, err
	}

	fields := make(map[domain.FieldName]string, len(rb.Fields))
	for k, v := range rb.Fields {
		fields[domain.FieldName(k)] = v
	}
	return Answer{Found: rb.Found, Payload: rb.Payload, Confidence: rb.Confidence, Fields: fields}, nil
}
