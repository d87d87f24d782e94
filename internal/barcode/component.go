package barcode

import (
	"context"
	"image"
	"time"

	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/ocrengine"
	"sparkfund/services/identity-verification/internal/vision"
)

const visionPrompt = "Read the PDF417 barcode on this ID. Return the exact raw payload text and your confidence."

var criticalFields = []domain.FieldName{
	domain.FieldFirstName, domain.FieldLastName, domain.FieldDocumentNumber, domain.FieldDateOfBirth,
}

// Component is the Back-ID Decoder: PDF417 decode, optional vision decode,
// OCR fallback, AAMVA parse-and-merge, and validation classification.
type Component struct {
	reader Pdf417Reader
	vision vision.Model
	ocr    ocrengine.Ocr
}

func NewComponent(reader Pdf417Reader, visionModel vision.Model, ocr ocrengine.Ocr) *Component {
	return &Component{reader: reader, vision: visionModel, ocr: ocr}
}

// Process runs the full back-of-ID decode sequence and returns the
// composed BackIdData.
func (c *Component) Process(ctx context.Context, img image.Image) (*domain.BackIdData, error) {
	rawText, found := c.attemptHardwareDecode(ctx, img)

	var ocrFields *domain.OcrFields
	var synthesizedPayload *domain.Pdf417Payload

	if !found {
		rawText, found = c.attemptVisionDecode(ctx, img)
	}

	if !found {
		ocrFields, synthesizedPayload = c.attemptOCRFallback(ctx, img)
	}

	manual := map[domain.FieldName]string{}
	if rawText != "" {
		manual = ParseAAMVA(rawText)
	}

	payload := buildPayload(rawText, manual, synthesizedPayload)

	merged := mergeFields(payload, ocrFields)

	return &domain.BackIdData{
		Pdf417:       payload,
		Ocr:          ocrFields,
		MergedFields: merged,
	}, nil
}

func (c *Component) attemptHardwareDecode(ctx context.Context, img image.Image) (string, bool) {
	text, found, err := c.reader.Decode(ctx, img)
	if err != nil || !found {
		return "", false
	}
	return text, true
}

func (c *Component) attemptVisionDecode(ctx context.Context, img image.Image) (string, bool) {
	answer, err := c.vision.Ask(ctx, img, visionPrompt)
	if err != nil || !answer.Found || answer.Payload == "" {
		return "", false
	}
	return answer.Payload, true
}

func (c *Component) attemptOCRFallback(ctx context.Context, img image.Image) (*domain.OcrFields, *domain.Pdf417Payload) {
	raw, err := c.ocr.Recognize(ctx, img, ocrengine.BackFallbackOpts())
	if err != nil {
		return nil, nil
	}
	fields := ocrengine.ExtractFields(raw, domain.DocumentGeneric, time.Now())

	if _, ok := fields.Get(domain.FieldDocumentNumber); !ok {
		return fields, nil
	}
	return fields, &domain.Pdf417Payload{
		Parsed:     copyFields(fields.Values),
		Confidence: 0.6,
		Validation: domain.Pdf417Partial,
	}
}

func buildPayload(rawText string, manual map[domain.FieldName]string, synthesized *domain.Pdf417Payload) *domain.Pdf417Payload {
	if rawText == "" && synthesized != nil {
		return classify(synthesized)
	}
	if rawText == "" {
		return classify(&domain.Pdf417Payload{Parsed: map[domain.FieldName]string{}, Validation: domain.Pdf417Invalid})
	}
	return classify(&domain.Pdf417Payload{RawText: rawText, Parsed: manual})
}

// classify applies the missing-critical-field validation ladder and
// populated-field confidence formula.
func classify(p *domain.Pdf417Payload) *domain.Pdf417Payload {
	if p.Parsed == nil {
		p.Parsed = map[domain.FieldName]string{}
	}
	missingCritical := 0
	for _, f := range criticalFields {
		if v, ok := p.Parsed[f]; !ok || v == "" {
			missingCritical++
		}
	}
	switch {
	case missingCritical > 2:
		p.Validation = domain.Pdf417Invalid
	case missingCritical >= 1:
		p.Validation = domain.Pdf417Partial
	default:
		p.Validation = domain.Pdf417Valid
	}

	if p.Confidence == 0 {
		totalFields := 10
		populated := len(p.Parsed)
		conf := float64(populated) / float64(maxInt(totalFields, populated))
		if conf > 0.95 {
			conf = 0.95
		}
		p.Confidence = conf
	}
	return p
}

// mergeFields merges barcode-parsed fields into OCR-extracted fields: the
// barcode wins for every field it populates.
func mergeFields(payload *domain.Pdf417Payload, ocr *domain.OcrFields) map[domain.FieldName]string {
	merged := map[domain.FieldName]string{}
	if ocr != nil {
		for k, v := range ocr.Values {
			merged[k] = v
		}
	}
	if payload != nil {
		for k, v := range payload.Parsed {
			if v != "" {
				merged[k] = v
			}
		}
	}
	return merged
}

func copyFields(m map[domain.FieldName]string) map[domain.FieldName]string {
	out := make(map[domain.FieldName]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
