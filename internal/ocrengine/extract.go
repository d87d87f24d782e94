package ocrengine

import (
	"regexp"
	"strings"
	"time"

	"sparkfund/services/identity-verification/internal/domain"
)

// confidence bands fixed by the pattern that matched a field.
const (
	confStrictLow  = 0.85
	confStrictHigh = 0.90
	confShapeLow   = 0.4
	confShapeHigh  = 0.6
)

// fieldPattern pairs a field with its patterns: labeled matches a
// "LABEL: VALUE" style strict field; shape matches the value shape alone
// with no label, used as a weaker fallback.
type fieldPattern struct {
	field   domain.FieldName
	labeled *regexp.Regexp
	shape   *regexp.Regexp
}

// namePattern matches a label followed by exactly a first and last name
// token. It deliberately does not greedily consume further capitalized
// words, since single-block recognized text runs labels together on one
// line (e.g. "NAME: JANE DOE DOB 02/14/1990") and an unbounded repeat would
// swallow the next label's value too.
func namePattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + label + `\s*[:\-]?\s*([A-Z][A-Za-z'\-]+\s+[A-Z][A-Za-z'\-]+)\b`)
}

var commonPatterns = []fieldPattern{
	{field: domain.FieldDocumentNumber, labeled: regexp.MustCompile(`(?i)(?:DL|ID|LIC(?:ENSE)?|DOCUMENT)\s*(?:NO|NUMBER|#)?\s*[:\-]?\s*([A-Z0-9\-]{5,20})`), shape: regexp.MustCompile(`\b([A-Z]\d{7,9})\b`)},
	{field: domain.FieldFullName, labeled: namePattern(`NAME`)},
	{field: domain.FieldAddress, labeled: regexp.MustCompile(`(?i)ADDRESS\s*[:\-]?\s*([0-9][A-Za-z0-9 .,#\-]{5,60})`)},
	{field: domain.FieldSex, labeled: regexp.MustCompile(`(?i)SEX\s*[:\-]?\s*([MFX])\b`)},
	{field: domain.FieldHeight, labeled: regexp.MustCompile(`(?i)H(?:G?T)?\s*[:\-]?\s*(\d'-?\d{1,2}"?|\d{3})`)},
	{field: domain.FieldWeight, labeled: regexp.MustCompile(`(?i)WG?T\s*[:\-]?\s*(\d{2,3})`)},
	{field: domain.FieldEyeColor, labeled: regexp.MustCompile(`(?i)EYES?\s*[:\-]?\s*([A-Z]{3})`)},
	{field: domain.FieldIssuingAuthority, labeled: regexp.MustCompile(`(?i)(?:STATE OF|ISSUED BY)\s*[:\-]?\s*([A-Z]+)\b`)},
}

var passportPatterns = append(append([]fieldPattern{}, commonPatterns...),
	fieldPattern{field: domain.FieldNationality, labeled: regexp.MustCompile(`(?i)NATIONALITY\s*[:\-]?\s*([A-Z]{3,20})`)},
)

var driversLicensePatterns = append(append([]fieldPattern{}, commonPatterns...),
	fieldPattern{field: domain.FieldVehicleClass, labeled: regexp.MustCompile(`(?i)CLASS\s*[:\-]?\s*([A-Z0-9]{1,3})`)},
	fieldPattern{field: domain.FieldRestrictions, labeled: regexp.MustCompile(`(?i)REST(?:RICTIONS)?\s*[:\-]?\s*([A-Z0-9]{1,10})`)},
	fieldPattern{field: domain.FieldEndorsements, labeled: regexp.MustCompile(`(?i)END(?:ORSEMENTS)?\s*[:\-]?\s*([A-Z0-9]{1,10})`)},
)

func patternsFor(docType domain.DocumentType) []fieldPattern {
	switch docType {
	case domain.DocumentPassport:
		return passportPatterns
	case domain.DocumentDriversLicense, domain.DocumentNationalID:
		return driversLicensePatterns
	default:
		return commonPatterns
	}
}

// cleanText collapses all whitespace runs to a single space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractFields applies document-type pattern dispatch to raw recognized
// text and returns populated OcrFields with per-field confidence.
func ExtractFields(raw RawResult, docType domain.DocumentType, now time.Time) *domain.OcrFields {
	text := cleanText(raw.Text)
	fields := domain.NewOcrFields()
	fields.RawText = text

	for _, p := range patternsFor(docType) {
		if p.labeled != nil {
			if m := p.labeled.FindStringSubmatch(text); m != nil {
				setField(fields, p.field, strings.TrimSpace(m[1]), randBand(confStrictLow, confStrictHigh, p.field))
				continue
			}
		}
		if p.shape != nil {
			if m := p.shape.FindStringSubmatch(text); m != nil {
				setField(fields, p.field, strings.TrimSpace(m[1]), randBand(confShapeLow, confShapeHigh, p.field))
			}
		}
	}

	assignDates(fields, text, now)
	splitName(fields)

	fields.QualityScore = scaleQuality(raw.MeanConfidence/100.0, len(raw.Text))
	return fields
}

// setField records value and confidence only for a field that is not yet
// set: the first pattern to match a field wins, and later matches never
// change its value or confidence.
func setField(fields *domain.OcrFields, name domain.FieldName, value string, confidence float64) {
	if value == "" {
		return
	}
	if existing, ok := fields.Values[name]; ok && existing != "" {
		return
	}
	fields.Values[name] = value
	fields.Confidence[name] = confidence
}

// randBand picks the deterministic midpoint of a confidence band. The
// pipeline's confidence values are fixed by which pattern matched, not by
// a randomized draw — matching the "no randomness in scoring" rule applied
// pipeline-wide.
func randBand(low, high float64, _ domain.FieldName) float64 {
	return (low + high) / 2
}

func assignDates(fields *domain.OcrFields, text string, now time.Time) {
	dates := FindDateTokens(text)
	if len(dates) == 0 {
		return
	}
	dob, expiry := ClassifyBirthOrExpiry(dates, now)
	if len(dob) > 0 {
		setField(fields, domain.FieldDateOfBirth, dob[0].MMDDYYYY(), confStrictHigh)
	}
	if len(expiry) > 0 {
		setField(fields, domain.FieldExpirationDate, expiry[0].MMDDYYYY(), confStrictHigh)
	}
}

var fullNameSplitRe = regexp.MustCompile(`^([A-Z][A-Za-z'\-]+)\s+(?:([A-Z])\.?\s+)?([A-Z][A-Za-z'\-]+)$`)

// splitName derives first/middle/last from a recognized full name when
// those are not already separately labeled.
func splitName(fields *domain.OcrFields) {
	full, ok := fields.Get(domain.FieldFullName)
	if !ok {
		return
	}
	if _, has := fields.Get(domain.FieldFirstName); has {
		return
	}
	m := fullNameSplitRe.FindStringSubmatch(full)
	if m == nil {
		return
	}
	setField(fields, domain.FieldFirstName, m[1], confShapeHigh)
	if m[2] != "" {
		setField(fields, domain.FieldMiddleName, m[2], confShapeLow)
	}
	setField(fields, domain.FieldLastName, m[3], confShapeHigh)
}

// scaleQuality applies the quality-score penalty bands from the OCR
// component contract.
func scaleQuality(base float64, chars int) float64 {
	switch {
	case chars < 50:
		return base * 0.7
	case chars > 2000:
		return base * 0.8
	default:
		return base
	}
}
