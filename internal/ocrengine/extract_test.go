package ocrengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkfund/services/identity-verification/internal/domain"
)

func TestExtractFields_DriversLicenseHappyPath(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	raw := RawResult{
		Text: "NAME: JANE DOE DOB 02/14/1990 EXP 05/10/2030 DL NUMBER D1234567 " +
			"STATE OF CALIFORNIA SEX F",
		MeanConfidence:  88,
		RecognizedChars: 120,
	}

	fields := ExtractFields(raw, domain.DocumentDriversLicense, now)

	name, ok := fields.Get(domain.FieldFullName)
	require.True(t, ok)
	assert.Equal(t, "JANE DOE", name)

	docNum, ok := fields.Get(domain.FieldDocumentNumber)
	require.True(t, ok)
	assert.Equal(t, "D1234567", docNum)

	dob, ok := fields.Get(domain.FieldDateOfBirth)
	require.True(t, ok)
	assert.Equal(t, "02/14/1990", dob)

	exp, ok := fields.Get(domain.FieldExpirationDate)
	require.True(t, ok)
	assert.Equal(t, "05/10/2030", exp)
}

func TestExtractFields_LowConfidenceShortText(t *testing.T) {
	now := time.Now()
	raw := RawResult{Text: "X", MeanConfidence: 40, RecognizedChars: 1}
	fields := ExtractFields(raw, domain.DocumentGeneric, now)
	assert.Less(t, fields.QualityScore, 0.4)
}

func TestValidate_ReportsMissingFields(t *testing.T) {
	fields := domain.NewOcrFields()
	rep := Validate(fields, NormalizedDate{Year: 2026, Month: 7, Day: 31})
	assert.Contains(t, rep.Errors, "missing_name")
	assert.Contains(t, rep.Errors, "missing_document_number")
	assert.Contains(t, rep.Errors, "invalid_dob")
	assert.Contains(t, rep.Errors, "invalid_expiration")
}

func TestValidate_FlagsExpiredDocument(t *testing.T) {
	fields := domain.NewOcrFields()
	fields.Values[domain.FieldFullName] = "JANE DOE"
	fields.Values[domain.FieldDocumentNumber] = "D1234567"
	fields.Values[domain.FieldDateOfBirth] = "02/14/1990"
	fields.Values[domain.FieldExpirationDate] = "01/01/2020"
	fields.Confidence[domain.FieldFullName] = 0.9
	fields.Confidence[domain.FieldDocumentNumber] = 0.9

	rep := Validate(fields, NormalizedDate{Year: 2026, Month: 7, Day: 31})
	assert.Contains(t, rep.Warnings, "document_expired")
}
