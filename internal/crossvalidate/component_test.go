package crossvalidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkfund/services/identity-verification/internal/domain"
)

func testThresholds() Thresholds {
	return Thresholds{
		CrossValidationThreshold: 0.7,
		AddressSimilarityPass:    0.7,
		WeightToleranceLbs:       5,
		HeightToleranceIn:        1,
	}
}

func frontFields(values map[domain.FieldName]string) *domain.OcrFields {
	f := domain.NewOcrFields()
	for k, v := range values {
		f.Values[k] = v
		f.Confidence[k] = 0.9
	}
	return f
}

func TestCompare_NilBackData_RequiresManualReview(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldDocumentNumber: "D1234567"})

	report := c.Compare(front, nil)

	assert.Equal(t, 0, report.TotalChecks)
	assert.True(t, report.RequiresManualReview)
	assert.False(t, report.OverallConsistent)
	assert.Equal(t, 0.6, report.MatchScore)
	assert.NotEmpty(t, report.ManualReviewReason)
}

func TestCompare_EmptyMergedFields_RequiresManualReview(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldDocumentNumber: "D1234567"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{}}

	report := c.Compare(front, back)

	assert.Equal(t, 0, report.TotalChecks)
	assert.True(t, report.RequiresManualReview)
	assert.False(t, report.OverallConsistent)
}

func TestCompare_ZeroTotalChecks_WhenNoComparableFields(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldVehicleClass: "C"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldRestrictions: "NONE",
	}}

	report := c.Compare(front, back)

	assert.Equal(t, 0, report.TotalChecks)
	assert.True(t, report.RequiresManualReview)
	assert.Equal(t, 0.6, report.MatchScore)
}

func TestCheckDocumentNumber_IgnoresInteriorSpaces(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldDocumentNumber: "D123 4567"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldDocumentNumber: "D1234567",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.Equal(t, 1, report.Matches)
	assert.True(t, report.FieldMatches[domain.CheckIDNumber])
	assert.Empty(t, report.Discrepancies)
}

func TestCheckDocumentNumber_MismatchRecordsDiscrepancy(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldDocumentNumber: "D1234567"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldDocumentNumber: "Z9999999",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.Equal(t, 0, report.Matches)
	assert.False(t, report.FieldMatches[domain.CheckIDNumber])
	assert.Contains(t, report.Discrepancies, "document number mismatch")
}

func TestCheckDOB_NormalizesSeparatorsBeforeComparing(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldDateOfBirth: "02/14/1990"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldDateOfBirth: "02-14-1990",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.True(t, report.FieldMatches[domain.CheckDOB])
}

func TestCheckDOB_DifferentDatesMismatch(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldDateOfBirth: "02/14/1990"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldDateOfBirth: "01/01/1975",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.False(t, report.FieldMatches[domain.CheckDOB])
	assert.Contains(t, report.Discrepancies, "date of birth mismatch")
}

func TestCheckHeight_WithinToleranceMatches(t *testing.T) {
	c := NewComponent(testThresholds())
	// 5'09" on front, 5-10 on back: 1 inch apart, tolerance is 1 inch.
	front := frontFields(map[domain.FieldName]string{domain.FieldHeight: "5'09\""})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldHeight: "5-10",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.True(t, report.FieldMatches[domain.CheckHeight])
}

func TestCheckHeight_BeyondToleranceMismatches(t *testing.T) {
	c := NewComponent(testThresholds())
	// 5'06" vs 5-10: 4 inches apart, tolerance is 1 inch.
	front := frontFields(map[domain.FieldName]string{domain.FieldHeight: "5'06\""})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldHeight: "5-10",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.False(t, report.FieldMatches[domain.CheckHeight])
	assert.Contains(t, report.Discrepancies, "height mismatch")
}

func TestCheckHeight_UnparseableValuesMismatch(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldHeight: "tall"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldHeight: "510",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.False(t, report.FieldMatches[domain.CheckHeight])
}

func TestCompare_MatchesNeverExceedsTotalChecksAndScoreStaysInRange(t *testing.T) {
	c := NewComponent(testThresholds())

	cases := []struct {
		name string
		back map[domain.FieldName]string
	}{
		{"all match", map[domain.FieldName]string{
			domain.FieldDocumentNumber: "D1234567", domain.FieldDateOfBirth: "02/14/1990",
			domain.FieldFirstName: "JANE", domain.FieldLastName: "DOE", domain.FieldSex: "F",
		}},
		{"all mismatch", map[domain.FieldName]string{
			domain.FieldDocumentNumber: "Z9999999", domain.FieldDateOfBirth: "01/01/1975",
			domain.FieldFirstName: "JOHN", domain.FieldLastName: "SMITH", domain.FieldSex: "M",
		}},
		{"partial overlap", map[domain.FieldName]string{
			domain.FieldDocumentNumber: "D1234567", domain.FieldDateOfBirth: "01/01/1975",
		}},
		{"empty", map[domain.FieldName]string{}},
	}

	front := frontFields(map[domain.FieldName]string{
		domain.FieldDocumentNumber: "D1234567", domain.FieldDateOfBirth: "02/14/1990",
		domain.FieldFirstName: "JANE", domain.FieldLastName: "DOE", domain.FieldSex: "F",
	})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			back := &domain.BackIdData{MergedFields: tc.back}
			report := c.Compare(front, back)

			assert.LessOrEqual(t, report.Matches, report.TotalChecks)
			assert.GreaterOrEqual(t, report.MatchScore, 0.0)
			assert.LessOrEqual(t, report.MatchScore, 1.0)
		})
	}
}

func TestAuthoritiesMatch_EquivalenceTableIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"California", "CA"},
		{"ca", "california"},
		{"dmv.ny.gov", "New York"},
		{"Texas", "txdmv"},
	}
	for _, p := range pairs {
		assert.True(t, AuthoritiesMatch(p[0], p[1]), "%s <-> %s forward", p[0], p[1])
		assert.True(t, AuthoritiesMatch(p[1], p[0]), "%s <-> %s reverse", p[1], p[0])
	}
}

func TestAuthoritiesMatch_SubstringFallbackIsSymmetric(t *testing.T) {
	a, b := "State of Nevada DMV", "Nevada"
	assert.Equal(t, AuthoritiesMatch(a, b), AuthoritiesMatch(b, a))
	assert.True(t, AuthoritiesMatch(a, b))
}

func TestAuthoritiesMatch_UnrelatedAuthoritiesDoNotMatch(t *testing.T) {
	assert.False(t, AuthoritiesMatch("California", "Texas"))
	assert.False(t, AuthoritiesMatch("Texas", "California"))
}

func TestAuthoritiesMatch_EmptyInputsNeverMatch(t *testing.T) {
	assert.False(t, AuthoritiesMatch("", "California"))
	assert.False(t, AuthoritiesMatch("California", ""))
}

func TestCheckAuthority_UsesEquivalenceTable(t *testing.T) {
	c := NewComponent(testThresholds())
	front := frontFields(map[domain.FieldName]string{domain.FieldIssuingAuthority: "CALIFORNIA"})
	back := &domain.BackIdData{MergedFields: map[domain.FieldName]string{
		domain.FieldState: "ca",
	}}

	report := c.Compare(front, back)

	require.Equal(t, 1, report.TotalChecks)
	assert.True(t, report.FieldMatches[domain.CheckAuthority])
}
