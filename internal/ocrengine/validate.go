package ocrengine

import "sparkfund/services/identity-verification/internal/domain"

// ValidationReport is the separate error/warning validation pass over
// extracted OcrFields.
type ValidationReport struct {
	Errors   []string
	Warnings []string
}

const lowConfidenceThreshold = 0.6

// Validate reports errors {missing_name, missing_document_number,
// invalid_dob, invalid_expiration} and warnings {document_expired,
// low_confidence}.
func Validate(fields *domain.OcrFields, now NormalizedDate) ValidationReport {
	var rep ValidationReport
	if fields == nil {
		rep.Errors = append(rep.Errors, "missing_name", "missing_document_number", "invalid_dob", "invalid_expiration")
		return rep
	}

	if _, ok := fields.Get(domain.FieldFullName); !ok {
		if _, ok2 := fields.Get(domain.FieldFirstName); !ok2 {
			rep.Errors = append(rep.Errors, "missing_name")
		}
	}
	if _, ok := fields.Get(domain.FieldDocumentNumber); !ok {
		rep.Errors = append(rep.Errors, "missing_document_number")
	}

	dobStr, dobOK := fields.Get(domain.FieldDateOfBirth)
	if !dobOK {
		rep.Errors = append(rep.Errors, "invalid_dob")
	} else if _, ok := ParseDateToken(dobStr); !ok {
		rep.Errors = append(rep.Errors, "invalid_dob")
	}

	expStr, expOK := fields.Get(domain.FieldExpirationDate)
	if !expOK {
		rep.Errors = append(rep.Errors, "invalid_expiration")
	} else if expDate, ok := ParseDateToken(expStr); !ok {
		rep.Errors = append(rep.Errors, "invalid_expiration")
	} else if expDate.YYYYMMDD() < now.YYYYMMDD() {
		rep.Warnings = append(rep.Warnings, "document_expired")
	}

	if fields.MeanConfidence() < lowConfidenceThreshold {
		rep.Warnings = append(rep.Warnings, "low_confidence")
	}

	return rep
}
