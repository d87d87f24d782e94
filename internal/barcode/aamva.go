// Package barcode implements the Back-ID Decoder: PDF417 decode, optional
// vision-model decode, OCR fallback, and the AAMVA field-code parser that
// always runs regardless of which earlier step produced text.
package barcode

import (
	"regexp"
	"strconv"
	"strings"

	"sparkfund/services/identity-verification/internal/domain"
)

// aamvaCodes maps the three-letter AAMVA element code to the recognized
// field name it carries.
var aamvaCodes = map[string]domain.FieldName{
	"DAA": domain.FieldFullName,
	"DAC": domain.FieldFirstName,
	"DAD": domain.FieldMiddleName,
	"DCS": domain.FieldLastName,
	"DBB": domain.FieldDateOfBirth,
	"DBA": domain.FieldExpirationDate,
	"DBD": domain.FieldIssueDate,
	"DAG": domain.FieldAddress,
	"DAI": domain.FieldCity,
	"DAJ": domain.FieldState,
	"DAK": domain.FieldZipCode,
	"DAQ": domain.FieldDocumentNumber,
	"DCF": domain.FieldDocumentDiscriminator,
	"DBC": domain.FieldSex,
	"DAY": domain.FieldEyeColor,
	"DAU": domain.FieldHeight,
	"DCE": domain.FieldWeight,
	"DCA": domain.FieldVehicleClass,
	"DCB": domain.FieldRestrictions,
	"DCD": domain.FieldEndorsements,
}

var elementCodes = func() []string {
	codes := make([]string, 0, len(aamvaCodes))
	for c := range aamvaCodes {
		codes = append(codes, c)
	}
	return codes
}()

// idPattern matches the three-letter element codes. ParseAAMVA takes each
// value as the text between the end of one code and the start of the next
// (or end-of-input), cut short at a record separator (0x1E) or line break.
var idPattern = regexp.MustCompile(`(` + strings.Join(elementCodes, "|") + `)`)

// ParseAAMVA runs the manual forward-scanning parser over raw AAMVA text
// and returns every recognized field it found, with dates and heights
// already re-encoded into the external display form.
func ParseAAMVA(raw string) map[domain.FieldName]string {
	body := strings.TrimPrefix(raw, "@")
	locs := idPattern.FindAllStringSubmatchIndex(body, -1)
	raw2 := map[string]string{}
	for i, loc := range locs {
		code := body[loc[2]:loc[3]]
		valStart := loc[3]
		valEnd := len(body)
		if i+1 < len(locs) {
			valEnd = locs[i+1][0]
		}
		value := body[valStart:valEnd]
		value = terminateValue(value)
		raw2[code] = value
	}

	out := make(map[domain.FieldName]string, len(raw2))
	for code, value := range raw2 {
		field, ok := aamvaCodes[code]
		if !ok || value == "" {
			continue
		}
		out[field] = reencode(field, value)
	}

	if _, ok := out[domain.FieldDocumentNumber]; !ok {
		if v, ok := looseLicenseNumber(body); ok {
			out[domain.FieldDocumentNumber] = v
		}
	}
	return out
}

// looseLicenseNumberRe is the retry pattern used when the strict DAQ
// element-code scan finds no document number: any alphanumeric run of
// plausible license-number length anywhere after a DAQ marker, tolerating
// stray separators the strict scan's terminator rules would reject.
var looseLicenseNumberRe = regexp.MustCompile(`DAQ[^A-Z0-9]*([A-Z0-9][A-Z0-9\-]{4,19})`)

func looseLicenseNumber(body string) (string, bool) {
	m := looseLicenseNumberRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// terminateValue cuts a raw field value at the first record separator,
// newline or carriage return; a value with none of these has trailing NUL
// bytes trimmed instead.
func terminateValue(v string) string {
	for i, r := range v {
		if r == 0x1E || r == '\n' || r == '\r' {
			return v[:i]
		}
	}
	return strings.TrimRight(v, "\x00")
}

// reencode applies the field-specific re-encoding rules: 8-digit dates to
// MM/DD/YYYY, 3-digit heights to F'-II".
func reencode(field domain.FieldName, value string) string {
	switch field {
	case domain.FieldDateOfBirth, domain.FieldExpirationDate, domain.FieldIssueDate:
		if d, ok := parseAAMVADate(value); ok {
			return d
		}
		return value
	case domain.FieldHeight:
		if h, ok := parseAAMVAHeight(value); ok {
			return h
		}
		return value
	default:
		return strings.TrimSpace(value)
	}
}

// parseAAMVADate parses an 8-digit AAMVA date field. YYYYMMDD is assumed if
// the first four digits exceed "1900"; otherwise MMDDYYYY.
func parseAAMVADate(v string) (string, bool) {
	digits := strings.TrimSpace(v)
	if len(digits) < 8 {
		return "", false
	}
	digits = digits[:8]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	first4, _ := strconv.Atoi(digits[:4])
	var year, month, day int
	if first4 > 1900 {
		year, _ = strconv.Atoi(digits[0:4])
		month, _ = strconv.Atoi(digits[4:6])
		day, _ = strconv.Atoi(digits[6:8])
	} else {
		month, _ = strconv.Atoi(digits[0:2])
		day, _ = strconv.Atoi(digits[2:4])
		year, _ = strconv.Atoi(digits[4:8])
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return pad2(month) + "/" + pad2(day) + "/" + strconv.Itoa(year), true
}

// parseAAMVAHeight parses a 3-digit packed height field (feet*100+inches)
// into the F'-II" display form.
func parseAAMVAHeight(v string) (string, bool) {
	digits := strings.TrimSpace(v)
	if len(digits) != 3 {
		return "", false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", false
	}
	feet := n / 100
	inches := n % 100
	return strconv.Itoa(feet) + "'-" + pad2(inches) + "\"", true
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
