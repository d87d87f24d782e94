package ocrengine

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var dateTokenRe = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})\b`)

// NormalizedDate is a recognized calendar date with both render forms the
// component contract calls for.
type NormalizedDate struct {
	Year, Month, Day int
}

// MMDDYYYY renders the external display form.
func (d NormalizedDate) MMDDYYYY() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Month, d.Day, d.Year)
}

// YYYYMMDD renders the internal comparison form.
func (d NormalizedDate) YYYYMMDD() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// ParseDateToken parses one date-like token using the two-digit-year and
// day/month-order disambiguation rules: two-digit years greater than 30
// map to 19xx, else 20xx; if the first numeric component exceeds 12, it is
// assumed to be a day (DD/MM/YYYY), else month-first (MM/DD/YYYY).
func ParseDateToken(token string) (NormalizedDate, bool) {
	m := dateTokenRe.FindStringSubmatch(token)
	if m == nil {
		return NormalizedDate{}, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if len(m[3]) == 2 {
		if year > 30 {
			year += 1900
		} else {
			year += 2000
		}
	}

	var month, day int
	if a > 12 {
		day, month = a, b
	} else {
		month, day = a, b
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return NormalizedDate{}, false
	}
	return NormalizedDate{Year: year, Month: month, Day: day}, true
}

// FindDateTokens extracts every date-like token in text and parses it.
func FindDateTokens(text string) []NormalizedDate {
	matches := dateTokenRe.FindAllString(text, -1)
	out := make([]NormalizedDate, 0, len(matches))
	for _, m := range matches {
		if d, ok := ParseDateToken(m); ok {
			out = append(out, d)
		}
	}
	return out
}

// ClassifyBirthOrExpiry splits recognized dates into DOB and expiration
// candidates: dates on or after today are expiration candidates; dates
// with year in [1900, today-16yrs] are DOB candidates.
func ClassifyBirthOrExpiry(dates []NormalizedDate, now time.Time) (dob, expiry []NormalizedDate) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoffDOB := today.AddDate(-16, 0, 0)
	for _, d := range dates {
		t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
		if !t.Before(today) {
			expiry = append(expiry, d)
		}
		if d.Year >= 1900 && !t.After(cutoffDOB) {
			dob = append(dob, d)
		}
	}
	return dob, expiry
}
