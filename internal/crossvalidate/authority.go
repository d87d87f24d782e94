package crossvalidate

import "strings"

// authorityEquivalence maps a canonical issuing-authority name to every
// variant (postal abbreviation, DMV domain fragment, full name casing) the
// front OCR or back decode might produce for it.
var authorityEquivalence = map[string][]string{
	"california":   {"ca", "calif", "dmv.ca.gov", "california"},
	"new york":     {"ny", "nystate", "dmv.ny.gov", "new york"},
	"texas":        {"tx", "txdmv", "dmv.texas.gov", "texas"},
	"florida":      {"fl", "flhsmv", "flhsmv.gov", "florida"},
	"illinois":     {"il", "ilsos", "cyberdriveillinois.com", "illinois"},
	"pennsylvania": {"pa", "penndot", "dmv.pa.gov", "pennsylvania"},
	"ohio":         {"oh", "bmv", "bmv.ohio.gov", "ohio"},
	"georgia":      {"ga", "dds", "dds.ga.gov", "georgia"},
	"michigan":     {"mi", "sos", "michigan.gov/sos", "michigan"},
	"washington":   {"wa", "dol", "dol.wa.gov", "washington"},
}

func canonicalize(raw string) string {
	norm := strings.ToLower(strings.TrimSpace(raw))
	for canonical, variants := range authorityEquivalence {
		for _, v := range variants {
			if norm == v {
				return canonical
			}
		}
	}
	return norm
}

// AuthoritiesMatch reports whether a and b refer to the same issuing
// authority via the equivalence table, falling back to a bidirectional
// substring check. The relation is symmetric by construction: both
// directions of the substring check are applied regardless of argument
// order.
func AuthoritiesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ca, cb := canonicalize(a), canonicalize(b)
	if ca == cb {
		return true
	}
	na, nb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
