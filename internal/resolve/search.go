package resolve

import (
	"regexp"
	"strings"
)

// legalSuffixes lists company-form suffixes stripped for search.
var legalSuffixes = []string{
	" COMPANY LIMITED", " CO LIMITED", " CO LTD", " CO. LTD", " CO. LTD.",
	" LIMITED", " LTD", " LTD.",
	" PLC", " P.L.C.",
	" LLC", " L.L.C.",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" ENTERPRISES", " ENTERPRISE",
	" CO", " CO.",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// SearchKey folds a supplier name for free-text search:
//  1. Trimming whitespace
//  2. Converting to uppercase
//  3. Removing one legal suffix (Ltd, Limited, PLC, ...)
//  4. Stripping punctuation (commas, periods, dashes, ampersands)
//  5. Collapsing multiple spaces into single spaces
//
// It merges near-duplicates aggressively and must never feed award counts.
func SearchKey(name string) string {
	name = NormalizeName(name)
	if name == "" {
		return ""
	}

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Matches reports whether a supplier with the given id and name matches a
// search query. The query matches a case-insensitive id prefix or a SearchKey
// substring.
func Matches(query, id, name string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return true
	}
	if strings.HasPrefix(strings.ToUpper(id), strings.ToUpper(q)) {
		return true
	}
	qk := SearchKey(q)
	return qk != "" && strings.Contains(SearchKey(name), qk)
}
