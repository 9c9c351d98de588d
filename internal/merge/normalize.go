package merge

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// symbols stripped from values before vote comparison. Display values keep
// their original formatting; this affects equality only.
const strippedSymbols = "$€£¥￥%,， "

// NormalizeValue canonicalizes a value for vote equality: surrounding
// whitespace and currency/percent symbols are stripped, and numeric strings
// are coerced to a canonical decimal form so "1,500" and "1500.00" count as
// the same vote. Non-numeric values compare as their stripped text.
func NormalizeValue(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedSymbols, r) {
			return -1
		}
		return r
	}, t)
	if stripped == "" {
		return t
	}
	if f, err := strconv.ParseFloat(stripped, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return stripped
}

// foldKey normalizes a grouping key: trimmed and case-folded. Used for the
// company half of the grouping key only; display casing is resolved by vote.
func foldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
