package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// Catalog pages separate department and number with a no-break space (&#160;),
// which \s alone does not match.
var (
	codePattern       = regexp.MustCompile(`([A-Z]{4})[\s\x{00A0}]*(\d{5})`)
	bareNumberPattern = regexp.MustCompile(`^[\s\x{00A0}]*(\d{5})\b`)
	codeTokenPattern  = regexp.MustCompile(`(?:[A-Z]{4}[\s\x{00A0}]*)?\d{5}`)
)

// ResolveCode extracts the first course code in title and returns it in the
// canonical "DEPT NNNNN" form.
func ResolveCode(title string) (string, bool) {
	m := codePattern.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return formatCode(m[1], m[2]), true
}

// resolveCrossListed resolves a "/"-separated title fragment. A fragment that
// only carries a number inherits dept from the primary code.
func resolveCrossListed(fragment, dept string) (string, bool) {
	if code, ok := ResolveCode(fragment); ok {
		return code, true
	}
	if dept == "" {
		return "", false
	}
	m := bareNumberPattern.FindStringSubmatch(fragment)
	if m == nil {
		return "", false
	}
	return formatCode(dept, m[1]), true
}

// stripCodes removes course-code tokens from a title so that identifiers are
// not indexed as words.
func stripCodes(title string) string {
	return codeTokenPattern.ReplaceAllString(title, " ")
}

func formatCode(dept, number string) string {
	return fmt.Sprintf("%s %s", dept, number)
}

// Department returns the department half of a canonical code.
func Department(code string) string {
	dept, _, _ := strings.Cut(code, " ")
	return dept
}
