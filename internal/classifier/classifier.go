// Package classifier decides whether a message body is spam against a keyword blocklist.
package classifier

import (
	"strings"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// Classify returns VerdictSpam when any term is a case-insensitive
// substring of body. Terms are matched as-is: an empty term matches
// everything, and there are no word boundaries.
func Classify(body string, terms []string) models.Verdict {
	if _, ok := Match(body, terms); ok {
		return models.VerdictSpam
	}
	return models.VerdictClean
}

// Match returns the first term found in body
func Match(body string, terms []string) (string, bool) {
	if len(terms) == 0 {
		return "", false
	}
	lower := strings.ToLower(body)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return term, true
		}
	}
	return "", false
}
