package parser

import (
	"regexp"
	"strings"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// CodeDetector finds one-time codes in SMS bodies
type CodeDetector struct {
	patterns []codePattern
}

type codePattern struct {
	kind  string
	regex *regexp.Regexp
}

// NewCodeDetector creates a detector with patterns for English and Turkish senders
func NewCodeDetector() *CodeDetector {
	return &CodeDetector{
		patterns: []codePattern{
			{
				kind:  "otp",
				regex: regexp.MustCompile(`(?i)(?:code|kod|kodu|kodunuz|otp|şifre|sifre|password|parola)[\s:\-]*(\d{4,8})\b`),
			},
			{
				kind:  "verification",
				regex: regexp.MustCompile(`(?i)(?:verification|doğrulama|dogrulama|onay|confirm)[\s\p{L}]*[\s:\-]*(\d{4,8})\b`),
			},
			{
				kind:  "pin",
				regex: regexp.MustCompile(`(?i)\bpin[\s:\-]*(\d{4,6})\b`),
			},
			// Digits leading the message, e.g. "123456 is your code"
			{
				kind:  "code",
				regex: regexp.MustCompile(`^\s*(\d{4,8})\s+(?i:is|numaralı|ile)\b`),
			},
		},
	}
}

// DetectCodes finds all distinct codes in text, in pattern order
func (d *CodeDetector) DetectCodes(text string) []models.DetectedCode {
	var codes []models.DetectedCode
	seen := make(map[string]bool)

	for _, p := range d.patterns {
		for _, match := range p.regex.FindAllStringSubmatch(text, -1) {
			if len(match) < 2 {
				continue
			}
			code := strings.TrimSpace(match[1])
			if seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, models.DetectedCode{Type: p.kind, Value: code})
		}
	}

	return codes
}
