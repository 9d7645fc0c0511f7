package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser extracts the SMS text from HTML gateway emails
type HTMLParser struct {
	selector        string
	whitespaceRegex *regexp.Regexp
	invisibleRegex  *regexp.Regexp
}

// NewHTMLParser creates a parser. When selector is set only the text of
// the first matching element is kept, which drops gateway banners and footers.
func NewHTMLParser(selector string) *HTMLParser {
	return &HTMLParser{
		selector:        selector,
		whitespaceRegex: regexp.MustCompile(`[\t\f\r\v\p{Zs}]+`),
		// Zero-width and other invisible characters some gateways inject
		invisibleRegex: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{180E}\x{2060}-\x{2064}\x{FE00}-\x{FE0F}]+`),
	}
}

// Parse converts HTML to plain SMS text
func (p *HTMLParser) Parse(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, head, meta, link").Remove()

	root := doc.Selection
	if p.selector != "" {
		if found := doc.Find(p.selector).First(); found.Length() > 0 {
			root = found
		}
	}

	// Block elements start a new line
	root.Find("p, div, br, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := p.invisibleRegex.ReplaceAllString(root.Text(), "")
	text = p.whitespaceRegex.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n"), nil
}
