package acquire

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bredec/policy-harvester/internal/crawl"
)

// ExtractLinks parses anchor elements from rendered markup. Anchor text is
// stripped of markup, relative hrefs are resolved against baseURL, and
// fragments are removed. Empty, javascript and mailto targets are dropped;
// relevance filtering is the classifier's job, not this function's.
func ExtractLinks(markup []byte, baseURL string) ([]crawl.LinkRef, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	var links []crawl.LinkRef
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
			return
		}

		ref, perr := url.Parse(href)
		if perr != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		links = append(links, crawl.LinkRef{
			URL:  resolved.String(),
			Text: collapseWhitespace(s.Text()),
		})
	})
	return links, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
