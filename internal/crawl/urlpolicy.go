package crawl

import (
	"net/url"
	"path"
	"strings"
)

// documentExtensions are path extensions treated as downloadable documents
// rather than renderable pages.
var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".ppt":  true,
	".pptx": true,
	".rtf":  true,
}

// documentPathMarkers flag known document-repository URL shapes that carry
// no useful extension.
var documentPathMarkers = []string{
	"/download/",
	"/downloads/",
	"/attachment",
	"/getfile",
	"/getdocument",
	"/documentlibrary/",
	"/docs/",
}

// strongPathKeywords get the largest additive bonus when present in a path
// segment.
var strongPathKeywords = map[string]float64{
	"policy":     15,
	"policies":   15,
	"guideline":  15,
	"guidelines": 15,
	"procedure":  12,
	"procedures": 12,
	"protocol":   12,
	"protocols":  12,
}

// pathKeywords contribute smaller bonuses for policy-adjacent vocabulary.
var pathKeywords = map[string]float64{
	"regulation": 5,
	"compliance": 5,
	"governance": 4,
	"standard":   4,
	"directive":  4,
	"bylaw":      4,
	"rule":       3,
	"handbook":   3,
	"manual":     3,
	"code":       3,
}

// penaltyPathKeywords mark navigation dead ends.
var penaltyPathKeywords = []string{
	"login", "logout", "signin", "signup", "search", "contact",
}

// URLPolicy holds the pure admission and scoring rules for candidate URLs.
type URLPolicy struct {
	allowedDomains []string
}

// NewURLPolicy builds a policy restricted to the given domains. A domain
// matches exactly or as a suffix ("example.edu" admits "www.example.edu").
func NewURLPolicy(allowedDomains []string) URLPolicy {
	normalized := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return URLPolicy{allowedDomains: normalized}
}

// Normalize standardizes a URL for visited-set membership: lowercased
// scheme and host, fragment stripped.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

// IsAllowed reports whether a URL may enter the frontier. It rejects empty,
// anchor-only, javascript and mailto targets, non-http(s) schemes, hosts
// outside the domain allow-list, and URLs already visited.
func (p URLPolicy) IsAllowed(rawURL string, visited map[string]bool) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return false
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !p.domainAllowed(u.Hostname()) {
		return false
	}
	if visited != nil && visited[Normalize(trimmed)] {
		return false
	}
	return true
}

func (p URLPolicy) domainAllowed(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, d := range p.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsDocument reports whether a URL points at a downloadable document rather
// than a renderable page.
func (p URLPolicy) IsDocument(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if documentExtensions[ext] {
		return true
	}
	lowerPath := strings.ToLower(u.Path)
	for _, marker := range documentPathMarkers {
		if strings.Contains(lowerPath, marker) {
			return true
		}
	}
	return false
}

// Priority computes the heuristic crawl priority of a URL. The score is a
// hint for dequeue ordering, not a guarantee; ties are acceptable.
func (p URLPolicy) Priority(rawURL, linkText string) float64 {
	score := 1.0

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return score
	}

	lowerPath := strings.ToLower(u.Path)
	segments := splitPathSegments(lowerPath)

	for _, seg := range segments {
		if bonus, ok := strongPathKeywords[seg]; ok {
			score += bonus
			continue
		}
		if bonus, ok := pathKeywords[seg]; ok {
			score += bonus
			continue
		}
		// Keywords embedded inside longer segments still count, at the
		// strong rate for strong keywords.
		score += embeddedKeywordBonus(seg)
	}

	lowerText := strings.ToLower(linkText)
	if containsAnyKeyword(lowerText) {
		score += 4
	}

	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".pdf":
		score += 10
	case ".doc", ".docx":
		score += 8
	}

	score -= 0.5 * float64(len(segments))

	for _, kw := range penaltyPathKeywords {
		if strings.Contains(lowerPath, kw) {
			score -= 10
			break
		}
	}

	return score
}

func splitPathSegments(p string) []string {
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

func embeddedKeywordBonus(segment string) float64 {
	for kw, bonus := range strongPathKeywords {
		if strings.Contains(segment, kw) {
			return bonus
		}
	}
	for kw, bonus := range pathKeywords {
		if strings.Contains(segment, kw) {
			return bonus
		}
	}
	return 0
}

func containsAnyKeyword(text string) bool {
	for kw := range strongPathKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for kw := range pathKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
