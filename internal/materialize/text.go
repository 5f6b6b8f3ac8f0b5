package materialize

import (
	"regexp"
	"strings"
)

var (
	// linkOnlyLine matches lines that are nothing but a markdown link or
	// image, optionally wrapped in a list bullet.
	linkOnlyLine = regexp.MustCompile(`^\s*(?:[-*+]\s*)?!?\[[^\]]*\]\([^)]*\)\s*$`)
	// bareBulletLine matches list bullets with only a word or two, the
	// shape of navigation menus flattened to markdown.
	bareBulletLine = regexp.MustCompile(`^\s*[-*+]\s+\S+(?:\s+\S+)?\s*$`)
	// breadcrumbLine matches breadcrumb trails.
	breadcrumbLine = regexp.MustCompile(`^\s*(?:Home|You are here)\b.*(?:>|»|/).*$`)
)

// boilerplateLines are exact (case-insensitive, trimmed) lines dropped as
// site chrome.
var boilerplateLines = map[string]bool{
	"skip to main content": true,
	"skip to content":      true,
	"toggle navigation":    true,
	"print this page":      true,
	"share this page":      true,
	"back to top":          true,
	"cookie settings":      true,
}

// FilterText derives the plain-text artifact from a markdown body by
// dropping navigation-shaped lines. It only ever removes lines, so the
// result is never larger than the input.
func FilterText(markdown string) string {
	lines := strings.Split(markdown, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			kept = append(kept, "")
			continue
		}
		if linkOnlyLine.MatchString(line) {
			continue
		}
		if bareBulletLine.MatchString(line) {
			continue
		}
		if breadcrumbLine.MatchString(line) {
			continue
		}
		if boilerplateLines[strings.ToLower(trimmed)] {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.Join(kept, "\n")
	// Collapse runs of blank lines left behind by dropped blocks.
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}

var slugDisallowed = regexp.MustCompile(`[^a-z0-9]+`)

// maxSlugLength bounds folder name length; timestamps are appended after.
const maxSlugLength = 80

// Slugify turns a policy title into a filesystem-safe folder name prefix.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugDisallowed.ReplaceAllString(slug, "_")
	slug = strings.Trim(slug, "_")
	for strings.Contains(slug, "__") {
		slug = strings.ReplaceAll(slug, "__", "_")
	}
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "_")
	}
	if slug == "" {
		slug = "untitled_policy"
	}
	return slug
}
