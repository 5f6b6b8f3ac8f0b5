package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/crawl"
)

// truncationMarker is appended when content exceeds the character budget so
// the model knows it is looking at a prefix.
const truncationMarker = "\n\n[CONTENT TRUNCATED]"

const documentSystemPrompt = `You review documents from an institutional website and decide whether each one is a policy document: a policy, guideline, procedure, protocol, regulation, code, or similar governing document.

Respond ONLY with a JSON object of this exact shape:
{"contains_policy": true|false, "policy_title": "the document's title, or null", "reasoning": "one or two sentences"}

Do not include any other text.`

const pageSystemPrompt = `You review rendered web pages from an institutional website while hunting for policy documents (policies, guidelines, procedures, protocols, regulations, codes).

Given the page content and a numbered list of candidate links, respond ONLY with a JSON object of this exact shape:
{"include": true|false, "content": "the policy-relevant portion of the page content, or empty", "definite_links": ["urls that certainly lead to policy content"], "probable_links": ["urls that probably lead to policy content"], "reasoning": "one or two sentences"}

Only use URLs that appear in the candidate list. Do not include any other text.`

// Classifier implements crawl.Classifier on top of a chat-completions
// collaborator. Malformed model output never surfaces as an error: both
// call shapes degrade to a conservative verdict whose reasoning explains
// the failure.
type Classifier struct {
	completer       Completer
	maxContentChars int
	maxLinks        int
	logger          *zap.Logger
}

// New builds a Classifier. maxContentChars bounds how much content is sent
// per call; maxLinks caps the candidate list for page classification.
func New(completer Completer, maxContentChars, maxLinks int, logger *zap.Logger) *Classifier {
	if maxLinks <= 0 || maxLinks > 50 {
		maxLinks = 50
	}
	return &Classifier{
		completer:       completer,
		maxContentChars: maxContentChars,
		maxLinks:        maxLinks,
		logger:          logger,
	}
}

// documentResponse mirrors the JSON contract for single-document verdicts.
// Pointer fields distinguish absent keys from zero values.
type documentResponse struct {
	ContainsPolicy *bool   `json:"contains_policy"`
	PolicyTitle    *string `json:"policy_title"`
	Reasoning      string  `json:"reasoning"`
}

// pageResponse mirrors the JSON contract for page verdicts.
type pageResponse struct {
	Include       *bool    `json:"include"`
	Content       string   `json:"content"`
	DefiniteLinks []string `json:"definite_links"`
	ProbableLinks []string `json:"probable_links"`
	Reasoning     string   `json:"reasoning"`
}

// ClassifyDocument decides whether a single document is policy-bearing and
// extracts its title.
func (c *Classifier) ClassifyDocument(ctx context.Context, content, sourceURL string) (crawl.DocumentVerdict, error) {
	user := fmt.Sprintf("Source URL: %s\n\nDocument content:\n%s", sourceURL, c.truncate(content))

	raw, err := c.completer.Complete(ctx, documentSystemPrompt, user)
	if err != nil {
		return crawl.DocumentVerdict{}, fmt.Errorf("document classify call: %w", err)
	}

	var parsed documentResponse
	if perr := strictUnmarshal(raw, &parsed); perr != nil || parsed.ContainsPolicy == nil {
		crawl.TotalClassifierFallbacks.Inc()
		c.logger.Warn("Malformed document classification, using conservative default",
			zap.String("url", sourceURL), zap.Error(perr))
		return crawl.DocumentVerdict{
			ContainsPolicy: false,
			Reasoning:      malformedReasoning(perr),
		}, nil
	}

	verdict := crawl.DocumentVerdict{
		ContainsPolicy: *parsed.ContainsPolicy,
		Reasoning:      parsed.Reasoning,
	}
	if parsed.PolicyTitle != nil {
		verdict.PolicyTitle = strings.TrimSpace(*parsed.PolicyTitle)
	}
	return verdict, nil
}

// ClassifyPage decides whether a page is policy-relevant and sorts its
// candidate links into definite and probable follow-up tiers.
func (c *Classifier) ClassifyPage(ctx context.Context, content, sourceURL string, links []crawl.LinkRef) (crawl.PageVerdict, error) {
	if len(links) > c.maxLinks {
		links = links[:c.maxLinks]
	}

	var linkList strings.Builder
	for i, l := range links {
		fmt.Fprintf(&linkList, "%d. %s — %q\n", i+1, l.URL, l.Text)
	}

	user := fmt.Sprintf("Source URL: %s\n\nCandidate links:\n%s\nPage content:\n%s",
		sourceURL, linkList.String(), c.truncate(content))

	raw, err := c.completer.Complete(ctx, pageSystemPrompt, user)
	if err != nil {
		return crawl.PageVerdict{}, fmt.Errorf("page classify call: %w", err)
	}

	var parsed pageResponse
	if perr := strictUnmarshal(raw, &parsed); perr != nil || parsed.Include == nil {
		crawl.TotalClassifierFallbacks.Inc()
		c.logger.Warn("Malformed page classification, using conservative default",
			zap.String("url", sourceURL), zap.Error(perr))
		return crawl.PageVerdict{
			Include:   false,
			Reasoning: malformedReasoning(perr),
		}, nil
	}

	return crawl.PageVerdict{
		Include:       *parsed.Include,
		Content:       parsed.Content,
		DefiniteLinks: keepKnownLinks(parsed.DefiniteLinks, links),
		ProbableLinks: keepKnownLinks(parsed.ProbableLinks, links),
		Reasoning:     parsed.Reasoning,
	}, nil
}

// truncate enforces the character budget, marking cut content explicitly.
// The cut backs off to a rune boundary so the prompt stays valid UTF-8.
func (c *Classifier) truncate(content string) string {
	if c.maxContentChars <= 0 || len(content) <= c.maxContentChars {
		return content
	}
	cut := c.maxContentChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + truncationMarker
}

// strictUnmarshal extracts the first JSON object from model output and
// decodes it, rejecting unknown fields. Models wrap JSON in code fences
// often enough that the extraction step is warranted.
func strictUnmarshal(raw string, out interface{}) error {
	obj := extractJSONObject(raw)
	if obj == "" {
		return fmt.Errorf("no JSON object found in model output")
	}
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// keepKnownLinks drops model-invented URLs that were not in the candidate
// list.
func keepKnownLinks(urls []string, candidates []crawl.LinkRef) []string {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.URL] = true
	}
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if known[u] {
			kept = append(kept, u)
		}
	}
	return kept
}

func malformedReasoning(err error) string {
	if err == nil {
		return "classifier response was missing required fields; treating as non-policy"
	}
	return fmt.Sprintf("classifier response could not be parsed (%v); treating as non-policy", err)
}
