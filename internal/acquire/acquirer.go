package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/capture"
	"github.com/bredec/policy-harvester/internal/crawl"
	"github.com/bredec/policy-harvester/internal/ocr"
)

// ErrEmptyContent indicates an acquisition produced no usable content. The
// scheduler marks the URL visited and continues.
var ErrEmptyContent = errors.New("acquisition produced no content")

// OCRConverter converts a document URL via the external OCR collaborator.
type OCRConverter interface {
	Convert(ctx context.Context, rawURL string) (ocr.Result, error)
}

// Acquirer implements the content-acquisition fallback chain. Documents go
// OCR first, then download-and-convert; pages go through the browser
// render. Every acquisition is written to the raw capture store.
type Acquirer struct {
	policy     crawl.URLPolicy
	renderer   Renderer
	downloader Downloader
	ocr        OCRConverter
	markdown   *MarkdownConverter
	captures   *capture.Store
	logger     *zap.Logger
}

// New constructs an Acquirer. The OCR converter may be nil, in which case
// documents always take the download path.
func New(
	policy crawl.URLPolicy,
	renderer Renderer,
	downloader Downloader,
	ocrConverter OCRConverter,
	captures *capture.Store,
	logger *zap.Logger,
) *Acquirer {
	return &Acquirer{
		policy:     policy,
		renderer:   renderer,
		downloader: downloader,
		ocr:        ocrConverter,
		markdown:   NewMarkdownConverter(),
		captures:   captures,
		logger:     logger,
	}
}

// Navigate opens a URL in the shared browser session without scraping it.
func (a *Acquirer) Navigate(ctx context.Context, rawURL string) error {
	return a.renderer.Navigate(ctx, rawURL)
}

// Acquire obtains markdown for a URL, writes the raw capture, and returns
// outbound links for pages. Documents never yield links.
func (a *Acquirer) Acquire(ctx context.Context, rawURL string, depth int) (crawl.AcquireResult, error) {
	if a.policy.IsDocument(rawURL) {
		return a.acquireDocument(ctx, rawURL, depth)
	}
	return a.acquirePage(ctx, rawURL, depth)
}

// acquireDocument runs the strictly ordered document chain: OCR first; on
// OCR failure, download the bytes and convert by file type. The chain
// short-circuits on first success.
func (a *Acquirer) acquireDocument(ctx context.Context, rawURL string, depth int) (crawl.AcquireResult, error) {
	if a.ocr != nil {
		res, err := a.ocr.Convert(ctx, rawURL)
		if err == nil {
			return a.storeOCRResult(rawURL, depth, res)
		}
		a.logger.Warn("OCR conversion failed, falling back to download",
			zap.String("url", rawURL), zap.Error(err))
	}

	dl, err := a.downloader.Download(ctx, rawURL)
	if err != nil {
		return crawl.AcquireResult{}, fmt.Errorf("download %s: %w", rawURL, err)
	}

	markdown := a.convertDownload(rawURL, dl)
	if strings.TrimSpace(markdown) == "" {
		return crawl.AcquireResult{}, ErrEmptyContent
	}

	rawCap, err := a.captures.Put(markdown, rawURL, depth, capture.NewTimestampID(), nil)
	if err != nil {
		return crawl.AcquireResult{}, fmt.Errorf("store document capture: %w", err)
	}
	return crawl.AcquireResult{Markdown: markdown, Capture: rawCap}, nil
}

func (a *Acquirer) storeOCRResult(rawURL string, depth int, res ocr.Result) (crawl.AcquireResult, error) {
	ts := res.TimestampID
	if !capture.ValidTimestampID(ts) {
		a.logger.Warn("OCR returned no usable timestamp, assigning fresh id",
			zap.String("url", rawURL), zap.String("timestamp", ts))
		ts = capture.NewTimestampID()
	}
	rawCap, err := a.captures.Put(res.Markdown, rawURL, depth, ts, res.Images)
	if err != nil {
		return crawl.AcquireResult{}, fmt.Errorf("store ocr capture: %w", err)
	}
	return crawl.AcquireResult{Markdown: res.Markdown, Capture: rawCap}, nil
}

// convertDownload picks a converter by file type. Unknown types produce an
// error placeholder document explaining the failure rather than an error.
func (a *Acquirer) convertDownload(rawURL string, dl Download) string {
	kind := documentKind(rawURL, dl.ContentType)
	switch kind {
	case "pdf":
		text, err := pdfText(dl.Body)
		if err != nil {
			a.logger.Warn("PDF text extraction failed",
				zap.String("url", rawURL), zap.Error(err))
			return placeholderMarkdown(rawURL, fmt.Sprintf("PDF text extraction failed: %v", err))
		}
		return text
	case "docx":
		text, err := docxText(dl.Body)
		if err != nil {
			a.logger.Warn("Word text extraction failed",
				zap.String("url", rawURL), zap.Error(err))
			return placeholderMarkdown(rawURL, fmt.Sprintf("Word text extraction failed: %v", err))
		}
		return text
	case "html":
		// Document-repository URLs sometimes serve plain pages. Convert
		// the page source instead of refusing.
		md, err := a.markdown.Convert(string(dl.Body), dl.FinalURL)
		if err != nil || strings.TrimSpace(md) == "" {
			return placeholderMarkdown(rawURL, "page-source conversion of a document URL produced no content")
		}
		return md
	default:
		return placeholderMarkdown(rawURL, fmt.Sprintf("unsupported document type %q", dl.ContentType))
	}
}

func documentKind(rawURL, contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return "pdf"
	case strings.Contains(ct, "wordprocessingml"), strings.Contains(ct, "msword"):
		return "docx"
	case strings.Contains(ct, "text/html"):
		return "html"
	}

	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	switch ext {
	case ".pdf":
		return "pdf"
	case ".doc", ".docx":
		return "docx"
	case "", ".htm", ".html", ".aspx", ".php":
		return "html"
	}
	return "unknown"
}

// acquirePage renders the page, converts the markup to markdown, and
// extracts outbound anchors. There is no further fallback for pages.
func (a *Acquirer) acquirePage(ctx context.Context, rawURL string, depth int) (crawl.AcquireResult, error) {
	page, err := a.renderer.Render(ctx, rawURL)
	if err != nil {
		return crawl.AcquireResult{}, fmt.Errorf("render %s: %w", rawURL, err)
	}

	markdown, err := a.markdown.Convert(string(page.Body), page.FinalURL)
	if err != nil {
		return crawl.AcquireResult{}, fmt.Errorf("convert %s: %w", rawURL, err)
	}
	if strings.TrimSpace(markdown) == "" {
		return crawl.AcquireResult{}, ErrEmptyContent
	}

	links, err := ExtractLinks(page.Body, page.FinalURL)
	if err != nil {
		a.logger.Warn("Link extraction failed", zap.String("url", rawURL), zap.Error(err))
		links = nil
	}

	rawCap, err := a.captures.Put(markdown, rawURL, depth, capture.NewTimestampID(), nil)
	if err != nil {
		return crawl.AcquireResult{}, fmt.Errorf("store page capture: %w", err)
	}
	return crawl.AcquireResult{Markdown: markdown, Capture: rawCap, Links: links}, nil
}
