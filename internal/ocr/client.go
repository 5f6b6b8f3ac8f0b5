// Package ocr is the HTTP contract for the external OCR conversion
// collaborator that turns scanned documents into markdown.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/capture"
)

// Result is a successful OCR conversion. The collaborator fixes both the
// content and the capture timestamp; the caller must not reassign either.
type Result struct {
	Markdown    string
	TimestampID string
	Images      []capture.Image
}

// Config configures the OCR transport.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Client converts document URLs via the OCR collaborator.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client with a bounded request timeout.
func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type ocrRequest struct {
	Model    string `json:"model,omitempty"`
	Document struct {
		URL string `json:"url"`
	} `json:"document"`
	IncludeImages bool `json:"include_images"`
}

type ocrResponse struct {
	Markdown  string `json:"markdown"`
	Timestamp string `json:"timestamp"`
	Images    []struct {
		ID   string `json:"id"`
		Data string `json:"data"`
	} `json:"images"`
}

// Convert asks the collaborator to OCR the document at rawURL. Any failure
// is returned so the caller can fall back to a direct download.
func (c *Client) Convert(ctx context.Context, rawURL string) (Result, error) {
	if c.cfg.Endpoint == "" {
		return Result{}, fmt.Errorf("ocr endpoint not configured")
	}

	var reqBody ocrRequest
	reqBody.Model = c.cfg.Model
	reqBody.Document.URL = rawURL
	reqBody.IncludeImages = true

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("ocr endpoint returned status %d: %s", resp.StatusCode, snippet)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Markdown == "" {
		return Result{}, fmt.Errorf("ocr response contained no markdown")
	}

	result := Result{
		Markdown:    parsed.Markdown,
		TimestampID: parsed.Timestamp,
	}
	for _, img := range parsed.Images {
		data, derr := base64.StdEncoding.DecodeString(img.Data)
		if derr != nil {
			c.logger.Warn("Skipping undecodable OCR image",
				zap.String("url", rawURL),
				zap.String("image", img.ID),
				zap.Error(derr))
			continue
		}
		result.Images = append(result.Images, capture.Image{ID: img.ID, Data: data})
	}
	return result, nil
}
