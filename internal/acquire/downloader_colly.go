package acquire

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Download is the raw result of fetching a document URL.
type Download struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Downloader fetches raw document bytes.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (Download, error)
}

// DownloaderConfig controls the document download transport.
type DownloaderConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
}

// CollyDownloader implements Downloader using the Colly collector.
type CollyDownloader struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyDownloader constructs a configured Colly-based Downloader.
func NewCollyDownloader(cfg DownloaderConfig, logger *zap.Logger) (*CollyDownloader, error) {
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyDownloader{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Download retrieves the raw bytes of a single URL.
func (d *CollyDownloader) Download(ctx context.Context, rawURL string) (Download, error) {
	collector := d.baseCollector.Clone()
	resultCh := make(chan downloadResult, 1)
	var once sync.Once
	send := func(res downloadResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		contentType := ""
		if r.Headers != nil {
			contentType = r.Headers.Get("Content-Type")
		}
		send(downloadResult{download: Download{
			URL:         rawURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Body:        append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(downloadResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Download{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Download{}, err
		}
		return res.download, res.err
	default:
		return Download{}, errors.New("download produced no result")
	}
}

type downloadResult struct {
	download Download
	err      error
}
