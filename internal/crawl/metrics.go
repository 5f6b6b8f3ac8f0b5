package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalProcessed tracks the number of URLs dequeued and processed.
	TotalProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyharvester_urls_processed_total",
		Help: "The total number of URLs dequeued and processed.",
	})
	// TotalAcquireErrors tracks acquisitions that produced no content.
	TotalAcquireErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyharvester_acquire_errors_total",
		Help: "The total number of failed content acquisitions.",
	})
	// TotalClassifierFallbacks tracks classifier calls that degraded to the
	// conservative default verdict.
	TotalClassifierFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyharvester_classifier_fallbacks_total",
		Help: "The total number of classifier responses that failed to parse.",
	})
	// TotalEnqueued tracks links admitted into the frontier.
	TotalEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyharvester_links_enqueued_total",
		Help: "The total number of links enqueued into the frontier.",
	})
	// TotalCheckpoints tracks state checkpoints written.
	TotalCheckpoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyharvester_checkpoints_total",
		Help: "The total number of crawl state checkpoints saved.",
	})
)
