// Package adapter defines the contract every employer-site crawler
// satisfies and the registry that maps source codes to implementations.
package adapter

import (
	"context"
	"time"

	"internwatch-engine/internal/domain"
)

// Defaults for Config fields left at zero.
const (
	DefaultPageSize  = 10
	DefaultMaxPages  = 100
	DefaultPageDelay = time.Second
)

// Config tunes a single crawl invocation.
type Config struct {
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
	// InternOnly keeps only intern postings on sources that expose a
	// usable title or type signal. Nil means true.
	InternOnly *bool
}

// WithDefaults fills zero fields with the documented defaults.
func (c Config) WithDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.PageDelay <= 0 {
		c.PageDelay = DefaultPageDelay
	}
	if c.InternOnly == nil {
		t := true
		c.InternOnly = &t
	}
	return c
}

// CrawlResult is what a crawl invocation hands back. On failure Success
// is false, Err holds a human-readable message and Jobs carries
// whatever was collected before things went wrong.
type CrawlResult struct {
	Success   bool
	Jobs      []domain.Posting
	Total     int
	Err       string
	CrawledAt time.Time
}

// Adapter is one employer-specific crawler. Crawl never panics or
// returns partial state through any channel other than CrawlResult;
// HealthCheck is a cheap reachability probe that never fails loudly.
type Adapter interface {
	Code() string
	Name() string
	Crawl(ctx context.Context, cfg Config) CrawlResult
	HealthCheck(ctx context.Context) bool
}

// Failed builds the failure result for a terminal crawl error, keeping
// the postings collected so far.
func Failed(jobs []domain.Posting, err error) CrawlResult {
	return CrawlResult{
		Success:   false,
		Jobs:      jobs,
		Err:       err.Error(),
		CrawledAt: time.Now().UTC(),
	}
}
