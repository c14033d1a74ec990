// Package meituan crawls the Meituan campus job board. The listing is
// rendered client-side, so the adapter drives a headless Chrome session
// (chromedp) to obtain the markup, then extracts fields with goquery.
//
// Meituan exposes no stable posting identifier, so one is derived from
// the posting URL (or, failing that, the content fingerprint).
package meituan

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/domain"
	"internwatch-engine/internal/transport"
)

const (
	sourceCode  = "meituan"
	displayName = "美团"
	defaultBase = "https://job.meituan.com"

	itemSelector = ".position-item, .job-item"
	navTimeout   = 60 * time.Second
	contentWait  = 10 * time.Second

	defaultReqPerSec = 1.0
	defaultBurst     = 2
)

type Adapter struct {
	baseURL   string
	client    *transport.Client
	reqPerSec float64
	burst     int
	logger    *zap.Logger

	// render fetches the listing page's markup; tests replace it to
	// avoid needing a browser.
	render func(ctx context.Context) (string, error)
}

type Option func(*Adapter)

func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

func WithRateLimit(reqPerSec float64, burst int) Option {
	return func(a *Adapter) {
		a.reqPerSec = reqPerSec
		a.burst = burst
	}
}

// WithRenderer swaps the browser session for a canned page source.
func WithRenderer(render func(ctx context.Context) (string, error)) Option {
	return func(a *Adapter) { a.render = render }
}

func New(logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		baseURL:   defaultBase,
		reqPerSec: defaultReqPerSec,
		burst:     defaultBurst,
		logger:    logger.With(zap.String("source", sourceCode)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.client = transport.NewClient(a.logger,
		transport.WithHeaders(map[string]string{
			"Referer": a.baseURL,
			"Origin":  a.baseURL,
		}),
		transport.WithRateLimit(a.reqPerSec, a.burst),
	)
	if a.render == nil {
		a.render = a.renderListing
	}
	return a
}

func (a *Adapter) Code() string { return sourceCode }
func (a *Adapter) Name() string { return displayName }

func (a *Adapter) Crawl(ctx context.Context, cfg adapter.Config) adapter.CrawlResult {
	cfg = cfg.WithDefaults()

	a.logger.Info("crawl started")

	html, err := a.render(ctx)
	if err != nil {
		a.logger.Error("listing render failed", zap.Error(err))
		return adapter.Failed(nil, err)
	}

	jobs := a.parseListing(html, *cfg.InternOnly)

	a.logger.Info("crawl finished", zap.Int("jobs", len(jobs)))
	return adapter.CrawlResult{
		Success:   true,
		Jobs:      jobs,
		Total:     len(jobs),
		CrawledAt: time.Now().UTC(),
	}
}

// renderListing owns the browser session for one crawl. The session is
// torn down by the deferred cancels on every path.
func (a *Adapter) renderListing(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browser, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browser, chromedp.Navigate(a.baseURL+"/web/job/list")); err != nil {
		return "", err
	}

	// Bounded wait for the list to show up. Not observing it is
	// non-fatal: extract whatever the page has.
	waitCtx, cancelWait := context.WithTimeout(browser, contentWait)
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(itemSelector, chromedp.ByQuery)); err != nil {
		a.logger.Warn("listing selector never became ready", zap.Error(err))
	}
	cancelWait()

	var html string
	if err := chromedp.Run(browser, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

type listingItem struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Location string `json:"location"`
	Summary  string `json:"summary"`
}

func (a *Adapter) parseListing(html string, internOnly bool) []domain.Posting {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.logger.Warn("listing markup unparseable", zap.Error(err))
		return nil
	}

	var jobs []domain.Posting
	doc.Find(itemSelector).Each(func(_ int, sel *goquery.Selection) {
		item := listingItem{
			Title:    adapter.CleanText(sel.Find(".positionName, .job-title").First().Text()),
			Location: adapter.CleanText(sel.Find(".workCity, .job-location").First().Text()),
			Summary:  adapter.CleanText(sel.Find(".workResponsibility, .job-desc").First().Text()),
		}
		if href, ok := sel.Find("a").First().Attr("href"); ok {
			item.URL = a.absoluteURL(strings.TrimSpace(href))
		}

		if item.Title == "" {
			a.logger.Warn("skipping listing item without title")
			return
		}

		jobType := adapter.ClassifyJobType(item.Title)
		if internOnly {
			switch jobType {
			case domain.JobTypeUnknown:
				// the campus board lists interns without saying so
				jobType = domain.JobTypeIntern
			case domain.JobTypeIntern:
			default:
				// title explicitly says campus or social hire
				return
			}
		}

		raw, _ := json.Marshal(item)
		p := domain.Posting{
			Source:      sourceCode,
			PostID:      "",
			Title:       item.Title,
			URL:         item.URL,
			Location:    item.Location,
			Description: item.Summary,
			JobType:     jobType,
			Status:      domain.StatusActive,
			Raw:         raw,
		}
		p.Fingerprint = p.ContentFingerprint()
		p.PostID = adapter.DerivePostID(p.URL, p.Fingerprint)
		jobs = append(jobs, p)
	})

	return jobs
}

func (a *Adapter) absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return a.baseURL + href
	}
	return a.baseURL + "/" + href
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.client.Reachable(ctx, a.baseURL, 10*time.Second)
}
