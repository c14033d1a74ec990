// Package tencent crawls the Tencent careers query API.
package tencent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/domain"
	"internwatch-engine/internal/transport"
)

const (
	sourceCode  = "tencent"
	displayName = "腾讯"
	defaultBase = "https://careers.tencent.com"
	queryPath   = "/tencentcareer/api/post/Query"

	defaultReqPerSec = 1.0
	defaultBurst     = 2
)

type Adapter struct {
	baseURL   string
	client    *transport.Client
	retry     transport.RetryConfig
	reqPerSec float64
	burst     int
	logger    *zap.Logger
}

type Option func(*Adapter)

func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

func WithRetry(cfg transport.RetryConfig) Option {
	return func(a *Adapter) { a.retry = cfg }
}

func WithRateLimit(reqPerSec float64, burst int) Option {
	return func(a *Adapter) {
		a.reqPerSec = reqPerSec
		a.burst = burst
	}
}

func New(logger *zap.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		baseURL:   defaultBase,
		retry:     transport.DefaultRetry(),
		reqPerSec: defaultReqPerSec,
		burst:     defaultBurst,
		logger:    logger.With(zap.String("source", sourceCode)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.client = transport.NewClient(a.logger,
		transport.WithHeaders(map[string]string{
			"Referer": a.baseURL + "/",
			"Origin":  a.baseURL,
		}),
		transport.WithRateLimit(a.reqPerSec, a.burst),
	)
	return a
}

func (a *Adapter) Code() string { return sourceCode }
func (a *Adapter) Name() string { return displayName }

type queryResponse struct {
	Code int `json:"Code"`
	Data struct {
		Count int               `json:"Count"`
		Posts []json.RawMessage `json:"Posts"`
	} `json:"Data"`
}

type postItem struct {
	PostID           json.Number `json:"PostId"`
	RecruitPostID    json.Number `json:"RecruitPostId"`
	RecruitPostName  string      `json:"RecruitPostName"`
	RecruitPostTitle string      `json:"RecruitPostTitle"`
	PostURL          string      `json:"PostURL"`
	LocationName     string      `json:"LocationName"`
	Responsibility   string      `json:"Responsibility"`
	Requirement      string      `json:"Requirement"`
	CategoryName     string      `json:"CategoryName"`
	BGName           string      `json:"BGName"`
	LastUpdateTime   string      `json:"LastUpdateTime"`
}

func (a *Adapter) Crawl(ctx context.Context, cfg adapter.Config) adapter.CrawlResult {
	cfg = cfg.WithDefaults()

	var jobs []domain.Posting
	total := 0

	a.logger.Info("crawl started")

	for pageIndex := 1; pageIndex <= cfg.MaxPages; pageIndex++ {
		var res queryResponse
		err := transport.Retry(ctx, a.retry, func() error {
			return a.fetchPage(ctx, pageIndex, cfg.PageSize, &res)
		})
		if err != nil {
			a.logger.Error("page fetch failed", zap.Int("page", pageIndex), zap.Error(err))
			return adapter.Failed(jobs, fmt.Errorf("fetch page %d: %w", pageIndex, err))
		}

		if len(res.Data.Posts) == 0 {
			a.logger.Warn("page returned no data, stopping", zap.Int("page", pageIndex))
			break
		}
		if res.Data.Count > 0 {
			total = res.Data.Count
		}

		for _, raw := range res.Data.Posts {
			p, err := a.parseJob(raw)
			if err != nil {
				a.logger.Warn("skipping unparseable posting", zap.Error(err))
				continue
			}
			if *cfg.InternOnly && !adapter.IsInternText(p.Title) {
				continue
			}
			jobs = append(jobs, p)
		}

		a.logger.Info("page crawled",
			zap.Int("page", pageIndex),
			zap.Int("pagePostings", len(res.Data.Posts)),
			zap.Int("collected", len(jobs)))

		if len(res.Data.Posts) < cfg.PageSize {
			break
		}
		if pageIndex < cfg.MaxPages {
			if err := transport.Delay(ctx, cfg.PageDelay); err != nil {
				return adapter.Failed(jobs, err)
			}
		}
	}

	a.logger.Info("crawl finished", zap.Int("jobs", len(jobs)))
	return adapter.CrawlResult{
		Success:   true,
		Jobs:      jobs,
		Total:     total,
		CrawledAt: time.Now().UTC(),
	}
}

func (a *Adapter) fetchPage(ctx context.Context, pageIndex, pageSize int, out *queryResponse) error {
	params := url.Values{
		"keyword":   {""},
		"pageIndex": {strconv.Itoa(pageIndex)},
		"pageSize":  {strconv.Itoa(pageSize)},
	}
	return a.client.GetJSON(ctx, a.baseURL+queryPath, params, out)
}

func (a *Adapter) parseJob(raw json.RawMessage) (domain.Posting, error) {
	var item postItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Posting{}, err
	}

	postID := item.PostID.String()
	if postID == "" || postID == "0" {
		postID = item.RecruitPostID.String()
	}
	if postID == "" || postID == "0" {
		return domain.Posting{}, fmt.Errorf("posting without id")
	}

	title := adapter.CleanText(item.RecruitPostName)
	if title == "" {
		title = adapter.CleanText(item.RecruitPostTitle)
	}
	if title == "" {
		title = "未知职位"
	}

	postURL := item.PostURL
	if postURL == "" {
		postURL = fmt.Sprintf("%s/jobdesc.html?postId=%s", a.baseURL, postID)
	}

	p := domain.Posting{
		Source:       sourceCode,
		PostID:       postID,
		Title:        title,
		URL:          postURL,
		Location:     adapter.CleanText(item.LocationName),
		Description:  adapter.StripHTML(item.Responsibility),
		Requirements: adapter.StripHTML(item.Requirement),
		Category:     item.CategoryName,
		Tags:         extractTags(item),
		JobType:      adapter.ClassifyJobType(title),
		Status:       domain.StatusActive,
		PostedAt:     parseUpdateTime(item.LastUpdateTime),
		Raw:          raw,
	}
	p.Fingerprint = p.ContentFingerprint()
	return p, nil
}

func extractTags(item postItem) []string {
	var tags []string
	for _, t := range []string{item.BGName, item.CategoryName} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// The API reports LastUpdateTime either as a date or a full timestamp.
func parseUpdateTime(s string) *time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.client.Reachable(ctx, a.baseURL, 10*time.Second)
}
