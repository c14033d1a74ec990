// Package bytedance crawls the ByteDance campus careers API.
//
// The site wants an anti-forgery token (POST /api/v1/csrf/token) before
// the paginated search endpoint. Token fetch failure is non-fatal; the
// search call is simply attempted without it.
package bytedance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/domain"
	"internwatch-engine/internal/transport"
)

const (
	sourceCode  = "bytedance"
	displayName = "字节跳动"
	defaultBase = "https://jobs.bytedance.com"

	// polite pacing against the live site
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

// WithBaseURL points the adapter at a different host (tests).
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = u }
}

func WithRetry(cfg transport.RetryConfig) Option {
	return func(a *Adapter) { a.retry = cfg }
}

// WithRateLimit overrides the request pacing.
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
			"Referer": a.baseURL + "/campus/position",
			"Origin":  a.baseURL,
		}),
		transport.WithRateLimit(a.reqPerSec, a.burst),
	)
	return a
}

func (a *Adapter) Code() string { return sourceCode }
func (a *Adapter) Name() string { return displayName }

type searchResponse struct {
	Code int `json:"code"`
	Data struct {
		JobPostList []json.RawMessage `json:"job_post_list"`
		HasMore     bool              `json:"has_more"`
		TotalCount  int               `json:"total_count"`
	} `json:"data"`
}

type jobItem struct {
	ID           json.Number `json:"id"`
	JobPostID    json.Number `json:"job_post_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Requirement  string      `json:"requirement"`
	LocationName string      `json:"location_name"`
	CityList     []struct {
		Name string `json:"name"`
	} `json:"city_list"`
	JobFunctionName string `json:"job_function_name"`
	RecruitTypeName string `json:"recruit_type_name"`
	SubjectName     string `json:"subject_name"`
	PublishTime     int64  `json:"publish_time"`
}

func (a *Adapter) Crawl(ctx context.Context, cfg adapter.Config) adapter.CrawlResult {
	cfg = cfg.WithDefaults()

	var jobs []domain.Posting
	offset := 0
	total := 0

	a.logger.Info("crawl started")

	csrfToken := a.fetchCSRFToken(ctx)

	for page := 1; page <= cfg.MaxPages; page++ {
		var res searchResponse
		err := transport.Retry(ctx, a.retry, func() error {
			return a.fetchPage(ctx, offset, cfg.PageSize, csrfToken, &res)
		})
		if err != nil {
			a.logger.Error("page fetch failed", zap.Int("page", page), zap.Error(err))
			return adapter.Failed(jobs, fmt.Errorf("fetch page %d: %w", page, err))
		}

		if res.Data.TotalCount > 0 {
			total = res.Data.TotalCount
		}

		for _, raw := range res.Data.JobPostList {
			p, err := a.parseJob(raw)
			if err != nil {
				a.logger.Warn("skipping unparseable posting", zap.Error(err))
				continue
			}
			if *cfg.InternOnly && p.JobType != domain.JobTypeIntern {
				continue
			}
			jobs = append(jobs, p)
		}

		a.logger.Info("page crawled",
			zap.Int("page", page),
			zap.Int("collected", len(jobs)),
			zap.Int("total", total))

		if !res.Data.HasMore || len(res.Data.JobPostList) == 0 {
			break
		}
		offset += cfg.PageSize

		if page < cfg.MaxPages {
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

// fetchCSRFToken asks the site for an anti-forgery token. Failure just
// yields an empty token; the search request then fails naturally if the
// site insists on one.
func (a *Adapter) fetchCSRFToken(ctx context.Context) string {
	var res struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := a.client.PostJSON(ctx, a.baseURL+"/api/v1/csrf/token", nil, nil, &res); err != nil {
		a.logger.Warn("csrf token fetch failed, proceeding without", zap.Error(err))
		return ""
	}
	return res.Data.Token
}

func (a *Adapter) fetchPage(ctx context.Context, offset, limit int, csrfToken string, out *searchResponse) error {
	payload := map[string]any{
		"keyword":              "",
		"limit":                limit,
		"offset":               offset,
		"job_category_id_list": []string{},
		"tag_id_list":          []string{},
		"location_code_list":   []string{},
		"subject_id_list":      []string{},
		"recruitment_id_list":  []string{},
		"portal_type":          3, // campus portal
		"job_function_id_list": []string{},
		"storefront_id_list":   []string{},
		"portal_entrance":      1,
	}

	var headers map[string]string
	if csrfToken != "" {
		headers = map[string]string{"X-CSRF-Token": csrfToken}
	}

	if err := a.client.PostJSON(ctx, a.baseURL+"/api/v1/search/job/posts", payload, headers, out); err != nil {
		return err
	}
	if out.Code != 0 {
		return fmt.Errorf("api code %d", out.Code)
	}
	return nil
}

func (a *Adapter) parseJob(raw json.RawMessage) (domain.Posting, error) {
	var item jobItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Posting{}, err
	}

	postID := item.ID.String()
	if postID == "" || postID == "0" {
		postID = item.JobPostID.String()
	}
	if postID == "" || postID == "0" {
		return domain.Posting{}, fmt.Errorf("posting without id")
	}

	location := item.LocationName
	if len(item.CityList) > 0 {
		names := make([]string, 0, len(item.CityList))
		for _, c := range item.CityList {
			names = append(names, c.Name)
		}
		location = joinNonEmpty(names)
	}

	title := adapter.CleanText(item.Title)
	if title == "" {
		title = "未知职位"
	}
	description := adapter.StripHTML(item.Description)
	requirements := adapter.StripHTML(item.Requirement)

	var postedAt *time.Time
	if item.PublishTime > 0 {
		t := time.Unix(item.PublishTime, 0).UTC()
		postedAt = &t
	}

	p := domain.Posting{
		Source:       sourceCode,
		PostID:       postID,
		Title:        title,
		URL:          fmt.Sprintf("%s/campus/position/%s/detail", a.baseURL, postID),
		Location:     adapter.CleanText(location),
		Description:  description,
		Requirements: requirements,
		Category:     item.JobFunctionName,
		Tags:         extractTags(item),
		JobType:      adapter.ClassifyJobType(item.RecruitTypeName),
		Status:       domain.StatusActive,
		PostedAt:     postedAt,
		Raw:          raw,
	}
	p.Fingerprint = p.ContentFingerprint()
	return p, nil
}

func extractTags(item jobItem) []string {
	var tags []string
	for _, t := range []string{item.JobFunctionName, item.RecruitTypeName, item.SubjectName} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func joinNonEmpty(parts []string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a.client.Reachable(ctx, a.baseURL, 10*time.Second)
}
