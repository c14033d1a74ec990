package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/config"
	"internwatch-engine/internal/domain"
	"internwatch-engine/internal/orchestrator"
	"internwatch-engine/internal/store"
)

type fakeAdapter struct {
	code    string
	healthy bool
}

func (a fakeAdapter) Code() string { return a.code }
func (a fakeAdapter) Name() string { return a.code }
func (a fakeAdapter) Crawl(ctx context.Context, cfg adapter.Config) adapter.CrawlResult {
	return adapter.CrawlResult{Success: true}
}
func (a fakeAdapter) HealthCheck(ctx context.Context) bool { return a.healthy }

func testServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate())

	reg := adapter.NewRegistry()
	reg.Register("acme", func() adapter.Adapter { return fakeAdapter{code: "acme", healthy: true} })
	reg.Register("flaky", func() adapter.Adapter { return fakeAdapter{code: "flaky", healthy: false} })

	deps := Deps{
		Store:    s,
		Registry: reg,
		Logger:   zap.NewNop(),
		RunSource: func(ctx context.Context, code string) (orchestrator.Result, error) {
			switch code {
			case "ghost":
				return orchestrator.Result{}, orchestrator.ErrNoAdapter
			case "flaky":
				return orchestrator.Result{Source: code, Crawled: 1, Error: "page 2 timed out"}, nil
			}
			return orchestrator.Result{Source: code, Success: true, Crawled: 2}, nil
		},
	}
	handler := Chain(NewMux(deps), RequestID, Recover(zap.NewNop()), Cors)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, s
}

func seedJob(t *testing.T, s *store.Store, source, postID, title string) string {
	t.Helper()
	now := time.Now()
	p := domain.Posting{
		Source:        source,
		PostID:        postID,
		Title:         title,
		URL:           "https://example.com/" + postID,
		Location:      "Beijing",
		Description:   "desc",
		JobType:       domain.JobTypeIntern,
		Status:        domain.StatusActive,
		Raw:           json.RawMessage(`{"k":"v"}`),
		LastCrawledAt: now,
		LastSeenAt:    now,
	}
	p.Fingerprint = p.ContentFingerprint()
	id, err := s.CreatePosting(context.Background(), p, domain.ChangeRecord{Type: domain.ChangeCreated})
	require.NoError(t, err)
	return id
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestListJobs(t *testing.T) {
	srv, s := testServer(t)
	seedJob(t, s, "acme", "j-1", "Go Intern")
	seedJob(t, s, "acme", "j-2", "Rust Intern")
	seedJob(t, s, "other", "j-3", "Go Intern")

	var body jobListResponse
	resp := getJSON(t, srv.URL+"/api/jobs?source=acme", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, body.Pagination.Total)
	assert.Len(t, body.Data, 2)
	for _, p := range body.Data {
		assert.Equal(t, "acme", p.Source)
		assert.Nil(t, p.Raw)
	}

	getJSON(t, srv.URL+"/api/jobs?q=Rust", &body)
	assert.Equal(t, 1, body.Pagination.Total)

	getJSON(t, srv.URL+"/api/jobs?page=2&limit=2", &body)
	assert.Equal(t, 3, body.Pagination.Total)
	assert.Equal(t, 2, body.Pagination.TotalPages)
	assert.Len(t, body.Data, 1)
	assert.False(t, body.Pagination.HasMore)
}

func TestListJobsBadUpdatedAfter(t *testing.T) {
	srv, _ := testServer(t)
	resp := getJSON(t, srv.URL+"/api/jobs?updated_after=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetJobWithChanges(t *testing.T) {
	srv, s := testServer(t)
	id := seedJob(t, s, "acme", "j-1", "Go Intern")

	var body struct {
		domain.Posting
		Changes []domain.ChangeRecord `json:"changes"`
	}
	resp := getJSON(t, srv.URL+"/api/jobs/"+id, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Go Intern", body.Title)
	assert.NotNil(t, body.Raw)
	require.Len(t, body.Changes, 1)
	assert.Equal(t, domain.ChangeCreated, body.Changes[0].Type)
}

func TestGetJobNotFound(t *testing.T) {
	srv, _ := testServer(t)
	resp := getJSON(t, srv.URL+"/api/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobsStats(t *testing.T) {
	srv, s := testServer(t)
	seedJob(t, s, "acme", "j-1", "A")
	seedJob(t, s, "other", "j-2", "B")

	var st store.Stats
	resp := getJSON(t, srv.URL+"/api/jobs/stats", &st)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.BySource["acme"])
}

func TestCompanies(t *testing.T) {
	srv, s := testServer(t)
	require.NoError(t, s.SeedCompanies(context.Background(), []config.SourceConfig{
		{Code: "acme", Name: "Acme", Enabled: true},
	}))
	seedJob(t, s, "acme", "j-1", "A")

	var list []companyEntry
	resp := getJSON(t, srv.URL+"/api/companies", &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "acme", list[0].Code)
	assert.Equal(t, 1, list[0].ActiveJobs)

	var one companyEntry
	resp = getJSON(t, srv.URL+"/api/companies/acme", &one)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Acme", one.Name)

	resp = getJSON(t, srv.URL+"/api/companies/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminCrawl(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/api/admin/crawl/acme", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res orchestrator.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.Equal(t, "acme", res.Source)
	assert.Equal(t, 2, res.Crawled)

	resp, err = http.Post(srv.URL+"/api/admin/crawl/ghost", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A failed crawl surfaces as an error, never a 200 with counts.
	resp, err = http.Post(srv.URL+"/api/admin/crawl/flaky", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var e APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	resp.Body.Close()
	assert.Equal(t, "crawl_failed", e.Error.Code)
	assert.Equal(t, "page 2 timed out", e.Error.Message)

	// Crawl trigger is POST-only.
	resp, err = http.Get(srv.URL + "/api/admin/crawl/acme")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAdminHealth(t *testing.T) {
	srv, _ := testServer(t)

	var body struct {
		Sources []sourceHealth `json:"sources"`
	}
	resp := getJSON(t, srv.URL+"/api/admin/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Sources, 2)
	assert.Equal(t, sourceHealth{Source: "acme", Healthy: true}, body.Sources[0])
	assert.Equal(t, sourceHealth{Source: "flaky", Healthy: false}, body.Sources[1])
}

func TestHealthAndIndex(t *testing.T) {
	srv, _ := testServer(t)

	var ok map[string]any
	resp := getJSON(t, srv.URL+"/api/health", &ok)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, ok["ok"])

	var idx map[string]any
	resp = getJSON(t, srv.URL+"/", &idx)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "internwatch-engine", idx["name"])

	resp = getJSON(t, srv.URL+"/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := testServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCorsPreflight(t *testing.T) {
	srv, _ := testServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestErrorBodyShape(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/jobs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	var e APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "not_found", e.Error.Code)
	assert.True(t, strings.Contains(e.Error.Message, "not found"))
	assert.NotEmpty(t, e.Error.RequestID)
}
