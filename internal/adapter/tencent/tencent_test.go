package tencent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/domain"
	"internwatch-engine/internal/transport"
)

func fakePost(id int, title string) map[string]any {
	return map[string]any{
		"PostId":          id,
		"RecruitPostName": title,
		"PostURL":         "https://careers.example.com/post/" + strconv.Itoa(id),
		"LocationName":    "深圳",
		"Responsibility":  "<div>负责微信后台开发</div>",
		"Requirement":     "在校学生",
		"CategoryName":    "技术",
		"BGName":          "WXG",
		"LastUpdateTime":  "2024-06-01",
	}
}

func newServer(t *testing.T, pages map[int][]map[string]any, count int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tencentcareer/api/post/Query", r.URL.Path)
		pageIndex, _ := strconv.Atoi(r.URL.Query().Get("pageIndex"))
		resp := map[string]any{
			"Code": 200,
			"Data": map[string]any{"Count": count, "Posts": pages[pageIndex]},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func allTypes() adapter.Config {
	f := false
	return adapter.Config{PageSize: 2, MaxPages: 10, PageDelay: time.Millisecond, InternOnly: &f}
}

// unpaced keeps tests from waiting on the polite live-site limiter.
func unpaced() Option { return WithRateLimit(1000, 1000) }

func TestCrawlStopsOnShortPage(t *testing.T) {
	pages := map[int][]map[string]any{
		1: {fakePost(1, "后台开发实习生"), fakePost(2, "客户端实习生")},
		2: {fakePost(3, "运营实习生")}, // short page ends pagination
		3: {fakePost(4, "should never be fetched")},
	}
	srv := newServer(t, pages, 3)
	defer srv.Close()

	a := New(zap.NewNop(), WithBaseURL(srv.URL), unpaced())
	res := a.Crawl(context.Background(), allTypes())

	require.True(t, res.Success)
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, 3, res.Total)

	first := res.Jobs[0]
	assert.Equal(t, "tencent", first.Source)
	assert.Equal(t, "1", first.PostID)
	assert.Equal(t, "负责微信后台开发", first.Description)
	assert.Equal(t, []string{"WXG", "技术"}, first.Tags)
	assert.Equal(t, domain.JobTypeIntern, first.JobType)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, 2024, first.PostedAt.Year())
}

func TestCrawlInternOnlyUsesTitleSignal(t *testing.T) {
	pages := map[int][]map[string]any{
		1: {fakePost(1, "后台开发实习生"), fakePost(2, "资深专家")},
	}
	srv := newServer(t, pages, 2)
	defer srv.Close()

	a := New(zap.NewNop(), WithBaseURL(srv.URL), unpaced())
	res := a.Crawl(context.Background(), adapter.Config{PageSize: 2, PageDelay: time.Millisecond})

	require.True(t, res.Success)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "后台开发实习生", res.Jobs[0].Title)
}

func TestCrawlEmptyPageStopsCleanly(t *testing.T) {
	srv := newServer(t, map[int][]map[string]any{}, 0)
	defer srv.Close()

	a := New(zap.NewNop(), WithBaseURL(srv.URL), unpaced())
	res := a.Crawl(context.Background(), allTypes())

	require.True(t, res.Success)
	assert.Empty(t, res.Jobs)
}

func TestCrawlTransportFailureReturnsPartial(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		pageIndex := r.URL.Query().Get("pageIndex")
		if pageIndex == "1" {
			resp := map[string]any{
				"Code": 200,
				"Data": map[string]any{
					"Count": 4,
					"Posts": []map[string]any{fakePost(1, "实习生"), fakePost(2, "实习生二号")},
				},
			}
			json.NewEncoder(w).Encode(resp)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := New(zap.NewNop(), WithBaseURL(srv.URL), unpaced(),
		WithRetry(transport.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}))
	res := a.Crawl(context.Background(), allTypes())

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
	assert.Len(t, res.Jobs, 2)
}

func TestCrawlSkipsPostWithoutID(t *testing.T) {
	bad := fakePost(0, "无编号岗位")
	delete(bad, "PostId")
	pages := map[int][]map[string]any{1: {bad, fakePost(9, "实习生")}}
	srv := newServer(t, pages, 2)
	defer srv.Close()

	a := New(zap.NewNop(), WithBaseURL(srv.URL), unpaced())
	res := a.Crawl(context.Background(), allTypes())

	require.True(t, res.Success)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "9", res.Jobs[0].PostID)
}
