package meituan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/domain"
)

const listingHTML = `<html><body>
<div class="job-list">
  <div class="position-item">
    <a href="/web/job/detail?id=101"><span class="positionName">数据分析实习生</span></a>
    <span class="workCity">北京</span>
    <div class="workResponsibility">分析外卖业务数据</div>
  </div>
  <div class="position-item">
    <a href="https://job.example.com/detail/102"><span class="positionName">产品经理</span></a>
    <span class="workCity">上海</span>
    <div class="workResponsibility">负责产品规划</div>
  </div>
  <div class="position-item">
    <span class="workCity">成都</span>
  </div>
</div>
</body></html>`

func canned(html string) Option {
	return WithRenderer(func(context.Context) (string, error) { return html, nil })
}

func TestCrawlExtractsListingItems(t *testing.T) {
	a := New(zap.NewNop(), canned(listingHTML))

	f := false
	res := a.Crawl(context.Background(), adapter.Config{InternOnly: &f})

	require.True(t, res.Success)
	// the title-less third item is skipped, not fatal
	require.Len(t, res.Jobs, 2)

	first := res.Jobs[0]
	assert.Equal(t, "meituan", first.Source)
	assert.Equal(t, "数据分析实习生", first.Title)
	assert.Equal(t, "https://job.meituan.com/web/job/detail?id=101", first.URL)
	assert.Equal(t, "北京", first.Location)
	assert.Equal(t, "分析外卖业务数据", first.Description)
	assert.Equal(t, domain.JobTypeIntern, first.JobType)
	assert.Len(t, first.PostID, 64)
	assert.NotEmpty(t, first.Raw)

	// absolute hrefs pass through untouched
	assert.Equal(t, "https://job.example.com/detail/102", res.Jobs[1].URL)
}

func TestCrawlDerivedIDsAreStable(t *testing.T) {
	a := New(zap.NewNop(), canned(listingHTML))
	b := New(zap.NewNop(), canned(listingHTML))

	f := false
	cfg := adapter.Config{InternOnly: &f}
	ra := a.Crawl(context.Background(), cfg)
	rb := b.Crawl(context.Background(), cfg)

	require.Len(t, ra.Jobs, 2)
	require.Len(t, rb.Jobs, 2)
	assert.Equal(t, ra.Jobs[0].PostID, rb.Jobs[0].PostID)
	assert.NotEqual(t, ra.Jobs[0].PostID, ra.Jobs[1].PostID)
}

func TestCrawlInternOnlyLabelsUnclassifiedAsIntern(t *testing.T) {
	a := New(zap.NewNop(), canned(listingHTML))

	res := a.Crawl(context.Background(), adapter.Config{})

	require.True(t, res.Success)
	require.Len(t, res.Jobs, 2)
	// "产品经理" has no type keyword; the campus board default applies
	assert.Equal(t, domain.JobTypeIntern, res.Jobs[1].JobType)
}

func TestCrawlInternOnlyDropsExplicitNonIntern(t *testing.T) {
	const html = `<html><body>
<div class="position-item">
  <a href="/d/1"><span class="positionName">数据分析实习生</span></a>
</div>
<div class="position-item">
  <a href="/d/2"><span class="positionName">测试开发工程师（社招）</span></a>
</div>
<div class="position-item">
  <a href="/d/3"><span class="positionName">校招管培生</span></a>
</div>
</body></html>`

	a := New(zap.NewNop(), canned(html))
	res := a.Crawl(context.Background(), adapter.Config{})

	require.True(t, res.Success)
	// titles carrying 社招/校招 are dropped, not relabeled
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "数据分析实习生", res.Jobs[0].Title)

	// without the filter they all come back, typed from the title
	f := false
	res = a.Crawl(context.Background(), adapter.Config{InternOnly: &f})
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, domain.JobTypeSocial, res.Jobs[1].JobType)
	assert.Equal(t, domain.JobTypeCampus, res.Jobs[2].JobType)
}

func TestCrawlRenderFailure(t *testing.T) {
	a := New(zap.NewNop(), WithRenderer(func(context.Context) (string, error) {
		return "", errors.New("browser crashed")
	}))

	res := a.Crawl(context.Background(), adapter.Config{})
	assert.False(t, res.Success)
	assert.Empty(t, res.Jobs)
	assert.Contains(t, res.Err, "browser crashed")
}

func TestCrawlEmptyPageYieldsNoJobs(t *testing.T) {
	a := New(zap.NewNop(), canned("<html><body><p>loading...</p></body></html>"))

	res := a.Crawl(context.Background(), adapter.Config{})
	require.True(t, res.Success)
	assert.Empty(t, res.Jobs)
}
