package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientAppliesDefaultHeaders(t *testing.T) {
	var gotUA, gotLang, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotRef = r.Header.Get("Referer")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), WithHeaders(map[string]string{"Referer": "https://jobs.example.com"}))

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, defaultUserAgent, gotUA)
	assert.Equal(t, "zh-CN,zh;q=0.9,en;q=0.8", gotLang)
	assert.Equal(t, "https://jobs.example.com", gotRef)
}

func TestClientKeepsSessionCookies(t *testing.T) {
	var secondCookie string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok-123"})
		} else if c, err := r.Cookie("session"); err == nil {
			secondCookie = c.Value
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop())
	var out map[string]any
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, nil, &out))
	assert.Equal(t, "tok-123", secondCookie)
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop())
	err := c.GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

func TestClientPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "csrf-1", r.Header.Get("X-CSRF-Token"))
		w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop())
	var out struct {
		Code int `json:"code"`
	}
	err := c.PostJSON(context.Background(), srv.URL,
		map[string]any{"offset": 0},
		map[string]string{"X-CSRF-Token": "csrf-1"},
		&out)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Code)
}

func TestClientGetJSONQueryParams(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop())
	params := url.Values{"pageIndex": {"2"}, "pageSize": {"10"}}
	var out map[string]any
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, params, &out))
	assert.Equal(t, "2", got.Get("pageIndex"))
	assert.Equal(t, "10", got.Get("pageSize"))
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClient(zap.NewNop())
	assert.True(t, c.Reachable(context.Background(), srv.URL, time.Second))

	srv.Close()
	assert.False(t, c.Reachable(context.Background(), srv.URL, time.Second))
}
