package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/orchestrator"
)

type AdminHandler struct {
	Registry  *adapter.Registry
	RunSource func(ctx context.Context, code string) (orchestrator.Result, error)

	// probeTimeout bounds each adapter health probe.
	probeTimeout time.Duration
}

func (h AdminHandler) timeout() time.Duration {
	if h.probeTimeout > 0 {
		return h.probeTimeout
	}
	return 10 * time.Second
}

// Crawl serves POST /api/admin/crawl/{source}: a synchronous
// on-demand crawl of one source.
func (h AdminHandler) Crawl(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/api/admin/crawl/")
	if code == "" || strings.Contains(code, "/") {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid source code")
		return
	}

	res, err := h.RunSource(r.Context(), code)
	if errors.Is(err, orchestrator.ErrNoAdapter) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no adapter for source "+code)
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if !res.Success {
		WriteError(w, r, http.StatusInternalServerError, "crawl_failed", res.Error)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type sourceHealth struct {
	Source  string `json:"source"`
	Healthy bool   `json:"healthy"`
}

// Health serves GET /api/admin/health: every registered adapter
// probed concurrently.
func (h AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	adapters := h.Registry.All()

	var (
		mu      sync.Mutex
		results = make([]sourceHealth, 0, len(adapters))
	)
	g, ctx := errgroup.WithContext(r.Context())
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, h.timeout())
			defer cancel()
			ok := a.HealthCheck(probeCtx)
			mu.Lock()
			results = append(results, sourceHealth{Source: a.Code(), Healthy: ok})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })
	WriteJSON(w, http.StatusOK, map[string]any{"sources": results})
}
