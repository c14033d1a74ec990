package httpapi

import "net/http"

// Index documents the API surface at the root path.
func Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown route")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"name": "internwatch-engine",
		"endpoints": map[string]string{
			"GET /api/jobs":                  "list postings (source, job_type, status, q, location, updated_after, page, limit, sort, order)",
			"GET /api/jobs/stats":            "active posting counts by source and job type",
			"GET /api/jobs/{id}":             "one posting with its change history",
			"GET /api/companies":             "configured sources with active job counts",
			"GET /api/companies/{code}":      "one source",
			"POST /api/admin/crawl/{source}": "crawl one source now",
			"GET /api/admin/health":          "probe every adapter",
			"GET /api/health":                "liveness",
		},
	})
}
