package httpapi

import "net/http"

// NewMux wires the API routes; main() wraps the result with the
// middleware chain.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: Index,
	}))

	// Jobs
	jh := JobsHandler{Store: d.Store}
	mux.HandleFunc("/api/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.List,
	}))
	mux.HandleFunc("/api/jobs/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Stats,
	}))
	mux.HandleFunc("/api/jobs/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.GetByPath, // expects /api/jobs/{id}
	}))

	// Companies
	ch := CompaniesHandler{Store: d.Store}
	mux.HandleFunc("/api/companies", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.List,
	}))
	mux.HandleFunc("/api/companies/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.GetByPath, // expects /api/companies/{code}
	}))

	// Admin
	ah := AdminHandler{Registry: d.Registry, RunSource: d.RunSource}
	mux.HandleFunc("/api/admin/crawl/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.Crawl, // expects /api/admin/crawl/{source}
	}))
	mux.HandleFunc("/api/admin/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.Health,
	}))

	// Liveness
	hh := HealthHandler{}
	mux.HandleFunc("/api/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	return mux
}
