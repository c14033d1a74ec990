package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"internwatch-engine/internal/domain"
	"internwatch-engine/internal/store"
)

type CompaniesHandler struct {
	Store *store.Store
}

type companyEntry struct {
	domain.Source
	ActiveJobs int `json:"active_jobs"`
}

func (h CompaniesHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Store.Companies(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	counts, err := h.Store.ActiveCountsBySource(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	out := make([]companyEntry, 0, len(companies))
	for _, c := range companies {
		out = append(out, companyEntry{Source: c, ActiveJobs: counts[c.Code]})
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h CompaniesHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/api/companies/")
	if code == "" || strings.Contains(code, "/") {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid company code")
		return
	}

	c, err := h.Store.CompanyByCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "company not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	counts, err := h.Store.ActiveCountsBySource(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, companyEntry{Source: c, ActiveJobs: counts[c.Code]})
}
