package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"internwatch-engine/internal/domain"
	"internwatch-engine/internal/store"
)

type JobsHandler struct {
	Store *store.Store
}

type pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

type jobListResponse struct {
	Data       []domain.Posting `json:"data"`
	Pagination pagination       `json:"pagination"`
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pq := store.PostingQuery{
		Source:   q.Get("source"),
		JobType:  q.Get("job_type"),
		Status:   q.Get("status"),
		Text:     q.Get("q"),
		Location: q.Get("location"),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 20),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	}
	if v := q.Get("updated_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_request", "updated_after must be RFC 3339")
			return
		}
		pq.UpdatedAfter = &t
	}

	jobs, total, err := h.Store.QueryPostings(r.Context(), pq)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if jobs == nil {
		jobs = []domain.Posting{}
	}

	limit := pq.Limit
	if limit < 1 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}
	page := pq.Page
	if page < 1 {
		page = 1
	}
	totalPages := (total + limit - 1) / limit

	WriteJSON(w, http.StatusOK, jobListResponse{
		Data: jobs,
		Pagination: pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	})
}

func (h JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Stats(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

type jobDetailResponse struct {
	domain.Posting
	Changes []domain.ChangeRecord `json:"changes"`
}

// GetByPath serves /api/jobs/{id}: the full posting, raw payload
// included, with its change history.
func (h JobsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid job id")
		return
	}

	p, err := h.Store.PostingByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	changes, err := h.Store.ChangesByPosting(r.Context(), id)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if changes == nil {
		changes = []domain.ChangeRecord{}
	}
	WriteJSON(w, http.StatusOK, jobDetailResponse{Posting: p, Changes: changes})
}
