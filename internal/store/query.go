package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"internwatch-engine/internal/domain"
)

const maxPageSize = 100

// PostingQuery narrows and pages a posting listing. Zero values mean
// "no filter".
type PostingQuery struct {
	Source       string
	JobType      string
	Status       string
	Text         string
	Location     string
	UpdatedAfter *time.Time

	Page  int
	Limit int
	Sort  string // posted_at | updated_at
	Order string // asc | desc
}

func (q PostingQuery) normalized() PostingQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	switch q.Sort {
	case "posted_at", "updated_at":
	default:
		q.Sort = "updated_at"
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}
	return q
}

func (q PostingQuery) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, q.Source)
	}
	if q.JobType != "" {
		conds = append(conds, "job_type = ?")
		args = append(args, q.JobType)
	}
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, q.Status)
	}
	if q.Text != "" {
		conds = append(conds, "(title LIKE ? OR description LIKE ?)")
		pat := "%" + q.Text + "%"
		args = append(args, pat, pat)
	}
	if q.Location != "" {
		conds = append(conds, "location LIKE ?")
		args = append(args, "%"+q.Location+"%")
	}
	if q.UpdatedAfter != nil {
		conds = append(conds, "updated_at > ?")
		args = append(args, fmtTime(*q.UpdatedAfter))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// QueryPostings returns one page of postings plus the total match
// count. The raw payload is omitted from listings; fetch a single
// posting to get it.
func (s *Store) QueryPostings(ctx context.Context, q PostingQuery) ([]domain.Posting, int, error) {
	q = q.normalized()
	where, args := q.where()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs"+where+";", args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Sort column and direction are validated in normalized(); only
	// the bound values come from the caller.
	query := fmt.Sprintf(`
SELECT %s FROM jobs%s ORDER BY %s %s, id LIMIT ? OFFSET ?;`,
		postingColumns, where, q.Sort, strings.ToUpper(q.Order))
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, 0, err
		}
		p.Raw = nil
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Stats summarizes the active posting population.
type Stats struct {
	Total     int            `json:"total"`
	BySource  map[string]int `json:"bySource"`
	ByJobType map[string]int `json:"byJobType"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{BySource: map[string]int{}, ByJobType: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM jobs WHERE status = ?;`, domain.StatusActive).Scan(&st.Total); err != nil {
		return st, err
	}

	if err := s.groupCount(ctx, "source", st.BySource); err != nil {
		return st, err
	}
	if err := s.groupCount(ctx, "job_type", st.ByJobType); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Store) groupCount(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s, COUNT(*) FROM jobs WHERE status = ? GROUP BY %s;`, column, column),
		domain.StatusActive)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// ActiveCountsBySource is Stats' per-source slice on its own, for the
// companies listing.
func (s *Store) ActiveCountsBySource(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	if err := s.groupCount(ctx, "source", counts); err != nil {
		return nil, err
	}
	return counts, nil
}
