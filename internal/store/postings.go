package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"internwatch-engine/internal/domain"
)

// ErrNotFound is returned for lookups of absent rows.
var ErrNotFound = errors.New("not found")

const postingColumns = `id, source, post_id, title, url, location, description, requirements,
salary, category, tags, job_type, status, posted_at, last_crawled_at, last_seen_at,
fingerprint, raw, created_at, updated_at`

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func scanPosting(row interface{ Scan(...any) error }) (domain.Posting, error) {
	var (
		p                    domain.Posting
		tagsJSON             string
		postedAt             sql.NullString
		raw                  sql.NullString
		crawled, seen        string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.ID, &p.Source, &p.PostID, &p.Title, &p.URL, &p.Location, &p.Description,
		&p.Requirements, &p.Salary, &p.Category, &tagsJSON, &p.JobType, &p.Status,
		&postedAt, &crawled, &seen, &p.Fingerprint, &raw, &createdAt, &updatedAt,
	)
	if err != nil {
		return p, err
	}
	_ = json.Unmarshal([]byte(tagsJSON), &p.Tags)
	if postedAt.Valid {
		t := parseTime(postedAt.String)
		p.PostedAt = &t
	}
	if raw.Valid && raw.String != "" {
		p.Raw = json.RawMessage(raw.String)
	}
	p.LastCrawledAt = parseTime(crawled)
	p.LastSeenAt = parseTime(seen)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// ActivePostings returns every active posting for source, for
// reconciliation to key by post_id.
func (s *Store) ActivePostings(ctx context.Context, source string) ([]domain.Posting, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s FROM jobs WHERE source = ? AND status = ?;`, postingColumns),
		source, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PostingByID(ctx context.Context, id string) (domain.Posting, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s FROM jobs WHERE id = ?;`, postingColumns), id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// CreatePosting inserts a new active posting together with its change
// record in one transaction: the row and its audit entry are never
// observably split.
func (s *Store) CreatePosting(ctx context.Context, p domain.Posting, rec domain.ChangeRecord) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	tagsJSON, _ := json.Marshal(p.Tags)
	if p.Tags == nil {
		tagsJSON = []byte("[]")
	}
	var postedAt any
	if p.PostedAt != nil {
		postedAt = fmtTime(*p.PostedAt)
	}
	now := fmtTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO jobs (id, source, post_id, title, url, location, description, requirements,
  salary, category, tags, job_type, status, posted_at, last_crawled_at, last_seen_at,
  fingerprint, raw, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		p.ID, p.Source, p.PostID, p.Title, p.URL, p.Location, p.Description, p.Requirements,
		p.Salary, p.Category, string(tagsJSON), p.JobType, domain.StatusActive, postedAt,
		fmtTime(p.LastCrawledAt), fmtTime(p.LastSeenAt), p.Fingerprint, rawText(p.Raw), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert posting: %w", err)
	}

	rec.PostingID = p.ID
	if err := insertChange(ctx, tx, rec); err != nil {
		return "", err
	}
	return p.ID, tx.Commit()
}

// UpdatePosting overwrites the mutable fields of an existing posting
// and appends the update's change record atomically.
func (s *Store) UpdatePosting(ctx context.Context, p domain.Posting, rec domain.ChangeRecord) error {
	tagsJSON, _ := json.Marshal(p.Tags)
	if p.Tags == nil {
		tagsJSON = []byte("[]")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE jobs SET title = ?, url = ?, location = ?, description = ?, requirements = ?,
  salary = ?, category = ?, tags = ?, job_type = ?, last_crawled_at = ?, last_seen_at = ?,
  fingerprint = ?, raw = ?, updated_at = ?
WHERE id = ?;`,
		p.Title, p.URL, p.Location, p.Description, p.Requirements,
		p.Salary, p.Category, string(tagsJSON), p.JobType,
		fmtTime(p.LastCrawledAt), fmtTime(p.LastSeenAt),
		p.Fingerprint, rawText(p.Raw), fmtTime(time.Now()), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update posting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	rec.PostingID = p.ID
	if err := insertChange(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// RefreshSeen bumps the crawl timestamps of an unchanged posting. No
// change record: an unchanged sighting is not an auditable event.
func (s *Store) RefreshSeen(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE jobs SET last_crawled_at = ?, last_seen_at = ?, updated_at = ? WHERE id = ?;`,
		fmtTime(now), fmtTime(now), fmtTime(time.Now()), id)
	return err
}

// ExpirePosting flips a posting to expired and appends the removal
// record atomically.
func (s *Store) ExpirePosting(ctx context.Context, id string, rec domain.ChangeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?;`,
		domain.StatusExpired, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("expire posting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	rec.PostingID = id
	if err := insertChange(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func rawText(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func insertChange(ctx context.Context, tx *sql.Tx, rec domain.ChangeRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var diff, snapshot any
	if rec.Diff != nil {
		b, err := json.Marshal(rec.Diff)
		if err != nil {
			return err
		}
		diff = string(b)
	}
	if len(rec.Snapshot) > 0 {
		snapshot = string(rec.Snapshot)
	}

	_, err := tx.ExecContext(ctx, `
INSERT INTO job_changes (id, job_id, change_type, diff, snapshot, created_at)
VALUES (?,?,?,?,?,?);`,
		rec.ID, rec.PostingID, rec.Type, diff, snapshot, fmtTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert change record: %w", err)
	}
	return nil
}

// ChangesByPosting lists a posting's audit trail, newest first.
func (s *Store) ChangesByPosting(ctx context.Context, postingID string) ([]domain.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, job_id, change_type, diff, snapshot, created_at
FROM job_changes WHERE job_id = ? ORDER BY created_at DESC, id;`, postingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChangeRecord
	for rows.Next() {
		var (
			rec            domain.ChangeRecord
			diff, snapshot sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&rec.ID, &rec.PostingID, &rec.Type, &diff, &snapshot, &createdAt); err != nil {
			return nil, err
		}
		if diff.Valid {
			_ = json.Unmarshal([]byte(diff.String), &rec.Diff)
		}
		if snapshot.Valid {
			rec.Snapshot = json.RawMessage(snapshot.String)
		}
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
