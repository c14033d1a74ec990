package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"internwatch-engine/internal/config"
	"internwatch-engine/internal/domain"
)

// SeedCompanies upserts the configured sources into the companies
// table. Config is authoritative for descriptive fields and the
// enabled flag; crawl state (last_crawled_at) is preserved.
func (s *Store) SeedCompanies(ctx context.Context, sources []config.SourceConfig) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := fmtTime(time.Now())
	for _, src := range sources {
		_, err := tx.ExecContext(ctx, `
INSERT INTO companies (code, name, name_cn, website, careers_url, enabled, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(code) DO UPDATE SET
  name = excluded.name, name_cn = excluded.name_cn, website = excluded.website,
  careers_url = excluded.careers_url, enabled = excluded.enabled, updated_at = excluded.updated_at;`,
			src.Code, src.Name, src.NameCN, src.Website, src.CareersURL,
			boolInt(src.Enabled), now, now)
		if err != nil {
			return fmt.Errorf("seed company %s: %w", src.Code, err)
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const companyColumns = `code, name, name_cn, website, careers_url, enabled,
crawl_interval_hours, last_crawled_at`

func scanCompany(row interface{ Scan(...any) error }) (domain.Source, error) {
	var (
		src         domain.Source
		enabled     int
		intervalHrs sql.NullInt64
		lastCrawled sql.NullString
	)
	err := row.Scan(&src.Code, &src.Name, &src.NameCN, &src.Website, &src.CareersURL,
		&enabled, &intervalHrs, &lastCrawled)
	if err != nil {
		return src, err
	}
	src.Enabled = enabled != 0
	if intervalHrs.Valid {
		src.CrawlInterval = int(intervalHrs.Int64)
	}
	if lastCrawled.Valid {
		t := parseTime(lastCrawled.String)
		src.LastCrawledAt = &t
	}
	return src, nil
}

// Companies lists every known source, enabled or not, ordered by code.
func (s *Store) Companies(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s FROM companies ORDER BY code;`, companyColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		src, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *Store) CompanyByCode(ctx context.Context, code string) (domain.Source, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s FROM companies WHERE code = ?;`, companyColumns), code)
	src, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return src, ErrNotFound
	}
	return src, err
}

// EnabledSources returns the codes the scheduler should crawl, ordered
// for a deterministic crawl sequence.
func (s *Store) EnabledSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT code FROM companies WHERE enabled = 1 ORDER BY code;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// TouchCrawled records when a source was last crawled.
func (s *Store) TouchCrawled(ctx context.Context, code string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE companies SET last_crawled_at = ?, updated_at = ? WHERE code = ?;`,
		fmtTime(at), fmtTime(time.Now()), code)
	return err
}
