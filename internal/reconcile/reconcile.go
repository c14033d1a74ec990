// Package reconcile folds a crawl's snapshot of a source into the
// stored posting set, emitting change records for everything that
// actually moved.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"internwatch-engine/internal/domain"
)

// DefaultGrace is how long a posting may go unseen before it is
// considered taken down. A single failed crawl never expires anything.
const DefaultGrace = 48 * time.Hour

// Counts summarizes one reconciliation pass.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Expired   int `json:"expired"`
}

// Store is the persistence surface reconciliation needs.
type Store interface {
	ActivePostings(ctx context.Context, source string) ([]domain.Posting, error)
	CreatePosting(ctx context.Context, p domain.Posting, rec domain.ChangeRecord) (string, error)
	UpdatePosting(ctx context.Context, p domain.Posting, rec domain.ChangeRecord) error
	RefreshSeen(ctx context.Context, id string, now time.Time) error
	ExpirePosting(ctx context.Context, id string, rec domain.ChangeRecord) error
}

// Engine serializes writes per source: two syncs for the same source
// never interleave, while distinct sources proceed concurrently.
type Engine struct {
	store  Store
	grace  time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store Store, grace time.Duration, logger *zap.Logger) *Engine {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		grace:  grace,
		logger: logger,
		locks:  map[string]*sync.Mutex{},
	}
}

func (e *Engine) sourceLock(source string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[source]
	if !ok {
		l = &sync.Mutex{}
		e.locks[source] = l
	}
	return l
}

// Sync reconciles one crawl snapshot against the stored active
// postings for source. Each mutation is its own transaction, so a
// failure partway leaves earlier postings fully applied and later
// ones untouched.
func (e *Engine) Sync(ctx context.Context, source string, crawled []domain.Posting, now time.Time) (Counts, error) {
	lock := e.sourceLock(source)
	lock.Lock()
	defer lock.Unlock()

	var counts Counts

	active, err := e.store.ActivePostings(ctx, source)
	if err != nil {
		return counts, fmt.Errorf("load active postings for %s: %w", source, err)
	}
	existing := make(map[string]domain.Posting, len(active))
	for _, p := range active {
		existing[p.PostID] = p
	}

	seen := make(map[string]bool, len(crawled))
	for _, incoming := range crawled {
		if incoming.PostID == "" {
			e.logger.Warn("skipping posting without post id",
				zap.String("source", source), zap.String("title", incoming.Title))
			continue
		}
		if seen[incoming.PostID] {
			continue
		}
		seen[incoming.PostID] = true

		stored, ok := existing[incoming.PostID]
		if !ok {
			if err := e.create(ctx, source, incoming, now); err != nil {
				return counts, err
			}
			counts.Created++
			continue
		}

		if incoming.ContentFingerprint() == stored.Fingerprint {
			if err := e.store.RefreshSeen(ctx, stored.ID, now); err != nil {
				return counts, fmt.Errorf("refresh posting %s: %w", stored.ID, err)
			}
			counts.Unchanged++
			continue
		}

		if err := e.update(ctx, stored, incoming, now); err != nil {
			return counts, err
		}
		counts.Updated++
	}

	for postID, stored := range existing {
		if seen[postID] {
			continue
		}
		if now.Sub(stored.LastSeenAt) <= e.grace {
			continue
		}
		rec := domain.ChangeRecord{Type: domain.ChangeRemoved, CreatedAt: now}
		if err := e.store.ExpirePosting(ctx, stored.ID, rec); err != nil {
			return counts, fmt.Errorf("expire posting %s: %w", stored.ID, err)
		}
		counts.Expired++
	}

	e.logger.Info("reconciled source",
		zap.String("source", source),
		zap.Int("created", counts.Created),
		zap.Int("updated", counts.Updated),
		zap.Int("unchanged", counts.Unchanged),
		zap.Int("expired", counts.Expired))
	return counts, nil
}

func (e *Engine) create(ctx context.Context, source string, p domain.Posting, now time.Time) error {
	p.Source = source
	p.Status = domain.StatusActive
	p.Fingerprint = p.ContentFingerprint()
	p.LastCrawledAt = now
	p.LastSeenAt = now

	snapshot, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("snapshot posting %s: %w", p.PostID, err)
	}
	rec := domain.ChangeRecord{
		Type:      domain.ChangeCreated,
		Snapshot:  snapshot,
		CreatedAt: now,
	}
	if _, err := e.store.CreatePosting(ctx, p, rec); err != nil {
		return fmt.Errorf("create posting %s: %w", p.PostID, err)
	}
	return nil
}

func (e *Engine) update(ctx context.Context, stored, incoming domain.Posting, now time.Time) error {
	diff := map[string]domain.FieldChange{}
	if stored.Title != incoming.Title {
		diff["title"] = domain.FieldChange{Old: stored.Title, New: incoming.Title}
	}
	if stored.Location != incoming.Location {
		diff["location"] = domain.FieldChange{Old: stored.Location, New: incoming.Location}
	}
	// Descriptions run to kilobytes; the diff notes that one changed
	// without embedding both copies.
	if stored.Description != incoming.Description {
		diff["description"] = domain.FieldChange{Old: "(changed)", New: "(changed)"}
	}

	next := stored
	next.Title = incoming.Title
	next.URL = incoming.URL
	next.Location = incoming.Location
	next.Description = incoming.Description
	next.Requirements = incoming.Requirements
	next.Salary = incoming.Salary
	next.Category = incoming.Category
	next.Tags = incoming.Tags
	next.JobType = incoming.JobType
	next.Raw = incoming.Raw
	next.Fingerprint = incoming.ContentFingerprint()
	next.LastCrawledAt = now
	next.LastSeenAt = now

	rec := domain.ChangeRecord{
		Type:      domain.ChangeUpdated,
		Diff:      diff,
		CreatedAt: now,
	}
	if err := e.store.UpdatePosting(ctx, next, rec); err != nil {
		return fmt.Errorf("update posting %s: %w", stored.ID, err)
	}
	return nil
}
