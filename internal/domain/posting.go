package domain

import (
	"encoding/json"
	"time"
)

// JobType classifies a posting by the audience it targets.
type JobType string

const (
	JobTypeIntern  JobType = "intern"
	JobTypeCampus  JobType = "campus"
	JobTypeSocial  JobType = "social"
	JobTypeUnknown JobType = "unknown"
)

// Status is a posting's lifecycle state.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusUnknown Status = "unknown"
)

// Posting is one normalized job listing. Identity is (Source, PostID):
// PostID is the employer's own identifier, or a derived one when the
// source exposes none.
type Posting struct {
	ID            string          `json:"id"`
	Source        string          `json:"source"`
	PostID        string          `json:"postId"`
	Title         string          `json:"title"`
	URL           string          `json:"url"`
	Location      string          `json:"location,omitempty"`
	Description   string          `json:"description,omitempty"`
	Requirements  string          `json:"requirements,omitempty"`
	Salary        string          `json:"salary,omitempty"`
	Category      string          `json:"category,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	JobType       JobType         `json:"jobType"`
	Status        Status          `json:"status"`
	PostedAt      *time.Time      `json:"postedAt,omitempty"`
	LastCrawledAt time.Time       `json:"lastCrawledAt"`
	LastSeenAt    time.Time       `json:"lastSeenAt"`
	Fingerprint   string          `json:"fingerprint,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Source is an employer site the engine crawls, identified by a short
// code like "bytedance". The engine only reads Code and Enabled; the
// rest is display metadata for the companies API.
type Source struct {
	Code          string     `json:"code"`
	Name          string     `json:"name"`
	NameCN        string     `json:"nameCn,omitempty"`
	Website       string     `json:"website,omitempty"`
	CareersURL    string     `json:"careersUrl,omitempty"`
	Enabled       bool       `json:"enabled"`
	CrawlInterval int        `json:"crawlIntervalHours,omitempty"`
	LastCrawledAt *time.Time `json:"lastCrawledAt,omitempty"`
}
