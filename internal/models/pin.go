package models

import "time"

// PinStatus tracks whether a pinned CID is still referenced
type PinStatus string

const (
	PinStatusPending    PinStatus = "pending"
	PinStatusReferenced PinStatus = "referenced"
	PinStatusOrphaned   PinStatus = "orphaned"
	PinStatusUnpinning  PinStatus = "unpinning"
	PinStatusUnpinned   PinStatus = "unpinned"
)

// PinKind distinguishes article bodies from media attachments
type PinKind string

const (
	PinKindArticle PinKind = "article"
	PinKindMedia   PinKind = "media"
)

// PinnedContent is one CID this service pinned
type PinnedContent struct {
	CID       string    `json:"cid" db:"cid"`
	Kind      PinKind   `json:"kind" db:"kind"`
	JobID     string    `json:"job_id,omitempty" db:"job_id"`
	Status    PinStatus `json:"status" db:"status"`
	Size      int64     `json:"size" db:"size"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Content is a payload headed for the pinning service
type Content struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// PinResult is what the pinning service reports for an upload
type PinResult struct {
	CID       string `json:"cid"`
	Size      int64  `json:"size"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ReconcileReport summarizes one reconciler pass
type ReconcileReport struct {
	Promoted int64 `json:"promoted"`
	Claimed  int   `json:"claimed"`
	Unpinned int   `json:"unpinned"`
	Failed   int   `json:"failed"`
}

// Stats summarizes operational state for the metrics endpoint
type Stats struct {
	PublishJobs map[PublishState]int `json:"publish_jobs"`
	Pins        map[PinStatus]int    `json:"pins"`
	Sessions    int                  `json:"sessions"`
}
