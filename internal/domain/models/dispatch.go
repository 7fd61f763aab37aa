package models

import "time"

// Candidate is one entry of a dispatch decision.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DiscussionStatus is the lifecycle state of a discussion run.
type DiscussionStatus string

const (
	DiscussionRunning   DiscussionStatus = "running"
	DiscussionPaused    DiscussionStatus = "paused"
	DiscussionCompleted DiscussionStatus = "completed"
	DiscussionAborted   DiscussionStatus = "aborted"
	DiscussionFailed    DiscussionStatus = "failed"
)

// Terminal reports whether no further rounds can run.
func (s DiscussionStatus) Terminal() bool {
	return s == DiscussionCompleted || s == DiscussionAborted || s == DiscussionFailed
}

// DiscussionState is the externally visible snapshot of a discussion run.
type DiscussionState struct {
	ID              string           `json:"id"`
	GroupID         string           `json:"groupId"`
	Topic           string           `json:"topic"`
	TotalRounds     int              `json:"totalRounds"`
	CompletedRounds int              `json:"completedRounds"`
	Status          DiscussionStatus `json:"status"`
	LastError       string           `json:"lastError,omitempty"`
	History         []Message        `json:"history,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}
