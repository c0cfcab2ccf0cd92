package models

import "time"

// ViewSession is the metadata for one open log view. A session owns one
// pagination controller and one archive store; it is created when the
// browser opens the log page and torn down when the page closes or the
// session ages out.
type ViewSession struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"-"`
}

// ViewState is the snapshot the table surface renders from: the
// accumulated record count plus the controller flags, and the last
// transport error (empty when the previous fetch succeeded).
type ViewState struct {
	Total     int    `json:"total"`
	Loading   bool   `json:"loading"`
	AtEnd     bool   `json:"atEnd"`
	LastError string `json:"lastError,omitempty"`
}

// NewViewSession creates a session stamped with the current time.
func NewViewSession(id string) *ViewSession {
	now := time.Now()
	return &ViewSession{ID: id, CreatedAt: now, LastAccessed: now}
}
