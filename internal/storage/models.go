package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness constraint,
// such as creating a second tag with an existing name.
var ErrConflict = errors.New("conflict")

// ItemKind identifies which kind of knowledge item a connection endpoint is.
type ItemKind string

const (
	KindNote ItemKind = "note"
	KindLink ItemKind = "link"
)

// Valid reports whether k names a known item kind.
func (k ItemKind) Valid() bool {
	return k == KindNote || k == KindLink
}

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"` // HTML
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Link struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Connection is a user-drawn edge between two knowledge items.
type Connection struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"sourceId"`
	SourceKind ItemKind  `json:"sourceType"`
	TargetID   string    `json:"targetId"`
	TargetKind ItemKind  `json:"targetType"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
