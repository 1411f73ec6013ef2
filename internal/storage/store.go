package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Reader is the read side of the knowledge store. It is all the search
// engine needs; every backend implements it.
type Reader interface {
	GetNotes(ctx context.Context) ([]Note, error)
	GetLinks(ctx context.Context) ([]Link, error)
	GetTags(ctx context.Context) ([]Tag, error)
	GetNoteTagsByNoteID(ctx context.Context, noteID string) ([]Tag, error)
	GetLinkTagsByLinkID(ctx context.Context, linkID string) ([]Tag, error)
}

// Store is the full knowledge store used by the CRUD API.
//
// List methods return items in insertion order. Create methods fill in a
// missing ID and timestamps on the passed value.
type Store interface {
	Reader

	CreateNote(ctx context.Context, n *Note) error
	GetNote(ctx context.Context, id string) (Note, error)
	UpdateNote(ctx context.Context, n Note) error
	DeleteNote(ctx context.Context, id string) error

	CreateLink(ctx context.Context, l *Link) error
	GetLink(ctx context.Context, id string) (Link, error)
	UpdateLink(ctx context.Context, l Link) error
	DeleteLink(ctx context.Context, id string) error

	CreateTag(ctx context.Context, t *Tag) error
	GetTagByName(ctx context.Context, name string) (Tag, error)
	DeleteTag(ctx context.Context, id string) error

	// SetNoteTags replaces the note's tag assignments, keeping the given order.
	SetNoteTags(ctx context.Context, noteID string, tagIDs []string) error
	// SetLinkTags replaces the link's tag assignments, keeping the given order.
	SetLinkTags(ctx context.Context, linkID string, tagIDs []string) error

	CreateConnection(ctx context.Context, c *Connection) error
	GetConnections(ctx context.Context) ([]Connection, error)
	DeleteConnection(ctx context.Context, id string) error

	Close() error
}

// JobQueue is the background job queue. Backends that cannot host a queue
// simply do not implement it.
type JobQueue interface {
	EnqueueJob(ctx context.Context, job Job) error
	ClaimNextJob(ctx context.Context, types []string) (*Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Options selects and configures a storage backend.
type Options struct {
	Backend string // "memory", "sqlite" or "neo4j"
	DataDir string
	Neo4j   Neo4jConfig
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(opts.DataDir)
	case "neo4j":
		return OpenNeo4j(ctx, opts.Neo4j)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func stampNote(n *Note, now time.Time) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
}

func stampLink(l *Link, now time.Time) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
}

func stampTag(t *Tag) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
}

func stampConnection(c *Connection, now time.Time) error {
	if !c.SourceKind.Valid() || !c.TargetKind.Valid() {
		return fmt.Errorf("invalid connection endpoint kinds %q -> %q", c.SourceKind, c.TargetKind)
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	return nil
}

// dedupe drops repeated IDs while keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// jobBackoff is the delay before a failed job becomes claimable again.
func jobBackoff(attempts int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempts))) * time.Second
}
