package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

var (
	_ Store    = (*Memory)(nil)
	_ JobQueue = (*Memory)(nil)
)

// Memory is a map-backed Store. Insertion order is tracked separately so
// list methods are deterministic.
type Memory struct {
	mu sync.RWMutex

	notes     map[string]Note
	noteOrder []string
	links     map[string]Link
	linkOrder []string
	tags      map[string]Tag
	tagOrder  []string

	noteTags map[string][]string // note ID -> tag IDs in assignment order
	linkTags map[string][]string // link ID -> tag IDs in assignment order

	connections []Connection
	jobs        []*Job

	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		notes:    make(map[string]Note),
		links:    make(map[string]Link),
		tags:     make(map[string]Tag),
		noteTags: make(map[string][]string),
		linkTags: make(map[string][]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Close() error { return nil }

// --- Reader ---

func (m *Memory) GetNotes(_ context.Context) ([]Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Note, 0, len(m.noteOrder))
	for _, id := range m.noteOrder {
		out = append(out, m.notes[id])
	}
	return out, nil
}

func (m *Memory) GetLinks(_ context.Context) ([]Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Link, 0, len(m.linkOrder))
	for _, id := range m.linkOrder {
		out = append(out, m.links[id])
	}
	return out, nil
}

func (m *Memory) GetTags(_ context.Context) ([]Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tag, 0, len(m.tagOrder))
	for _, id := range m.tagOrder {
		out = append(out, m.tags[id])
	}
	return out, nil
}

func (m *Memory) GetNoteTagsByNoteID(_ context.Context, noteID string) ([]Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveTags(m.noteTags[noteID]), nil
}

func (m *Memory) GetLinkTagsByLinkID(_ context.Context, linkID string) ([]Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveTags(m.linkTags[linkID]), nil
}

func (m *Memory) resolveTags(ids []string) []Tag {
	out := make([]Tag, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tags[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// --- Notes ---

func (m *Memory) CreateNote(_ context.Context, n *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stampNote(n, m.now())
	if _, exists := m.notes[n.ID]; exists {
		return ErrConflict
	}
	m.notes[n.ID] = *n
	m.noteOrder = append(m.noteOrder, n.ID)
	return nil
}

func (m *Memory) GetNote(_ context.Context, id string) (Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok {
		return Note{}, ErrNotFound
	}
	return n, nil
}

func (m *Memory) UpdateNote(_ context.Context, n Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.notes[n.ID]
	if !ok {
		return ErrNotFound
	}
	n.CreatedAt = old.CreatedAt
	n.UpdatedAt = m.now()
	m.notes[n.ID] = n
	return nil
}

func (m *Memory) DeleteNote(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return ErrNotFound
	}
	delete(m.notes, id)
	delete(m.noteTags, id)
	m.noteOrder = removeID(m.noteOrder, id)
	m.dropConnections(id)
	return nil
}

// --- Links ---

func (m *Memory) CreateLink(_ context.Context, l *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stampLink(l, m.now())
	if _, exists := m.links[l.ID]; exists {
		return ErrConflict
	}
	m.links[l.ID] = *l
	m.linkOrder = append(m.linkOrder, l.ID)
	return nil
}

func (m *Memory) GetLink(_ context.Context, id string) (Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[id]
	if !ok {
		return Link{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) UpdateLink(_ context.Context, l Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.links[l.ID]
	if !ok {
		return ErrNotFound
	}
	l.CreatedAt = old.CreatedAt
	l.UpdatedAt = m.now()
	m.links[l.ID] = l
	return nil
}

func (m *Memory) DeleteLink(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; !ok {
		return ErrNotFound
	}
	delete(m.links, id)
	delete(m.linkTags, id)
	m.linkOrder = removeID(m.linkOrder, id)
	m.dropConnections(id)
	return nil
}

// --- Tags ---

func (m *Memory) CreateTag(_ context.Context, t *Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tags {
		if existing.Name == t.Name {
			return ErrConflict
		}
	}
	stampTag(t)
	if _, exists := m.tags[t.ID]; exists {
		return ErrConflict
	}
	m.tags[t.ID] = *t
	m.tagOrder = append(m.tagOrder, t.ID)
	return nil
}

func (m *Memory) GetTagByName(_ context.Context, name string) (Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.tagOrder {
		if t := m.tags[id]; t.Name == name {
			return t, nil
		}
	}
	return Tag{}, ErrNotFound
}

func (m *Memory) DeleteTag(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tags[id]; !ok {
		return ErrNotFound
	}
	delete(m.tags, id)
	m.tagOrder = removeID(m.tagOrder, id)
	for k, ids := range m.noteTags {
		m.noteTags[k] = removeID(ids, id)
	}
	for k, ids := range m.linkTags {
		m.linkTags[k] = removeID(ids, id)
	}
	return nil
}

func (m *Memory) SetNoteTags(_ context.Context, noteID string, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[noteID]; !ok {
		return ErrNotFound
	}
	ids, err := m.checkTags(tagIDs)
	if err != nil {
		return err
	}
	m.noteTags[noteID] = ids
	return nil
}

func (m *Memory) SetLinkTags(_ context.Context, linkID string, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[linkID]; !ok {
		return ErrNotFound
	}
	ids, err := m.checkTags(tagIDs)
	if err != nil {
		return err
	}
	m.linkTags[linkID] = ids
	return nil
}

func (m *Memory) checkTags(tagIDs []string) ([]string, error) {
	ids := dedupe(tagIDs)
	for _, id := range ids {
		if _, ok := m.tags[id]; !ok {
			return nil, ErrNotFound
		}
	}
	return ids, nil
}

// --- Connections ---

func (m *Memory) CreateConnection(_ context.Context, c *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := stampConnection(c, m.now()); err != nil {
		return err
	}
	if !m.itemExists(c.SourceKind, c.SourceID) || !m.itemExists(c.TargetKind, c.TargetID) {
		return ErrNotFound
	}
	m.connections = append(m.connections, *c)
	return nil
}

func (m *Memory) GetConnections(_ context.Context) ([]Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.connections), nil
}

func (m *Memory) DeleteConnection(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.connections, func(c Connection) bool { return c.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	m.connections = slices.Delete(m.connections, i, i+1)
	return nil
}

func (m *Memory) itemExists(kind ItemKind, id string) bool {
	switch kind {
	case KindNote:
		_, ok := m.notes[id]
		return ok
	case KindLink:
		_, ok := m.links[id]
		return ok
	}
	return false
}

func (m *Memory) dropConnections(itemID string) {
	m.connections = slices.DeleteFunc(m.connections, func(c Connection) bool {
		return c.SourceID == itemID || c.TargetID == itemID
	})
}

// --- Jobs ---

func (m *Memory) EnqueueJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}
	job.Status = "pending"
	job.Attempts = 0
	job.CreatedAt = now
	job.UpdatedAt = now
	m.jobs = append(m.jobs, &job)
	return nil
}

func (m *Memory) ClaimNextJob(_ context.Context, types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var next *Job
	for _, j := range m.jobs {
		if j.Status != "pending" || j.RunAfter.After(now) || !slices.Contains(types, j.Type) {
			continue
		}
		if next == nil || j.RunAfter.Before(next.RunAfter) {
			next = j
		}
	}
	if next == nil {
		return nil, nil
	}
	next.Status = "running"
	next.UpdatedAt = now
	claimed := *next
	return &claimed, nil
}

func (m *Memory) CompleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.findJob(id)
	if j == nil {
		return ErrNotFound
	}
	j.Status = "completed"
	j.UpdatedAt = m.now()
	return nil
}

func (m *Memory) FailJob(_ context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.findJob(id)
	if j == nil {
		return ErrNotFound
	}
	now := m.now()
	j.Attempts++
	j.LastError = errMsg
	j.UpdatedAt = now
	if j.Attempts >= j.MaxAttempts {
		j.Status = "failed"
		return nil
	}
	j.Status = "pending"
	j.RunAfter = now.Add(jobBackoff(j.Attempts))
	return nil
}

func (m *Memory) findJob(id string) *Job {
	for _, j := range m.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}
