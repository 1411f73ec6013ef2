package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ Store    = (*SQLite)(nil)
	_ JobQueue = (*SQLite)(nil)
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func OpenSQLite(dataDir string) (*SQLite, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "knowd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s := &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *SQLite) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// --- Notes ---

const noteColumns = `id, title, content, created_at, updated_at`

func scanNote(sc scanner) (Note, error) {
	var n Note
	var createdAt, updatedAt string
	if err := sc.Scan(&n.ID, &n.Title, &n.Content, &createdAt, &updatedAt); err != nil {
		return Note{}, err
	}
	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return Note{}, fmt.Errorf("parsing created_at for note %s: %w", n.ID, err)
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Note{}, fmt.Errorf("parsing updated_at for note %s: %w", n.ID, err)
	}
	return n, nil
}

func (s *SQLite) GetNotes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *SQLite) CreateNote(ctx context.Context, n *Note) error {
	stampNote(n, s.now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	return wrapConstraint(err)
}

func (s *SQLite) GetNote(ctx context.Context, id string) (Note, error) {
	n, err := scanNote(s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	return n, err
}

func (s *SQLite) UpdateNote(ctx context.Context, n Note) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		n.Title, n.Content, formatTime(s.now()), n.ID,
	)
	return affectedOne(res, err)
}

func (s *SQLite) DeleteNote(ctx context.Context, id string) error {
	return s.deleteItem(ctx, "notes", id)
}

// --- Links ---

const linkColumns = `id, url, title, description, summary, thumbnail_url, created_at, updated_at`

func scanLink(sc scanner) (Link, error) {
	var l Link
	var createdAt, updatedAt string
	if err := sc.Scan(&l.ID, &l.URL, &l.Title, &l.Description, &l.Summary, &l.ThumbnailURL, &createdAt, &updatedAt); err != nil {
		return Link{}, err
	}
	var err error
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return Link{}, fmt.Errorf("parsing created_at for link %s: %w", l.ID, err)
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Link{}, fmt.Errorf("parsing updated_at for link %s: %w", l.ID, err)
	}
	return l, nil
}

func (s *SQLite) GetLinks(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	links := []Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *SQLite) CreateLink(ctx context.Context, l *Link) error {
	stampLink(l, s.now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.URL, l.Title, l.Description, l.Summary, l.ThumbnailURL,
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	return wrapConstraint(err)
}

func (s *SQLite) GetLink(ctx context.Context, id string) (Link, error) {
	l, err := scanLink(s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, ErrNotFound
	}
	return l, err
}

func (s *SQLite) UpdateLink(ctx context.Context, l Link) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE links SET url = ?, title = ?, description = ?, summary = ?, thumbnail_url = ?, updated_at = ?
		WHERE id = ?`,
		l.URL, l.Title, l.Description, l.Summary, l.ThumbnailURL, formatTime(s.now()), l.ID,
	)
	return affectedOne(res, err)
}

func (s *SQLite) DeleteLink(ctx context.Context, id string) error {
	return s.deleteItem(ctx, "links", id)
}

// deleteItem removes a note or link together with any connections touching
// it. Tag assignments go through ON DELETE CASCADE.
func (s *SQLite) deleteItem(ctx context.Context, table, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err := affectedOne(res, err); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return fmt.Errorf("deleting connections for %s: %w", id, err)
	}
	return tx.Commit()
}

// --- Tags ---

func (s *SQLite) GetTags(ctx context.Context) ([]Tag, error) {
	return s.queryTags(ctx, `SELECT id, name, color FROM tags ORDER BY rowid ASC`)
}

func (s *SQLite) GetNoteTagsByNoteID(ctx context.Context, noteID string) ([]Tag, error) {
	return s.queryTags(ctx, `
		SELECT t.id, t.name, t.color FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = ? ORDER BY nt.rowid ASC`, noteID)
}

func (s *SQLite) GetLinkTagsByLinkID(ctx context.Context, linkID string) ([]Tag, error) {
	return s.queryTags(ctx, `
		SELECT t.id, t.name, t.color FROM link_tags lt
		JOIN tags t ON t.id = lt.tag_id
		WHERE lt.link_id = ? ORDER BY lt.rowid ASC`, linkID)
}

func (s *SQLite) queryTags(ctx context.Context, query string, args ...any) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *SQLite) CreateTag(ctx context.Context, t *Tag) error {
	stampTag(t)
	_, err := s.db.ExecContext(ctx, `INSERT INTO tags (id, name, color) VALUES (?, ?, ?)`, t.ID, t.Name, t.Color)
	return wrapConstraint(err)
}

func (s *SQLite) GetTagByName(ctx context.Context, name string) (Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, color FROM tags WHERE name = ?`, name).Scan(&t.ID, &t.Name, &t.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return Tag{}, ErrNotFound
	}
	return t, err
}

func (s *SQLite) DeleteTag(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	return affectedOne(res, err)
}

func (s *SQLite) SetNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	return s.setTags(ctx, "notes", "note_tags", "note_id", noteID, tagIDs)
}

func (s *SQLite) SetLinkTags(ctx context.Context, linkID string, tagIDs []string) error {
	return s.setTags(ctx, "links", "link_tags", "link_id", linkID, tagIDs)
}

func (s *SQLite) setTags(ctx context.Context, itemTable, junction, column, itemID string, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tag transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+itemTable+` WHERE id = ?`, itemID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+junction+` WHERE `+column+` = ?`, itemID); err != nil {
		return fmt.Errorf("clearing %s: %w", junction, err)
	}

	for _, tagID := range dedupe(tagIDs) {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE id = ?`, tagID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO `+junction+` (id, `+column+`, tag_id) VALUES (?, ?, ?)`,
			uuid.New().String(), itemID, tagID)
		if err != nil {
			return fmt.Errorf("assigning tag %s: %w", tagID, err)
		}
	}
	return tx.Commit()
}

// --- Connections ---

func (s *SQLite) CreateConnection(ctx context.Context, c *Connection) error {
	if err := stampConnection(c, s.now()); err != nil {
		return err
	}
	for _, end := range []struct {
		kind ItemKind
		id   string
	}{{c.SourceKind, c.SourceID}, {c.TargetKind, c.TargetID}} {
		table := "notes"
		if end.kind == KindLink {
			table = "links"
		}
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, end.id).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (id, source_id, source_type, target_id, target_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.SourceID, string(c.SourceKind), c.TargetID, string(c.TargetKind), formatTime(c.CreatedAt),
	)
	return wrapConstraint(err)
}

func (s *SQLite) GetConnections(ctx context.Context) ([]Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, source_type, target_id, target_type, created_at
		FROM connections ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	conns := []Connection{}
	for rows.Next() {
		var c Connection
		var sourceKind, targetKind, createdAt string
		if err := rows.Scan(&c.ID, &c.SourceID, &sourceKind, &c.TargetID, &targetKind, &createdAt); err != nil {
			return nil, err
		}
		c.SourceKind, c.TargetKind = ItemKind(sourceKind), ItemKind(targetKind)
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for connection %s: %w", c.ID, err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *SQLite) DeleteConnection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	return affectedOne(res, err)
}

// --- Jobs ---

func (s *SQLite) EnqueueJob(ctx context.Context, job Job) error {
	now := formatTime(s.now())
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = formatTime(job.RunAfter)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

func (s *SQLite) ClaimNextJob(ctx context.Context, types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := formatTime(s.now())
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err = tx.QueryRowContext(ctx, query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.LastError = lastError.String
	if j.RunAfter, err = parseTime(runAfter); err != nil {
		return nil, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = parseTime(now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

func (s *SQLite) CompleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	return affectedOne(res, err)
}

func (s *SQLite) FailJob(ctx context.Context, id string, errMsg string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRowContext(ctx, `SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := s.now()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.ExecContext(ctx, `UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, formatTime(now), id)
	} else {
		runAfter := now.Add(jobBackoff(attempts))
		_, err = tx.ExecContext(ctx, `UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, formatTime(runAfter), formatTime(now), id)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func wrapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
