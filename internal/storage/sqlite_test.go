package storage

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store { return openTestStore(t) })
}

func TestSQLiteJobQueue(t *testing.T) {
	testJobQueueContract(t, func(t *testing.T) JobQueue { return openTestStore(t) })
}

// TestMigrationsIdempotent opens the same database twice and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("first OpenSQLite failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("second OpenSQLite failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) < 2 {
		t.Fatalf("expected at least two applied migrations, got %v", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{
		"idx_note_tags_note_id",
		"idx_link_tags_link_id",
		"idx_connections_source_id",
		"idx_connections_target_id",
		"idx_jobs_status_run_after",
	}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("002_connections_jobs.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for file without version prefix")
	}
}

func TestDeleteNoteCascadesTags(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	n := &Note{Title: "cascade"}
	tag := &Tag{Name: "go"}
	if err := s.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if err := s.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := s.SetNoteTags(ctx, n.ID, []string{tag.ID}); err != nil {
		t.Fatalf("SetNoteTags: %v", err)
	}
	if err := s.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM note_tags`).Scan(&count); err != nil {
		t.Fatalf("counting note_tags: %v", err)
	}
	if count != 0 {
		t.Errorf("note_tags rows = %d, want 0", count)
	}
}

func TestFailJob_SetsBackoff(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.EnqueueJob(ctx, Job{ID: "j-backoff", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	before := time.Now().UTC()
	if err := s.FailJob(ctx, "j-backoff", "retry"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var runAfterStr, status, lastError string
	var attempts int
	err := s.db.QueryRow(`SELECT run_after, status, attempts, last_error FROM jobs WHERE id = 'j-backoff'`).
		Scan(&runAfterStr, &status, &attempts, &lastError)
	if err != nil {
		t.Fatalf("SELECT job: %v", err)
	}
	runAfter, err := parseTime(runAfterStr)
	if err != nil {
		t.Fatalf("parsing run_after: %v", err)
	}

	// attempts=1 -> backoff = 2^1 = 2 seconds
	if runAfter.Before(before.Add(2 * time.Second)) {
		t.Errorf("run_after %v is earlier than expected backoff from %v", runAfter, before)
	}
	if status != "pending" {
		t.Errorf("status = %q, want %q", status, "pending")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if lastError != "retry" {
		t.Errorf("last_error = %q, want %q", lastError, "retry")
	}
}

func TestTimeLayoutSortsAsText(t *testing.T) {
	a := formatTime(time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC))
	b := formatTime(time.Date(2026, 1, 1, 0, 0, 5, 500_000_000, time.UTC))
	if !(a < b) {
		t.Errorf("formatTime ordering broken: %q >= %q", a, b)
	}
}
