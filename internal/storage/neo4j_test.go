package storage

import (
	"context"
	"os"
	"testing"
	"time"
)

func openTestNeo4j(t *testing.T) *Neo4j {
	t.Helper()
	uri := os.Getenv("KNOWD_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("KNOWD_TEST_NEO4J_URI not set")
	}
	cfg := Neo4jConfig{
		URI:      uri,
		Username: envOr("KNOWD_TEST_NEO4J_USERNAME", "neo4j"),
		Password: os.Getenv("KNOWD_TEST_NEO4J_PASSWORD"),
	}

	ctx := context.Background()
	s, err := OpenNeo4j(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenNeo4j: %v", err)
	}
	if _, err := s.query(ctx, `MATCH (n) WHERE n:Note OR n:Link OR n:Tag OR n:Sequence DETACH DELETE n`, nil); err != nil {
		t.Fatalf("wiping database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestNeo4jStore runs the store contract against a live Neo4j instance.
// Set KNOWD_TEST_NEO4J_URI (and optionally KNOWD_TEST_NEO4J_USERNAME,
// KNOWD_TEST_NEO4J_PASSWORD) to enable it. The database is wiped between
// subtests.
func TestNeo4jStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		return openTestNeo4j(t)
	})
}

// Every create below happens on the same clock tick; list order must still
// follow insertion.
func TestNeo4jOrderWithFrozenClock(t *testing.T) {
	s := openTestNeo4j(t)
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }
	ctx := context.Background()

	titles := []string{"zulu", "alpha", "mike", "bravo", "yankee"}
	for _, title := range titles {
		if err := s.CreateNote(ctx, &Note{Title: title}); err != nil {
			t.Fatalf("CreateNote(%s): %v", title, err)
		}
		if err := s.CreateLink(ctx, &Link{URL: "https://example.com/" + title, Title: title}); err != nil {
			t.Fatalf("CreateLink(%s): %v", title, err)
		}
		if err := s.CreateTag(ctx, &Tag{Name: title}); err != nil {
			t.Fatalf("CreateTag(%s): %v", title, err)
		}
	}

	notes, err := s.GetNotes(ctx)
	if err != nil {
		t.Fatalf("GetNotes: %v", err)
	}
	links, err := s.GetLinks(ctx)
	if err != nil {
		t.Fatalf("GetLinks: %v", err)
	}
	tags, err := s.GetTags(ctx)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if len(notes) != len(titles) || len(links) != len(titles) || len(tags) != len(titles) {
		t.Fatalf("got %d notes, %d links, %d tags; want %d each", len(notes), len(links), len(tags), len(titles))
	}
	for i, want := range titles {
		if notes[i].Title != want || links[i].Title != want || tags[i].Name != want {
			t.Errorf("position %d: note %q, link %q, tag %q; want %q",
				i, notes[i].Title, links[i].Title, tags[i].Name, want)
		}
	}

	for i := 1; i < len(notes); i++ {
		c := Connection{SourceID: notes[0].ID, SourceKind: KindNote, TargetID: notes[i].ID, TargetKind: KindNote}
		if err := s.CreateConnection(ctx, &c); err != nil {
			t.Fatalf("CreateConnection: %v", err)
		}
	}
	conns, err := s.GetConnections(ctx)
	if err != nil {
		t.Fatalf("GetConnections: %v", err)
	}
	for i, c := range conns {
		if c.TargetID != notes[i+1].ID {
			t.Errorf("connection %d targets %s, want %s", i, c.TargetID, notes[i+1].ID)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
