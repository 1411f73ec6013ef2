package storage

import (
	"context"
	"errors"
	"testing"
)

// testStoreContract runs the behaviour every Store backend must share.
func testStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("NoteRoundTrip", func(t *testing.T) {
		s := open(t)
		n := &Note{Title: "Go generics", Content: "<p>type params</p>"}
		if err := s.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
		if n.ID == "" {
			t.Fatal("CreateNote did not assign an ID")
		}
		if n.CreatedAt.IsZero() || n.UpdatedAt.IsZero() {
			t.Error("CreateNote did not stamp timestamps")
		}

		got, err := s.GetNote(ctx, n.ID)
		if err != nil {
			t.Fatalf("GetNote: %v", err)
		}
		if got.Title != n.Title || got.Content != n.Content {
			t.Errorf("GetNote = %+v, want title %q content %q", got, n.Title, n.Content)
		}
	})

	t.Run("GetNoteNotFound", func(t *testing.T) {
		s := open(t)
		if _, err := s.GetNote(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetNote(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListsKeepInsertionOrder", func(t *testing.T) {
		s := open(t)
		for _, title := range []string{"first", "second", "third"} {
			if err := s.CreateNote(ctx, &Note{Title: title}); err != nil {
				t.Fatalf("CreateNote(%s): %v", title, err)
			}
		}
		notes, err := s.GetNotes(ctx)
		if err != nil {
			t.Fatalf("GetNotes: %v", err)
		}
		if len(notes) != 3 {
			t.Fatalf("len(notes) = %d, want 3", len(notes))
		}
		for i, want := range []string{"first", "second", "third"} {
			if notes[i].Title != want {
				t.Errorf("notes[%d].Title = %q, want %q", i, notes[i].Title, want)
			}
		}
	})

	t.Run("EmptyListsAreNotNil", func(t *testing.T) {
		s := open(t)
		notes, err := s.GetNotes(ctx)
		if err != nil || notes == nil {
			t.Errorf("GetNotes = %v, %v; want empty non-nil slice", notes, err)
		}
		links, err := s.GetLinks(ctx)
		if err != nil || links == nil {
			t.Errorf("GetLinks = %v, %v; want empty non-nil slice", links, err)
		}
		tags, err := s.GetNoteTagsByNoteID(ctx, "missing")
		if err != nil || tags == nil {
			t.Errorf("GetNoteTagsByNoteID = %v, %v; want empty non-nil slice", tags, err)
		}
	})

	t.Run("UpdateNote", func(t *testing.T) {
		s := open(t)
		n := &Note{Title: "draft"}
		if err := s.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
		n.Title = "final"
		if err := s.UpdateNote(ctx, *n); err != nil {
			t.Fatalf("UpdateNote: %v", err)
		}
		got, _ := s.GetNote(ctx, n.ID)
		if got.Title != "final" {
			t.Errorf("Title = %q, want %q", got.Title, "final")
		}
		if err := s.UpdateNote(ctx, Note{ID: "missing"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateNote(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("LinkRoundTrip", func(t *testing.T) {
		s := open(t)
		l := &Link{URL: "https://go.dev", Title: "Go", Description: "The Go language", ThumbnailURL: "https://go.dev/logo.png"}
		if err := s.CreateLink(ctx, l); err != nil {
			t.Fatalf("CreateLink: %v", err)
		}
		got, err := s.GetLink(ctx, l.ID)
		if err != nil {
			t.Fatalf("GetLink: %v", err)
		}
		if got.URL != l.URL || got.Description != l.Description || got.ThumbnailURL != l.ThumbnailURL {
			t.Errorf("GetLink = %+v, want %+v", got, *l)
		}

		got.Summary = "A summary"
		if err := s.UpdateLink(ctx, got); err != nil {
			t.Fatalf("UpdateLink: %v", err)
		}
		got, _ = s.GetLink(ctx, l.ID)
		if got.Summary != "A summary" {
			t.Errorf("Summary = %q, want %q", got.Summary, "A summary")
		}
	})

	t.Run("TagNamesAreUnique", func(t *testing.T) {
		s := open(t)
		if err := s.CreateTag(ctx, &Tag{Name: "go", Color: "#00ADD8"}); err != nil {
			t.Fatalf("CreateTag: %v", err)
		}
		if err := s.CreateTag(ctx, &Tag{Name: "go"}); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate CreateTag error = %v, want ErrConflict", err)
		}
		got, err := s.GetTagByName(ctx, "go")
		if err != nil {
			t.Fatalf("GetTagByName: %v", err)
		}
		if got.Color != "#00ADD8" {
			t.Errorf("Color = %q, want %q", got.Color, "#00ADD8")
		}
	})

	t.Run("SetNoteTagsKeepsOrder", func(t *testing.T) {
		s := open(t)
		n := &Note{Title: "tagged"}
		if err := s.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
		var ids []string
		for _, name := range []string{"zeta", "alpha", "mid"} {
			tag := &Tag{Name: name}
			if err := s.CreateTag(ctx, tag); err != nil {
				t.Fatalf("CreateTag(%s): %v", name, err)
			}
			ids = append(ids, tag.ID)
		}
		if err := s.SetNoteTags(ctx, n.ID, append(ids, ids[0])); err != nil {
			t.Fatalf("SetNoteTags: %v", err)
		}

		tags, err := s.GetNoteTagsByNoteID(ctx, n.ID)
		if err != nil {
			t.Fatalf("GetNoteTagsByNoteID: %v", err)
		}
		if len(tags) != 3 {
			t.Fatalf("len(tags) = %d, want 3 (duplicates dropped)", len(tags))
		}
		for i, want := range []string{"zeta", "alpha", "mid"} {
			if tags[i].Name != want {
				t.Errorf("tags[%d] = %q, want %q", i, tags[i].Name, want)
			}
		}

		if err := s.SetNoteTags(ctx, n.ID, ids[1:2]); err != nil {
			t.Fatalf("SetNoteTags replace: %v", err)
		}
		tags, _ = s.GetNoteTagsByNoteID(ctx, n.ID)
		if len(tags) != 1 || tags[0].Name != "alpha" {
			t.Errorf("after replace tags = %+v, want [alpha]", tags)
		}
	})

	t.Run("SetTagsRejectsUnknownIDs", func(t *testing.T) {
		s := open(t)
		l := &Link{URL: "https://example.com"}
		if err := s.CreateLink(ctx, l); err != nil {
			t.Fatalf("CreateLink: %v", err)
		}
		if err := s.SetLinkTags(ctx, l.ID, []string{"nope"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetLinkTags(unknown tag) error = %v, want ErrNotFound", err)
		}
		if err := s.SetLinkTags(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetLinkTags(unknown link) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteTagDetachesItems", func(t *testing.T) {
		s := open(t)
		l := &Link{URL: "https://example.com"}
		tag := &Tag{Name: "web"}
		if err := s.CreateLink(ctx, l); err != nil {
			t.Fatalf("CreateLink: %v", err)
		}
		if err := s.CreateTag(ctx, tag); err != nil {
			t.Fatalf("CreateTag: %v", err)
		}
		if err := s.SetLinkTags(ctx, l.ID, []string{tag.ID}); err != nil {
			t.Fatalf("SetLinkTags: %v", err)
		}
		if err := s.DeleteTag(ctx, tag.ID); err != nil {
			t.Fatalf("DeleteTag: %v", err)
		}
		tags, err := s.GetLinkTagsByLinkID(ctx, l.ID)
		if err != nil {
			t.Fatalf("GetLinkTagsByLinkID: %v", err)
		}
		if len(tags) != 0 {
			t.Errorf("tags after delete = %+v, want none", tags)
		}
	})

	t.Run("Connections", func(t *testing.T) {
		s := open(t)
		n := &Note{Title: "note"}
		l := &Link{URL: "https://example.com"}
		if err := s.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote: %v", err)
		}
		if err := s.CreateLink(ctx, l); err != nil {
			t.Fatalf("CreateLink: %v", err)
		}

		c := &Connection{SourceID: n.ID, SourceKind: KindNote, TargetID: l.ID, TargetKind: KindLink}
		if err := s.CreateConnection(ctx, c); err != nil {
			t.Fatalf("CreateConnection: %v", err)
		}
		bad := &Connection{SourceID: n.ID, SourceKind: KindNote, TargetID: "missing", TargetKind: KindLink}
		if err := s.CreateConnection(ctx, bad); !errors.Is(err, ErrNotFound) {
			t.Errorf("CreateConnection(missing target) error = %v, want ErrNotFound", err)
		}

		conns, err := s.GetConnections(ctx)
		if err != nil {
			t.Fatalf("GetConnections: %v", err)
		}
		if len(conns) != 1 || conns[0].SourceID != n.ID || conns[0].TargetKind != KindLink {
			t.Fatalf("GetConnections = %+v, want one note->link edge", conns)
		}

		if err := s.DeleteNote(ctx, n.ID); err != nil {
			t.Fatalf("DeleteNote: %v", err)
		}
		conns, _ = s.GetConnections(ctx)
		if len(conns) != 0 {
			t.Errorf("connections after DeleteNote = %+v, want none", conns)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		s := open(t)
		if err := s.DeleteNote(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteNote error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteLink(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteLink error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteConnection(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteConnection error = %v, want ErrNotFound", err)
		}
	})
}

// testJobQueueContract runs the behaviour every JobQueue backend must share.
func testJobQueueContract(t *testing.T, open func(t *testing.T) JobQueue) {
	ctx := context.Background()

	t.Run("EnqueueAndClaim", func(t *testing.T) {
		q := open(t)
		if err := q.EnqueueJob(ctx, Job{ID: "j-claim-1", Type: "autotag", PayloadJSON: `{"item_id":"n1"}`}); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
		got, err := q.ClaimNextJob(ctx, []string{"autotag"})
		if err != nil {
			t.Fatalf("ClaimNextJob: %v", err)
		}
		if got == nil {
			t.Fatal("ClaimNextJob returned nil")
		}
		if got.ID != "j-claim-1" {
			t.Errorf("ID = %q, want %q", got.ID, "j-claim-1")
		}
		if got.PayloadJSON != `{"item_id":"n1"}` {
			t.Errorf("PayloadJSON = %q, want %q", got.PayloadJSON, `{"item_id":"n1"}`)
		}
		if got.Status != "running" {
			t.Errorf("Status = %q, want %q", got.Status, "running")
		}
		if got.MaxAttempts != 3 {
			t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
		}

		again, err := q.ClaimNextJob(ctx, []string{"autotag"})
		if err != nil {
			t.Fatalf("second ClaimNextJob: %v", err)
		}
		if again != nil {
			t.Errorf("running job claimed twice: %+v", again)
		}
	})

	t.Run("TypeFilter", func(t *testing.T) {
		q := open(t)
		if err := q.EnqueueJob(ctx, Job{ID: "j-a", Type: "a", PayloadJSON: `{}`}); err != nil {
			t.Fatalf("EnqueueJob a: %v", err)
		}
		got, err := q.ClaimNextJob(ctx, []string{"b"})
		if err != nil {
			t.Fatalf("ClaimNextJob: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for unmatched type, got %+v", got)
		}
		got, _ = q.ClaimNextJob(ctx, nil)
		if got != nil {
			t.Errorf("expected nil for empty type list, got %+v", got)
		}
	})

	t.Run("CompleteJob", func(t *testing.T) {
		q := open(t)
		if err := q.EnqueueJob(ctx, Job{ID: "j-done", Type: "x", PayloadJSON: `{}`}); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
		if _, err := q.ClaimNextJob(ctx, []string{"x"}); err != nil {
			t.Fatalf("ClaimNextJob: %v", err)
		}
		if err := q.CompleteJob(ctx, "j-done"); err != nil {
			t.Fatalf("CompleteJob: %v", err)
		}
		if err := q.CompleteJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("CompleteJob(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("FailJobBacksOff", func(t *testing.T) {
		q := open(t)
		if err := q.EnqueueJob(ctx, Job{ID: "j-retry", Type: "x", PayloadJSON: `{}`}); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
		if _, err := q.ClaimNextJob(ctx, []string{"x"}); err != nil {
			t.Fatalf("ClaimNextJob: %v", err)
		}
		if err := q.FailJob(ctx, "j-retry", "boom"); err != nil {
			t.Fatalf("FailJob: %v", err)
		}
		got, err := q.ClaimNextJob(ctx, []string{"x"})
		if err != nil {
			t.Fatalf("ClaimNextJob after fail: %v", err)
		}
		if got != nil {
			t.Errorf("job claimable before backoff elapsed: %+v", got)
		}
	})

	t.Run("FailJobMaxAttempts", func(t *testing.T) {
		q := open(t)
		if err := q.EnqueueJob(ctx, Job{ID: "j-once", Type: "x", PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
			t.Fatalf("EnqueueJob: %v", err)
		}
		if err := q.FailJob(ctx, "j-once", "fatal"); err != nil {
			t.Fatalf("FailJob: %v", err)
		}
		if err := q.FailJob(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("FailJob(missing) error = %v, want ErrNotFound", err)
		}
	})
}
