package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var _ Store = (*Neo4j)(nil)

// Neo4jConfig holds Neo4j connection configuration.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4j stores knowledge items as graph nodes. Tag assignments are TAGGED
// relationships carrying their position; connections are CONNECTED
// relationships. It does not implement JobQueue.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
	now      func() time.Time
}

// OpenNeo4j connects to Neo4j and makes sure the uniqueness constraints exist.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	s := &Neo4j{driver: driver, database: database, now: func() time.Time { return time.Now().UTC() }}

	constraints := []string{
		"CREATE CONSTRAINT knowd_note_id IF NOT EXISTS FOR (n:Note) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT knowd_link_id IF NOT EXISTS FOR (l:Link) REQUIRE l.id IS UNIQUE",
		"CREATE CONSTRAINT knowd_tag_id IF NOT EXISTS FOR (t:Tag) REQUIRE t.id IS UNIQUE",
		"CREATE CONSTRAINT knowd_tag_name IF NOT EXISTS FOR (t:Tag) REQUIRE t.name IS UNIQUE",
		"CREATE CONSTRAINT knowd_sequence_name IF NOT EXISTS FOR (q:Sequence) REQUIRE q.name IS UNIQUE",
	}
	for _, c := range constraints {
		if _, err := s.query(ctx, c, nil); err != nil {
			driver.Close(ctx)
			return nil, fmt.Errorf("creating constraint: %w", err)
		}
	}

	return s, nil
}

// Close closes the driver.
func (s *Neo4j) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Neo4j) query(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// write runs fn in a managed write transaction.
func (s *Neo4j) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return err
}

// nextSeq bumps the per-label counter node and binds the new value to seq.
// The SET takes a write lock on the counter, so concurrent creates get
// distinct, increasing values.
func nextSeq(label string) string {
	return `
		MERGE (q:Sequence {name: '` + label + `'})
		ON CREATE SET q.value = 0
		SET q.value = q.value + 1
		WITH q.value AS seq`
}

func recordString(rec *neo4j.Record, key string) (string, error) {
	v, isNil, err := neo4j.GetRecordValue[string](rec, key)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	if isNil {
		return "", nil
	}
	return v, nil
}

func recordTime(rec *neo4j.Record, key string) (time.Time, error) {
	v, err := recordString(rec, key)
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(v)
}

// --- Notes ---

const noteReturn = `n.id AS id, n.title AS title, n.content AS content, n.created_at AS created_at, n.updated_at AS updated_at`

func noteFromRecord(rec *neo4j.Record) (Note, error) {
	var n Note
	var err error
	if n.ID, err = recordString(rec, "id"); err != nil {
		return Note{}, err
	}
	if n.Title, err = recordString(rec, "title"); err != nil {
		return Note{}, err
	}
	if n.Content, err = recordString(rec, "content"); err != nil {
		return Note{}, err
	}
	if n.CreatedAt, err = recordTime(rec, "created_at"); err != nil {
		return Note{}, err
	}
	if n.UpdatedAt, err = recordTime(rec, "updated_at"); err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *Neo4j) GetNotes(ctx context.Context) ([]Note, error) {
	records, err := s.query(ctx, `MATCH (n:Note) RETURN `+noteReturn+` ORDER BY n.seq ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	notes := make([]Note, 0, len(records))
	for _, rec := range records {
		n, err := noteFromRecord(rec)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func (s *Neo4j) CreateNote(ctx context.Context, n *Note) error {
	stampNote(n, s.now())
	_, err := s.query(ctx, nextSeq("Note")+`
		CREATE (n:Note {id: $id, title: $title, content: $content,
			created_at: $created_at, updated_at: $updated_at, seq: seq})`,
		map[string]any{
			"id":         n.ID,
			"title":      n.Title,
			"content":    n.Content,
			"created_at": formatTime(n.CreatedAt),
			"updated_at": formatTime(n.UpdatedAt),
		})
	return s.wrapWriteErr(err)
}

func (s *Neo4j) GetNote(ctx context.Context, id string) (Note, error) {
	records, err := s.query(ctx, `MATCH (n:Note {id: $id}) RETURN `+noteReturn, map[string]any{"id": id})
	if err != nil {
		return Note{}, fmt.Errorf("querying note: %w", err)
	}
	if len(records) == 0 {
		return Note{}, ErrNotFound
	}
	return noteFromRecord(records[0])
}

func (s *Neo4j) UpdateNote(ctx context.Context, n Note) error {
	records, err := s.query(ctx, `
		MATCH (n:Note {id: $id})
		SET n.title = $title, n.content = $content, n.updated_at = $updated_at
		RETURN n.id AS id`,
		map[string]any{
			"id":         n.ID,
			"title":      n.Title,
			"content":    n.Content,
			"updated_at": formatTime(s.now()),
		})
	return foundOne(records, err)
}

func (s *Neo4j) DeleteNote(ctx context.Context, id string) error {
	return s.deleteNode(ctx, "Note", id)
}

// --- Links ---

const linkReturn = `l.id AS id, l.url AS url, l.title AS title, l.description AS description,
	l.summary AS summary, l.thumbnail_url AS thumbnail_url, l.created_at AS created_at, l.updated_at AS updated_at`

func linkFromRecord(rec *neo4j.Record) (Link, error) {
	var l Link
	fields := []struct {
		key string
		dst *string
	}{
		{"id", &l.ID},
		{"url", &l.URL},
		{"title", &l.Title},
		{"description", &l.Description},
		{"summary", &l.Summary},
		{"thumbnail_url", &l.ThumbnailURL},
	}
	for _, f := range fields {
		v, err := recordString(rec, f.key)
		if err != nil {
			return Link{}, err
		}
		*f.dst = v
	}
	var err error
	if l.CreatedAt, err = recordTime(rec, "created_at"); err != nil {
		return Link{}, err
	}
	if l.UpdatedAt, err = recordTime(rec, "updated_at"); err != nil {
		return Link{}, err
	}
	return l, nil
}

func linkParams(l Link) map[string]any {
	return map[string]any{
		"id":            l.ID,
		"url":           l.URL,
		"title":         l.Title,
		"description":   l.Description,
		"summary":       l.Summary,
		"thumbnail_url": l.ThumbnailURL,
	}
}

func (s *Neo4j) GetLinks(ctx context.Context) ([]Link, error) {
	records, err := s.query(ctx, `MATCH (l:Link) RETURN `+linkReturn+` ORDER BY l.seq ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	links := make([]Link, 0, len(records))
	for _, rec := range records {
		l, err := linkFromRecord(rec)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

func (s *Neo4j) CreateLink(ctx context.Context, l *Link) error {
	stampLink(l, s.now())
	params := linkParams(*l)
	params["created_at"] = formatTime(l.CreatedAt)
	params["updated_at"] = formatTime(l.UpdatedAt)
	_, err := s.query(ctx, nextSeq("Link")+`
		CREATE (l:Link {id: $id, url: $url, title: $title, description: $description,
			summary: $summary, thumbnail_url: $thumbnail_url,
			created_at: $created_at, updated_at: $updated_at, seq: seq})`, params)
	return s.wrapWriteErr(err)
}

func (s *Neo4j) GetLink(ctx context.Context, id string) (Link, error) {
	records, err := s.query(ctx, `MATCH (l:Link {id: $id}) RETURN `+linkReturn, map[string]any{"id": id})
	if err != nil {
		return Link{}, fmt.Errorf("querying link: %w", err)
	}
	if len(records) == 0 {
		return Link{}, ErrNotFound
	}
	return linkFromRecord(records[0])
}

func (s *Neo4j) UpdateLink(ctx context.Context, l Link) error {
	params := linkParams(l)
	params["updated_at"] = formatTime(s.now())
	records, err := s.query(ctx, `
		MATCH (l:Link {id: $id})
		SET l.url = $url, l.title = $title, l.description = $description, l.summary = $summary,
			l.thumbnail_url = $thumbnail_url, l.updated_at = $updated_at
		RETURN l.id AS id`, params)
	return foundOne(records, err)
}

func (s *Neo4j) DeleteLink(ctx context.Context, id string) error {
	return s.deleteNode(ctx, "Link", id)
}

// deleteNode removes the node and every relationship attached to it, which
// covers both tag assignments and connections.
func (s *Neo4j) deleteNode(ctx context.Context, label, id string) error {
	records, err := s.query(ctx, `
		MATCH (n:`+label+` {id: $id})
		WITH n, n.id AS id
		DETACH DELETE n
		RETURN id`, map[string]any{"id": id})
	return foundOne(records, err)
}

// --- Tags ---

func tagsFromRecords(records []*neo4j.Record) ([]Tag, error) {
	tags := make([]Tag, 0, len(records))
	for _, rec := range records {
		var t Tag
		var err error
		if t.ID, err = recordString(rec, "id"); err != nil {
			return nil, err
		}
		if t.Name, err = recordString(rec, "name"); err != nil {
			return nil, err
		}
		if t.Color, err = recordString(rec, "color"); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (s *Neo4j) GetTags(ctx context.Context) ([]Tag, error) {
	records, err := s.query(ctx, `
		MATCH (t:Tag) RETURN t.id AS id, t.name AS name, t.color AS color ORDER BY t.seq ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	return tagsFromRecords(records)
}

func (s *Neo4j) GetNoteTagsByNoteID(ctx context.Context, noteID string) ([]Tag, error) {
	return s.itemTags(ctx, "Note", noteID)
}

func (s *Neo4j) GetLinkTagsByLinkID(ctx context.Context, linkID string) ([]Tag, error) {
	return s.itemTags(ctx, "Link", linkID)
}

func (s *Neo4j) itemTags(ctx context.Context, label, id string) ([]Tag, error) {
	records, err := s.query(ctx, `
		MATCH (:`+label+` {id: $id})-[r:TAGGED]->(t:Tag)
		RETURN t.id AS id, t.name AS name, t.color AS color
		ORDER BY r.position ASC`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("querying item tags: %w", err)
	}
	return tagsFromRecords(records)
}

func (s *Neo4j) CreateTag(ctx context.Context, t *Tag) error {
	stampTag(t)
	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, `MATCH (t:Tag) WHERE t.name = $name OR t.id = $id RETURN count(t) AS n`,
			map[string]any{"name": t.Name, "id": t.ID})
		if err != nil {
			return err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return err
		}
		n, _, err := neo4j.GetRecordValue[int64](rec, "n")
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		_, err = tx.Run(ctx, nextSeq("Tag")+`
			CREATE (:Tag {id: $id, name: $name, color: $color, seq: seq})`,
			map[string]any{"id": t.ID, "name": t.Name, "color": t.Color})
		return err
	})
}

func (s *Neo4j) GetTagByName(ctx context.Context, name string) (Tag, error) {
	records, err := s.query(ctx, `
		MATCH (t:Tag {name: $name}) RETURN t.id AS id, t.name AS name, t.color AS color`,
		map[string]any{"name": name})
	if err != nil {
		return Tag{}, fmt.Errorf("querying tag: %w", err)
	}
	tags, err := tagsFromRecords(records)
	if err != nil {
		return Tag{}, err
	}
	if len(tags) == 0 {
		return Tag{}, ErrNotFound
	}
	return tags[0], nil
}

func (s *Neo4j) DeleteTag(ctx context.Context, id string) error {
	return s.deleteNode(ctx, "Tag", id)
}

func (s *Neo4j) SetNoteTags(ctx context.Context, noteID string, tagIDs []string) error {
	return s.setTags(ctx, "Note", noteID, tagIDs)
}

func (s *Neo4j) SetLinkTags(ctx context.Context, linkID string, tagIDs []string) error {
	return s.setTags(ctx, "Link", linkID, tagIDs)
}

func (s *Neo4j) setTags(ctx context.Context, label, itemID string, tagIDs []string) error {
	ids := dedupe(tagIDs)
	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, `
			OPTIONAL MATCH (i:`+label+` {id: $id})
			OPTIONAL MATCH (t:Tag) WHERE t.id IN $tags
			RETURN count(DISTINCT i) AS items, count(DISTINCT t) AS tags`,
			map[string]any{"id": itemID, "tags": ids})
		if err != nil {
			return err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return err
		}
		items, _, err := neo4j.GetRecordValue[int64](rec, "items")
		if err != nil {
			return err
		}
		found, _, err := neo4j.GetRecordValue[int64](rec, "tags")
		if err != nil {
			return err
		}
		if items == 0 || int(found) != len(ids) {
			return ErrNotFound
		}

		if _, err := tx.Run(ctx, `MATCH (:`+label+` {id: $id})-[r:TAGGED]->(:Tag) DELETE r`,
			map[string]any{"id": itemID}); err != nil {
			return err
		}
		for pos, tagID := range ids {
			if _, err := tx.Run(ctx, `
				MATCH (i:`+label+` {id: $id}), (t:Tag {id: $tag})
				CREATE (i)-[:TAGGED {position: $pos}]->(t)`,
				map[string]any{"id": itemID, "tag": tagID, "pos": pos}); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Connections ---

func nodeLabel(kind ItemKind) string {
	if kind == KindLink {
		return "Link"
	}
	return "Note"
}

func (s *Neo4j) CreateConnection(ctx context.Context, c *Connection) error {
	if err := stampConnection(c, s.now()); err != nil {
		return err
	}
	records, err := s.query(ctx, `
		MATCH (a:`+nodeLabel(c.SourceKind)+` {id: $source}), (b:`+nodeLabel(c.TargetKind)+` {id: $target})
		WITH a, b`+nextSeq("CONNECTED")+`, a, b
		CREATE (a)-[r:CONNECTED {id: $id, source_type: $source_type, target_type: $target_type,
			created_at: $created_at, seq: seq}]->(b)
		RETURN r.id AS id`,
		map[string]any{
			"id":          c.ID,
			"source":      c.SourceID,
			"target":      c.TargetID,
			"source_type": string(c.SourceKind),
			"target_type": string(c.TargetKind),
			"created_at":  formatTime(c.CreatedAt),
		})
	return foundOne(records, err)
}

func (s *Neo4j) GetConnections(ctx context.Context) ([]Connection, error) {
	records, err := s.query(ctx, `
		MATCH (a)-[r:CONNECTED]->(b)
		RETURN r.id AS id, a.id AS source_id, r.source_type AS source_type,
			b.id AS target_id, r.target_type AS target_type, r.created_at AS created_at
		ORDER BY r.seq ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}

	conns := make([]Connection, 0, len(records))
	for _, rec := range records {
		var c Connection
		var sourceKind, targetKind string
		for _, f := range []struct {
			key string
			dst *string
		}{
			{"id", &c.ID},
			{"source_id", &c.SourceID},
			{"source_type", &sourceKind},
			{"target_id", &c.TargetID},
			{"target_type", &targetKind},
		} {
			if *f.dst, err = recordString(rec, f.key); err != nil {
				return nil, err
			}
		}
		c.SourceKind, c.TargetKind = ItemKind(sourceKind), ItemKind(targetKind)
		if c.CreatedAt, err = recordTime(rec, "created_at"); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}

func (s *Neo4j) DeleteConnection(ctx context.Context, id string) error {
	records, err := s.query(ctx, `
		MATCH ()-[r:CONNECTED {id: $id}]->()
		WITH r, r.id AS id
		DELETE r
		RETURN id`, map[string]any{"id": id})
	return foundOne(records, err)
}

func foundOne(records []*neo4j.Record, err error) error {
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Neo4j) wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed" {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
