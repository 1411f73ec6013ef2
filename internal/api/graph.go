package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kalambet/knowd/internal/storage"
)

// Node kinds in a Graph. Notes and links reuse the storage item kinds.
const (
	NodeNote = string(storage.KindNote)
	NodeLink = string(storage.KindLink)
	NodeTag  = "tag"
)

// Edge kinds in a Graph.
const (
	EdgeTagged     = "tagged"
	EdgeConnection = "connection"
)

// GraphNode is one note, link or tag. Label is the item title or tag name;
// Color is set only for tags.
type GraphNode struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// GraphEdge joins two node IDs. Tagged edges run from an item to its tag;
// connection edges run from source to target.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Graph is the node/edge view of the store used by the force-directed UI.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// BuildGraph returns every note, link and tag as a node, with an edge for
// each tag assignment and each connection. Nodes are ordered notes, links,
// then tags, each in storage order.
func BuildGraph(ctx context.Context, store storage.Store) (Graph, error) {
	g := Graph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}

	notes, err := store.GetNotes(ctx)
	if err != nil {
		return Graph{}, fmt.Errorf("loading notes: %w", err)
	}
	for _, n := range notes {
		g.Nodes = append(g.Nodes, GraphNode{ID: n.ID, Kind: NodeNote, Label: n.Title})
		tags, err := store.GetNoteTagsByNoteID(ctx, n.ID)
		if err != nil {
			return Graph{}, fmt.Errorf("loading tags for note %s: %w", n.ID, err)
		}
		for _, t := range tags {
			g.Edges = append(g.Edges, GraphEdge{Source: n.ID, Target: t.ID, Kind: EdgeTagged})
		}
	}

	links, err := store.GetLinks(ctx)
	if err != nil {
		return Graph{}, fmt.Errorf("loading links: %w", err)
	}
	for _, l := range links {
		g.Nodes = append(g.Nodes, GraphNode{ID: l.ID, Kind: NodeLink, Label: l.Title})
		tags, err := store.GetLinkTagsByLinkID(ctx, l.ID)
		if err != nil {
			return Graph{}, fmt.Errorf("loading tags for link %s: %w", l.ID, err)
		}
		for _, t := range tags {
			g.Edges = append(g.Edges, GraphEdge{Source: l.ID, Target: t.ID, Kind: EdgeTagged})
		}
	}

	tags, err := store.GetTags(ctx)
	if err != nil {
		return Graph{}, fmt.Errorf("loading tags: %w", err)
	}
	for _, t := range tags {
		g.Nodes = append(g.Nodes, GraphNode{ID: t.ID, Kind: NodeTag, Label: t.Name, Color: t.Color})
	}

	conns, err := store.GetConnections(ctx)
	if err != nil {
		return Graph{}, fmt.Errorf("loading connections: %w", err)
	}
	for _, c := range conns {
		g.Edges = append(g.Edges, GraphEdge{Source: c.SourceID, Target: c.TargetID, Kind: EdgeConnection})
	}
	return g, nil
}

func handleGraph(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := BuildGraph(r.Context(), deps.Store)
		if err != nil {
			storeError(w, err, "building graph")
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}
