package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/knowd/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSearchCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/search": `{"notes":[{"id":"n1","title":"Kyoto itinerary","tags":[{"id":"t1","name":"travel"}],"relevanceScore":1}],"links":[]}`,
	})

	limit := 5
	res, err := runSearch(ctx, ts.client(), searchRequest{Query: "kyoto", Tags: []string{"travel"}, Limit: &limit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Notes) != 1 || res.Notes[0].Title != "Kyoto itinerary" {
		t.Errorf("notes = %+v", res.Notes)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["query"] != "kyoto" || body["limit"] != float64(5) {
		t.Errorf("body = %v", body)
	}
}

func TestSearchCommand_OmitsUnsetLimit(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/search": `{"notes":[],"links":[]}`,
	})

	if _, err := runSearch(ctx, ts.client(), searchRequest{Query: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := ts.requests[0].Body; strings.Contains(body, "limit") || strings.Contains(body, "tags") {
		t.Errorf("body = %s, want only the query", body)
	}
}

func TestSearchCommand_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid query: limit: must not be negative","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	c := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	_, err := runSearch(ctx, c, searchRequest{Query: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "must not be negative") {
		t.Errorf("error = %q", err)
	}
}

func TestContextCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/context": `{"status":"success","data":{"notes":[],"links":[{"id":"l1","url":"https://example.com","title":"Example","relevanceScore":0.5}]}}`,
	})

	res, err := runContext(ctx, ts.client(), "example things")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 1 || res.Links[0].URL != "https://example.com" {
		t.Errorf("links = %+v", res.Links)
	}
}

func TestContextCommand_Failure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":"error","error":"loading tags: disk on fire"}`))
	}))
	defer ts.Close()

	c := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	_, err := runContext(ctx, c, "x")
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("error = %v, want the outcome message", err)
	}
}

func TestClient_NoTokenSendsNoAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /api/tags": `[]`})
	c := ts.client()
	c.token = ""

	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if ts.requests[0].Auth != "" {
		t.Errorf("auth = %q, want none", ts.requests[0].Auth)
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoteAdd_MissingTitle(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"note", "add", "--content", "x"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing title")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"travel", []string{"travel"}},
		{" travel , japan ,,", []string{"travel", "japan"}},
	}
	for _, tt := range tests {
		got := splitTags(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitTags(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrintResults(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var res searchResponse
	if err := json.Unmarshal([]byte(`{
		"notes":[{"id":"n1","title":"Kyoto itinerary","tags":[{"name":"travel"},{"name":"japan"}],"relevanceScore":0.5}],
		"links":[{"id":"l1","url":"https://example.com/jr","title":"JR Pass","relevanceScore":1}]
	}`), &res); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printResults(&buf, res)
	want := "note Kyoto itinerary [0.50]  #travel #japan\n" +
		"link JR Pass [1.00]\n  https://example.com/jr\n"
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	printResults(&buf, searchResponse{})
	if buf.String() != "No results found.\n" {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestImportFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.yaml")
	second := filepath.Join(dir, "b.yaml")
	os.WriteFile(first, []byte(`
notes:
  - id: kyoto
    title: Kyoto itinerary
    tags: [travel]
links:
  - id: jr
    url: https://example.com/jr
    tags: [travel, rail]
connections:
  - source: kyoto
    target: jr
`), 0o644)
	os.WriteFile(second, []byte(`
notes:
  - title: Packing list
    tags: [travel]
`), 0o644)

	store := storage.NewMemory()
	res, err := importFiles(ctx, store, []string{first, second})
	if err != nil {
		t.Fatalf("importFiles: %v", err)
	}
	if res.Notes != 2 || res.Links != 1 || res.Tags != 2 || res.Connections != 1 {
		t.Errorf("result = %+v", res)
	}

	notes, _ := store.GetNotes(ctx)
	if len(notes) != 2 {
		t.Errorf("got %d notes, want 2", len(notes))
	}

	if _, err := importFiles(ctx, store, []string{filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLogLevel(t *testing.T) {
	if logLevel("DEBUG").String() != "DEBUG" || logLevel("warn").String() != "WARN" || logLevel("").String() != "INFO" {
		t.Error("unexpected level mapping")
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
