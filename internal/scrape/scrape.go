// Package scrape fetches a link's page and extracts the metadata used to
// fill in a link record: title, description, thumbnail and body text.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kalambet/knowd/internal/textutil"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 5 << 20

	// maxContentBytes bounds the extracted body text kept on a Page.
	maxContentBytes = 20000

	userAgent = "knowd/1.0 (+link metadata)"
)

// ErrUnsupportedURL is returned for URLs that are not absolute http(s) URLs.
var ErrUnsupportedURL = errors.New("unsupported url")

// ErrTooLarge is returned when a response body exceeds the size cap.
var ErrTooLarge = errors.New("response too large")

// Page is the metadata extracted from a fetched URL.
type Page struct {
	Title        string
	Description  string
	ThumbnailURL string
	Content      string
}

// Scraper fetches pages over HTTP. The zero value is not usable; call New.
type Scraper struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithHTTPClient sets the client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout bounds each fetch, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches rawURL and extracts its metadata. HTML pages are parsed for
// <title>, Open Graph and description meta tags plus body text. PDF
// responses are read for their document title and text.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return Page{}, fmt.Errorf("reading %s: %w", u, err)
	}
	if int64(len(body)) > s.maxBytes {
		return Page{}, fmt.Errorf("reading %s: %w (limit %d bytes)", u, ErrTooLarge, s.maxBytes)
	}

	// Redirects may have moved us; resolve relative URLs against the final one.
	base := u
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	if isPDF(resp.Header.Get("Content-Type"), base.Path) {
		page, err := parsePDF(body, base)
		if err != nil {
			return Page{}, err
		}
		s.logger.Debug("scraped pdf", "url", base.String(), "title", page.Title, "content_bytes", len(page.Content))
		return page, nil
	}

	page, err := parseHTML(body, base)
	if err != nil {
		return Page{}, err
	}
	s.logger.Debug("scraped page", "url", base.String(), "title", page.Title, "content_bytes", len(page.Content))
	return page, nil
}

func isPDF(contentType, urlPath string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/pdf" {
			return true
		}
		if mt != "application/octet-stream" && mt != "binary/octet-stream" {
			return false
		}
	}
	return strings.EqualFold(path.Ext(urlPath), ".pdf")
}

func parseHTML(body []byte, base *url.URL) (Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parsing html: %w", err)
	}

	var (
		page    Page
		title   string
		ogTitle string
		desc    string
		ogDesc  string
		ogImage string
		bodyEl  *html.Node
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" && n.FirstChild != nil {
					title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
			case atom.Meta:
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				content := strings.TrimSpace(attr(n, "content"))
				switch key {
				case "og:title":
					ogTitle = content
				case "og:description":
					ogDesc = content
				case "og:image":
					ogImage = content
				case "description":
					desc = content
				}
			case atom.Body:
				if bodyEl == nil {
					bodyEl = n
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page.Title = firstNonEmpty(ogTitle, title)
	page.Description = firstNonEmpty(ogDesc, desc)
	if ogImage != "" {
		if ref, err := url.Parse(ogImage); err == nil {
			page.ThumbnailURL = base.ResolveReference(ref).String()
		}
	}

	if bodyEl != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, bodyEl); err != nil {
			return Page{}, fmt.Errorf("rendering body: %w", err)
		}
		page.Content = truncate(textutil.PlainText(buf.String()), maxContentBytes)
	}
	return page, nil
}

func parsePDF(body []byte, base *url.URL) (Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return Page{}, fmt.Errorf("reading pdf: %w", err)
	}

	var page Page
	page.Title = strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())
	if page.Title == "" {
		page.Title = path.Base(base.Path)
	}

	text, err := r.GetPlainText()
	if err != nil {
		return Page{}, fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return Page{}, fmt.Errorf("extracting pdf text: %w", err)
	}
	page.Content = truncate(strings.Join(strings.Fields(buf.String()), " "), maxContentBytes)
	return page, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
