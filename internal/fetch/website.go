package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultTimeout is the per-page fetch deadline.
	DefaultTimeout = 10 * time.Second
	// UserAgent is sent on every request. Some sites refuse the Go default.
	UserAgent = "Mozilla/5.0 (compatible; curate/1.0)"
	// MaxBodySize caps how much of a page is read and parsed (bytes).
	MaxBodySize = 5 * 1024 * 1024
)

// Page is the readable content of a fetched website.
type Page struct {
	URL   string
	Title string
	Text  string
}

// Contents formats the page for the summarization prompt.
func (p Page) Contents() string {
	return fmt.Sprintf("Title:\n%s\n\nURL:\n%s\n\nContents:\n%s", p.Title, p.URL, p.Text)
}

// Client fetches websites and extracts their readable text.
type Client struct {
	http      *http.Client
	userAgent string
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: UserAgent,
	}
}

// Fetch retrieves rawurl and extracts its title and body text, with
// script/style and other non-content elements stripped. Network errors,
// non-200 responses and non-HTML content are returned as errors.
func (c *Client) Fetch(ctx context.Context, rawurl string) (Page, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return Page{}, fmt.Errorf("invalid url %q: %w", rawurl, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, fmt.Errorf("invalid url %q: expected an absolute http(s) url", rawurl)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch %s: %w", rawurl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("failed to fetch %s: HTTP %d", rawurl, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return Page{}, fmt.Errorf("unsupported content type %q for %s", contentType, rawurl)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse %s: %w", rawurl, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "No title found"
	}

	return Page{
		URL:   rawurl,
		Title: title,
		Text:  extractText(doc),
	}, nil
}

// extractText returns the body text with non-content elements removed and
// whitespace collapsed to one line per text run.
func extractText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		return ""
	}

	body.Find("script, style, noscript, img, input, meta, svg").Remove()

	var lines []string
	for _, line := range strings.Split(body.Text(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
