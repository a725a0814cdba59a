// Package crawler fetches pages breadth-first from a start URL and reduces
// them to plain text for the knowledge base.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxBodyBytes = 2 << 20

// Page is one crawled document
type Page struct {
	URL     string
	Title   string
	Content string
}

// Crawler walks links breadth-first, staying on the start URL's host
type Crawler struct {
	client   *http.Client
	maxDepth int
	maxPages int
}

// Option configures a Crawler
type Option func(*Crawler)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cr *Crawler) {
		cr.client = c
	}
}

// New creates a crawler. Pages at depth maxDepth or beyond are not fetched.
func New(maxDepth, maxPages int, opts ...Option) *Crawler {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxPages <= 0 {
		maxPages = 50
	}
	c := &Crawler{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxDepth: maxDepth,
		maxPages: maxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queued struct {
	url   string
	depth int
}

// Crawl fetches startURL and the pages it links to. Fetch failures are
// logged and skipped.
func (c *Crawler) Crawl(ctx context.Context, startURL string) ([]Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", start.Scheme)
	}

	seen := make(map[string]bool)
	queue := []queued{{url: canonical(start), depth: 0}}
	var pages []Page

	for len(queue) > 0 && len(pages) < c.maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		next := queue[0]
		queue = queue[1:]
		if next.depth >= c.maxDepth || seen[next.url] {
			continue
		}
		seen[next.url] = true

		doc, err := c.fetch(ctx, next.url)
		if err != nil {
			slog.Warn("failed to fetch page", "url", next.url, "error", err)
			continue
		}

		title, text := extractText(doc)
		pages = append(pages, Page{URL: next.url, Title: title, Content: text})

		base, _ := url.Parse(next.url)
		for _, link := range extractLinks(doc, base) {
			if link.Host == start.Host && !seen[canonical(link)] {
				queue = append(queue, queued{url: canonical(link), depth: next.depth + 1})
			}
		}
	}

	slog.Info("crawl finished", "start_url", startURL, "pages", len(pages))
	return pages, nil
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
}

func canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawQuery = ""
	return c.String()
}

func extractLinks(doc *html.Node, base *url.URL) []*url.URL {
	var links []*url.URL
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
				if u, err := base.Parse(href); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
					links = append(links, u)
				}
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return links
}

// extractText returns the page title and its visible text, one block per line
func extractText(doc *html.Node) (string, string) {
	var (
		title string
		b     strings.Builder
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "nav", "footer":
				return
			case "title":
				if n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "p", "div", "li", "br", "h1", "h2", "h3", "h4", "h5", "h6", "pre", "tr":
				b.WriteString("\n")
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return title, strings.Join(out, "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
