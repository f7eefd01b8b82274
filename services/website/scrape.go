package website

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxBody = 2 << 20

// Page is the visible content of a fetched website.
type Page struct {
	URL       string
	Title     string
	Text      string
	LinkCount int
}

type Scraper struct {
	http *http.Client
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{http: &http.Client{Timeout: timeout}}
}

func (s *Scraper) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; krom-analysis/1.0)")
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	p, err := Extract(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	p.URL = url
	return p, nil
}

var skipped = map[string]bool{"script": true, "style": true, "noscript": true, "svg": true, "template": true}

// Extract returns the page title, visible text and number of links.
func Extract(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	p := &Page{}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.Data] {
				return
			}
			switch n.Data {
			case "title":
				if n.FirstChild != nil && p.Title == "" {
					p.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "a":
				p.LinkCount++
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.Text = strings.Join(strings.Fields(sb.String()), " ")
	return p, nil
}
