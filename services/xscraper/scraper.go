// Package xscraper pulls recent tweets mentioning a contract address from a
// Nitter search page, fetched through ScraperAPI.
package xscraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var ErrNotConfigured = errors.New("x analysis is not configured: SCRAPERAPI_KEY missing")

const minTweetLength = 20

type Scraper struct {
	apiKey     string
	scraperURL string
	nitterURL  string
	maxTweets  int
	http       *http.Client
}

func New(apiKey, scraperURL, nitterURL string, maxTweets int, timeout time.Duration) *Scraper {
	return &Scraper{
		apiKey:     apiKey,
		scraperURL: scraperURL,
		nitterURL:  strings.TrimRight(nitterURL, "/"),
		maxTweets:  maxTweets,
		http:       &http.Client{Timeout: timeout},
	}
}

// SearchURL is the Nitter page listing tweets that mention q.
func (s *Scraper) SearchURL(q string) string {
	return fmt.Sprintf("%s/search?q=%s&f=tweets", s.nitterURL, url.QueryEscape(q))
}

// Tweets returns up to maxTweets tweet texts mentioning contract.
func (s *Scraper) Tweets(ctx context.Context, contract string) ([]string, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(s.scraperURL)
	if err != nil {
		return nil, fmt.Errorf("scraperapi url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", s.apiKey)
	q.Set("url", s.SearchURL(contract))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch X data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("failed to fetch X data: %d", resp.StatusCode)
	}
	return ExtractTweets(resp.Body, s.maxTweets)
}

// ExtractTweets collects the text of every div whose class starts with
// "tweet-content", skipping fragments of minTweetLength chars or fewer.
func ExtractTweets(r io.Reader, max int) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse nitter html: %w", err)
	}

	var tweets []string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if max > 0 && len(tweets) >= max {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClassPrefix(n, "tweet-content") {
			if text := normalizeSpace(textOf(n)); len(text) > minTweetLength {
				tweets = append(tweets, text)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)
	return tweets, nil
}

func hasClassPrefix(n *html.Node, prefix string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && strings.HasPrefix(a.Val, prefix) {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
