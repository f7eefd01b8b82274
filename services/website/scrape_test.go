package website

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html><html><head><title> Tok Protocol </title>
<style>body{color:red}</style><script>var x = "hidden";</script></head>
<body><h1>Tok Protocol</h1><p>Cross-chain   lending.</p>
<a href="/docs">Docs</a><a href="https://x.com/tok">X</a><noscript>enable js</noscript></body></html>`

func TestExtract(t *testing.T) {
	p, err := Extract(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Tok Protocol", p.Title)
	assert.Equal(t, "Tok Protocol Cross-chain lending. Docs X", p.Text)
	assert.Equal(t, 2, p.LinkCount)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	s := NewScraper(5 * time.Second)
	p, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, p.URL)
	assert.Equal(t, 2, p.LinkCount)

	_, err = s.Fetch(context.Background(), srv.URL+"/gone")
	assert.ErrorContains(t, err, "status 404")
}
