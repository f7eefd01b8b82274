// Package repository holds the gorm queries behind every read and write the
// HTTP handlers and batch jobs perform.
package repository

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

const (
	hasContract    = "COALESCE(contract_address, '') <> ''"
	hasWebsite     = "COALESCE(website_url, '') NOT IN ('', 'N/A', 'None')"
	notInvalidated = "(is_invalidated = ? OR is_invalidated IS NULL)"
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

func NewPage(page, limit, defLimit, maxLimit int) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

func (p Page) apply(q *gorm.DB) *gorm.DB { return q.Offset(p.Offset()).Limit(p.Limit) }

// TotalPages rounds up.
func (p Page) TotalPages(total int64) int {
	if p.Limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(p.Limit)))
}

// Sort is a requested ordering; Column is checked against a whitelist.
type Sort struct {
	Column string
	Asc    bool
}

func (s Sort) clause(allowed []string, def string) string {
	col := def
	for _, a := range allowed {
		if a == s.Column {
			col = a
			break
		}
	}
	if s.Asc {
		return col + " ASC NULLS FIRST"
	}
	return col + " DESC NULLS LAST"
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(s))
	return fmt.Sprintf("%%%s%%", s)
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
