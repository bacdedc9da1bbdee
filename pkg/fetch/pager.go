// Package fetch provides a cursor-following page fetcher for third-party
// APIs. Every page request passes through a RateLimitGate, so paginating a
// large collection spreads its calls across the credential pool without ever
// exceeding a credential's window.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/orbit/pkg/errors"
	"github.com/ajitpratap0/orbit/pkg/gate"
)

// Page is the response envelope shape most cursor-paginated APIs share:
// a data array plus a paging block carrying the next-page pointer.
type Page struct {
	Data   []gojson.RawMessage `json:"data"`
	Paging *PagingInfo         `json:"paging,omitempty"`
}

// PagingInfo carries the next-page pointer
type PagingInfo struct {
	Next    string      `json:"next,omitempty"`
	Cursors *CursorInfo `json:"cursors,omitempty"`
}

// CursorInfo represents cursor-based pagination
type CursorInfo struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Pager fetches a paginated resource page by page through a gate.
type Pager struct {
	gate   *gate.RateLimitGate
	base   *http.Client
	logger *zap.Logger

	// MaxPages bounds a single FetchAll walk; zero means unbounded
	MaxPages int
}

// NewPager creates a pager. The base client serves bypassed (unthrottled)
// resources; throttled ones use the acquired credential's client.
func NewPager(g *gate.RateLimitGate, base *http.Client, logger *zap.Logger) *Pager {
	if base == nil {
		base = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{
		gate:   g,
		base:   base,
		logger: logger.With(zap.String("component", "pager")),
	}
}

// FetchAll walks the resource from startURL, following the next-page pointer
// until it is empty, and returns the concatenated data arrays.
func (p *Pager) FetchAll(ctx context.Context, startURL string) ([]gojson.RawMessage, error) {
	var out []gojson.RawMessage

	next := startURL
	pages := 0

	for next != "" {
		page, err := p.fetchPage(ctx, next)
		if err != nil {
			return out, err
		}

		out = append(out, page.Data...)
		pages++

		next = ""
		if page.Paging != nil {
			next = page.Paging.Next
		}

		if p.MaxPages > 0 && pages >= p.MaxPages {
			p.logger.Warn("page limit reached, stopping pagination",
				zap.Int("pages", pages),
				zap.String("next", next))
			break
		}
	}

	p.logger.Debug("pagination complete",
		zap.Int("pages", pages),
		zap.Int("records", len(out)))

	return out, nil
}

// fetchPage performs one guarded GET and decodes the page envelope.
func (p *Pager) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	resource, err := resourcePath(pageURL)
	if err != nil {
		return nil, err
	}

	var page Page
	err = p.gate.With(ctx, resource, func(lease *gate.Lease) error {
		client := lease.Client()
		if client == nil {
			client = p.base
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.New(errors.ErrorTypeConnection,
				fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, resource))
		}

		if err := gojson.NewDecoder(resp.Body).Decode(&page); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to decode page")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &page, nil
}

// resourcePath extracts the path component used as the gate's resource
// identifier.
func resourcePath(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation,
			fmt.Sprintf("invalid page URL %q", pageURL))
	}
	return u.Path, nil
}
