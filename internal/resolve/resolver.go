// Package resolve maps Wikipedia article references to their canonical
// Wikidata entity URIs through the MediaWiki action API.
//
// One resolution issues at most one lookup call, paced through the
// shared dispatcher on the "lookup" channel. Transport failures are
// wrapped, never retried here.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/chaban-mb/wikilift/internal/pace"
)

// Channel is the dispatcher channel name lookup calls are paced on.
const Channel = "lookup"

// WikidataBase is the prefix of canonical entity URIs.
const WikidataBase = "https://www.wikidata.org/wiki/"

var entityPattern = regexp.MustCompile(`^Q[1-9][0-9]*$`)

// Resolution is the successful outcome of resolving one reference.
// Produced exactly once per request; never mutated after creation.
type Resolution struct {
	// Source is the reference as given.
	Source string

	// Site is the Wikipedia language site the reference points at
	// (empty when the source was already canonical).
	Site string

	// Title is the normalized article title (empty when the source
	// was already canonical).
	Title string

	// Entity is the Wikidata entity id ("Q…").
	Entity string

	// Target is the canonical entity URI derived from Entity.
	Target string
}

// Resolver resolves Wikipedia references to Wikidata entity URIs.
type Resolver struct {
	disp    *pace.Dispatcher
	http    *http.Client
	apiBase func(site string) string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the default tuned HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.http = c }
}

// WithAPIBase overrides the per-site action API endpoint.
// Used by tests to point at a local server.
func WithAPIBase(fn func(site string) string) Option {
	return func(r *Resolver) { r.apiBase = fn }
}

// New creates a Resolver that paces lookups through disp.
func New(disp *pace.Dispatcher, opts ...Option) *Resolver {
	r := &Resolver{
		disp: disp,
		http: newHTTPClient(),
		apiBase: func(site string) string {
			return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", site)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps source to its canonical Wikidata entity URI.
//
// A source already in canonical form short-circuits as a no-op success
// with the same entity, which makes re-running a conversion against an
// already-rewritten reference safe.
func (r *Resolver) Resolve(ctx context.Context, source string) (Resolution, error) {
	if entity, ok := parseCanonical(source); ok {
		slog.Debug("reference already canonical", "source", source, "entity", entity)
		return Resolution{
			Source: source,
			Entity: entity,
			Target: WikidataBase + entity,
		}, nil
	}

	site, title, err := parseArticle(source)
	if err != nil {
		return Resolution{}, err
	}

	raw, err := r.disp.Submit(ctx, Channel, func(ctx context.Context) (any, error) {
		return r.lookup(ctx, site, title)
	})
	if err != nil {
		// Coded errors from lookup pass through; anything else is a
		// transport-layer failure (dispatcher closed, context).
		if CodeOf(err) != "" {
			return Resolution{}, err
		}
		return Resolution{}, &Error{
			Code:    CodeTransport,
			Message: "lookup dispatch failed",
			Source:  source,
			Err:     err,
		}
	}
	page := raw.(*pageInfo)

	if page.Missing {
		return Resolution{}, &Error{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("no page %q on %s.wikipedia.org", title, site),
			Source:  source,
		}
	}
	if page.Entity == "" {
		return Resolution{}, &Error{
			Code:    CodeNoMapping,
			Message: fmt.Sprintf("page %q has no Wikidata item", title),
			Source:  source,
		}
	}
	if !entityPattern.MatchString(page.Entity) {
		return Resolution{}, &Error{
			Code:    CodeNoMapping,
			Message: fmt.Sprintf("malformed Wikidata item id %q", page.Entity),
			Source:  source,
		}
	}

	res := Resolution{
		Source: source,
		Site:   site,
		Title:  title,
		Entity: page.Entity,
		Target: WikidataBase + page.Entity,
	}
	slog.Info("reference resolved",
		"source", source,
		"site", site,
		"title", title,
		"entity", page.Entity,
	)
	return res, nil
}

// pageInfo is the distilled lookup result for one title.
type pageInfo struct {
	Missing bool
	Entity  string
}

// apiResponse mirrors the action API shape for
// prop=pageprops&ppprop=wikibase_item with formatversion=2.
type apiResponse struct {
	Query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			PageProps struct {
				WikibaseItem string `json:"wikibase_item"`
			} `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

// lookup issues the single pageprops query for (site, title).
// Every HTTP-layer failure is wrapped as CodeTransport.
func (r *Resolver) lookup(ctx context.Context, site, title string) (*pageInfo, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("prop", "pageprops")
	params.Set("ppprop", "wikibase_item")
	params.Set("redirects", "1")
	params.Set("titles", title)

	endpoint := r.apiBase(site) + "?" + params.Encode()

	transportErr := func(msg string, err error) error {
		return &Error{Code: CodeTransport, Message: msg, Source: title, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, transportErr("build lookup request", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, transportErr("lookup request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, transportErr(fmt.Sprintf("lookup returned status %d", resp.StatusCode), nil)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, transportErr("decode lookup response", err)
	}

	if len(body.Query.Pages) == 0 {
		return &pageInfo{Missing: true}, nil
	}
	page := body.Query.Pages[0]
	return &pageInfo{
		Missing: page.Missing,
		Entity:  page.PageProps.WikibaseItem,
	}, nil
}

// parseCanonical recognizes an already-canonical Wikidata entity URI
// and extracts its entity id.
func parseCanonical(source string) (string, bool) {
	u, err := url.Parse(source)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "www.wikidata.org" && host != "wikidata.org" {
		return "", false
	}
	var entity string
	switch {
	case strings.HasPrefix(u.Path, "/wiki/"):
		entity = strings.TrimPrefix(u.Path, "/wiki/")
	case strings.HasPrefix(u.Path, "/entity/"):
		entity = strings.TrimPrefix(u.Path, "/entity/")
	default:
		return "", false
	}
	if !entityPattern.MatchString(entity) {
		return "", false
	}
	return entity, true
}

// parseArticle splits a Wikipedia article URL into (site, title).
//
// Accepted shapes:
//
//	https://en.wikipedia.org/wiki/Some_Title
//	https://en.m.wikipedia.org/wiki/Some_Title
//	https://en.wikipedia.org/w/index.php?title=Some_Title
//
// Section fragments are dropped; underscores fold to spaces; the
// percent-encoding of the path is already undone by url.Parse.
func parseArticle(source string) (site, title string, err error) {
	invalid := func(msg string) error {
		return &Error{Code: CodeInvalidReference, Message: msg, Source: source}
	}

	u, parseErr := url.Parse(source)
	if parseErr != nil {
		return "", "", invalid("unparseable reference")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", invalid("reference is not an http(s) URL")
	}

	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, ".wikipedia.org") {
		return "", "", invalid("not a wikipedia.org host")
	}
	site = strings.TrimSuffix(host, ".wikipedia.org")
	site = strings.TrimSuffix(site, ".m") // mobile host variant
	if site == "" || site == "www" || strings.Contains(site, ".") {
		return "", "", invalid("no language site in host")
	}

	switch {
	case strings.HasPrefix(u.Path, "/wiki/"):
		title = strings.TrimPrefix(u.Path, "/wiki/")
	case u.Path == "/w/index.php":
		title = u.Query().Get("title")
	default:
		return "", "", invalid("no article title in reference")
	}

	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	if title == "" {
		return "", "", invalid("empty article title")
	}

	return site, title, nil
}
