// Package adapters extracts raw identifier fragments from third-party URLs.
//
// The registry is a static table of adapters. Each adapter names the hosts it
// serves and the extraction rules it supports. Extract dispatches on the host
// and tries the rules of the matching adapter in a fixed priority order:
//
//  1. Custom extractor
//  2. Query parameter
//  3. Identifier plus the rest of the path
//  4. Handle-only pattern
//  5. DID-only pattern
//
// The first non-empty result wins. A missing adapter, or an adapter that
// yields nothing, is reported as not found rather than as an error, and
// callers may fall back to the generic heuristic in Fallback.
package adapters

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// Fragment is a raw identifier fragment such as "alice.bsky.social/post/3k..."
// or "at://did:plc:.../app.bsky.feed.post/3k...". It is the input of the
// canonicalizer.
type Fragment string

// RestRule extracts the identifier and every path segment after it.
type RestRule struct {
	// After is the literal leading path segment the identifier follows.
	// Empty means the identifier is the entire path.
	After string
}

// Adapter is the static configuration of one service.
type Adapter struct {
	// Name is a short label used in logs
	Name string

	// Hosts are the hostnames the adapter serves, without a "www." prefix
	Hosts []string

	// Custom is tried first when set
	Custom func(u *url.URL) string

	// QueryParam names a query parameter holding the fragment
	QueryParam string

	// Rest extracts the identifier plus the rest of the path
	Rest *RestRule

	// HandlePath must have one capture group holding the handle
	HandlePath *regexp.Regexp

	// DIDPath must have one capture group holding the DID
	DIDPath *regexp.Regexp
}

// extract applies the rules in priority order
func (a *Adapter) extract(u *url.URL) string {
	if a.Custom != nil {
		if v := a.Custom(u); v != "" {
			return v
		}
	}
	if a.QueryParam != "" {
		if v := strings.TrimSpace(u.Query().Get(a.QueryParam)); v != "" {
			return v
		}
	}
	if a.Rest != nil {
		if v := restOfPath(u, a.Rest.After); v != "" {
			return v
		}
	}
	if a.HandlePath != nil {
		if v := firstGroup(a.HandlePath, u.EscapedPath()); v != "" {
			return v
		}
	}
	if a.DIDPath != nil {
		if v := firstGroup(a.DIDPath, u.EscapedPath()); v != "" {
			return v
		}
	}
	return ""
}

// Registry is an immutable table of adapters.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry from a table of adapters.
// The table is copied and never mutated afterwards.
func NewRegistry(table []Adapter) *Registry {
	return &Registry{adapters: slices.Clone(table)}
}

// NewDefaultRegistry creates a registry with the built-in services.
func NewDefaultRegistry() *Registry {
	return NewRegistry(builtin)
}

// Extract returns the fragment named by u, or false when no adapter serves
// the host or the matching adapter yields nothing.
func (r *Registry) Extract(u *url.URL) (Fragment, bool) {
	if u == nil {
		return "", false
	}
	a := r.lookup(u.Hostname())
	if a == nil {
		return "", false
	}
	v := a.extract(u)
	if v == "" {
		return "", false
	}
	return Fragment(v), true
}

// Adapter returns the name of the adapter serving host, if any.
func (r *Registry) Adapter(host string) (string, bool) {
	a := r.lookup(host)
	if a == nil {
		return "", false
	}
	return a.Name, true
}

// Hosts lists every host served by the registry, in table order.
func (r *Registry) Hosts() []string {
	var hosts []string
	for _, a := range r.adapters {
		hosts = append(hosts, a.Hosts...)
	}
	return hosts
}

// Serves reports whether any adapter serves host
func (r *Registry) Serves(host string) bool {
	return r.lookup(host) != nil
}

func (r *Registry) lookup(host string) *Adapter {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for i := range r.adapters {
		if slices.Contains(r.adapters[i].Hosts, host) {
			return &r.adapters[i]
		}
	}
	return nil
}

// Fallback is the generic heuristic for URLs no adapter handles. It scans
// the path for a segment starting with "did:", or a dot-separated segment
// right after a literal "profile" segment, and returns it together with the
// sub-path that follows.
func Fallback(u *url.URL) (Fragment, bool) {
	if u == nil {
		return "", false
	}
	segments := pathSegments(u)
	for i, seg := range segments {
		isDID := strings.HasPrefix(seg, "did:")
		isHandle := i > 0 && segments[i-1] == "profile" && strings.Contains(seg, ".")
		if isDID || isHandle {
			return Fragment(strings.Join(segments[i:], "/")), true
		}
	}
	return "", false
}

// restOfPath returns the path starting at the segment after the literal
// segment "after", or the whole path when after is empty.
func restOfPath(u *url.URL, after string) string {
	segments := pathSegments(u)
	if after == "" {
		return strings.Join(segments, "/")
	}
	for i, seg := range segments {
		if seg == after && i+1 < len(segments) {
			return strings.Join(segments[i+1:], "/")
		}
	}
	return ""
}

// pathSegments splits the decoded path, dropping empty segments except that
// a leading "at:" scheme is rejoined into "at://".
func pathSegments(u *url.URL) []string {
	var out []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		out = append(out, seg)
	}
	if len(out) > 0 && out[0] == "at:" {
		if len(out) == 1 {
			return nil
		}
		out = append([]string{"at://" + out[1]}, out[2:]...)
	}
	return out
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	v, err := url.PathUnescape(m[1])
	if err != nil {
		return m[1]
	}
	return v
}
