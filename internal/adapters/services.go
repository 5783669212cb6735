package adapters

import (
	"net/url"
	"regexp"
	"strings"
)

var builtin = []Adapter{
	{
		Name:  "bluesky",
		Hosts: []string{"bsky.app", "staging.bsky.app", "main.bsky.dev", "deer.social", "toolify.blue"},
		Rest:  &RestRule{After: "profile"},
	},
	{
		Name:       "clearsky",
		Hosts:      []string{"clearsky.app"},
		HandlePath: regexp.MustCompile(`^/([^/]+\.[^/]+)(?:/|$)`),
		DIDPath:    regexp.MustCompile(`^/(did:[^/]+)(?:/|$)`),
	},
	{
		Name:    "plc-directory",
		Hosts:   []string{"plc.directory", "web.plc.directory"},
		DIDPath: regexp.MustCompile(`^/(?:did/)?(did:plc:[a-z2-7]+)(?:/|$)`),
	},
	{
		Name:  "pdsls",
		Hosts: []string{"pdsls.dev", "atp.tools"},
		Rest:  &RestRule{},
	},
	{
		Name:   "skythread",
		Hosts:  []string{"blue.mackuba.eu"},
		Custom: skythread,
	},
	{
		Name:   "skyview",
		Hosts:  []string{"skyview.social"},
		Custom: nestedURL("url"),
	},
	{
		Name:       "jazco",
		Hosts:      []string{"bsky.jazco.dev"},
		QueryParam: "handle",
	},
	{
		Name:    "bsky-social-profile",
		Hosts:   []string{"bsky.social"},
		Rest:    &RestRule{After: "profile"},
		DIDPath: regexp.MustCompile(`/(did:(?:plc|web):[^/]+)`),
	},
}

// skythread links carry the author DID and post key as query parameters:
// https://blue.mackuba.eu/skythread/?author=did:plc:...&post=3k...
func skythread(u *url.URL) string {
	q := u.Query()
	author, post := q.Get("author"), q.Get("post")
	if author == "" {
		return ""
	}
	if post == "" {
		return author
	}
	return author + "/post/" + post
}

// nestedURL returns an extractor for a query parameter that wraps another
// bsky.app link; the nested link is reduced to its profile sub-path.
func nestedURL(param string) func(u *url.URL) string {
	return func(u *url.URL) string {
		raw := u.Query().Get(param)
		if raw == "" {
			return ""
		}
		if strings.HasPrefix(raw, "at:") {
			return raw
		}
		nested, err := url.Parse(raw)
		if err != nil || nested.Host == "" {
			return ""
		}
		return restOfPath(nested, "profile")
	}
}
