// Package canonical turns raw identifier fragments into validated canonical
// records. It performs no I/O.
package canonical

import (
	"fmt"
	"strings"

	"github.com/atref/atref/internal/identity"
)

const (
	// Scheme is the AT Protocol URI scheme
	Scheme = "at://"

	profilePath = "/profile/"
)

// Record is a fully- or partially-resolved reference to an identity or one
// of its records. URI and DisplayPath are derived; use Derive after changing
// any other field.
type Record struct {
	Handle      string `json:"handle,omitempty"`
	DID         string `json:"did,omitempty"`
	Collection  string `json:"collection,omitempty"`
	RecordKey   string `json:"rkey,omitempty"`
	URI         string `json:"uri,omitempty"`
	DisplayPath string `json:"displayPath"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

// Resolved reports whether the record names an identity
func (r *Record) Resolved() bool {
	return r.Handle != "" || r.DID != ""
}

// Canonicalize parses a fragment such as "why.example/feed/cozy",
// "at://did:plc:.../app.bsky.feed.post/3k..." or "at:/alice.bsky.social".
func Canonicalize(fragment string) (Record, error) {
	rest := normalize(strings.TrimSpace(fragment))
	if rest == "" {
		return Record{}, &identity.ValidationError{Field: "fragment", Value: fragment, Reason: "missing identifier"}
	}

	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		return Record{}, &identity.ValidationError{Field: "fragment", Value: fragment, Reason: "missing identifier"}
	}

	var rec Record
	if identity.IsDID(id) {
		if err := identity.ValidateDID(id); err != nil {
			return Record{}, err
		}
		rec.DID = id
	} else {
		if err := identity.ValidateHandle(id); err != nil {
			return Record{}, err
		}
		rec.Handle = id
	}

	// Only the collection and the record key are meaningful
	if len(parts) > 1 && parts[1] != "" {
		rec.Collection = ExpandCollection(parts[1])
	}
	if len(parts) > 2 && rec.Collection != "" {
		rec.RecordKey = parts[2]
	}

	Derive(&rec)

	if err := Validate(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Validate applies the business rules that hold for every record.
func Validate(rec *Record) error {
	if !rec.Resolved() {
		return &identity.ValidationError{Reason: "missing identifier"}
	}
	if RequiresRecordKey(rec.Collection) && rec.RecordKey == "" {
		return &identity.ValidationError{
			Field:  "rkey",
			Value:  rec.RecordKey,
			Reason: fmt.Sprintf("%s requires a record key", rec.Collection),
		}
	}
	return nil
}

// Derive recomputes URI and DisplayPath from the other fields.
// The URI prefers the DID, the display path prefers the handle.
func Derive(rec *Record) {
	rec.URI = ""
	if id := firstNonEmpty(rec.DID, rec.Handle); id != "" {
		var b strings.Builder
		b.WriteString(Scheme)
		b.WriteString(id)
		if rec.Collection != "" {
			b.WriteString("/" + rec.Collection)
			if rec.RecordKey != "" {
				b.WriteString("/" + rec.RecordKey)
			}
		}
		rec.URI = b.String()
	}

	path := profilePath + firstNonEmpty(rec.Handle, rec.DID)
	if alias, ok := AliasFor(rec.Collection); ok && rec.RecordKey != "" {
		path += "/" + alias + "/" + rec.RecordKey
	}
	rec.DisplayPath = path
}

// normalize strips the scheme, accepting the collapsed single-slash form,
// and returns everything after it.
func normalize(s string) string {
	switch {
	case strings.HasPrefix(s, Scheme):
		return strings.TrimPrefix(s, Scheme)
	case strings.HasPrefix(s, "at:/"):
		return strings.TrimPrefix(s, "at:/")
	case strings.HasPrefix(s, "at:"):
		return strings.TrimPrefix(s, "at:")
	default:
		return strings.TrimPrefix(s, "/")
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
