// Package identity provides the format rules for AT Protocol handles and DIDs
// and the error taxonomy shared by the resolution engine.
package identity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// DIDPrefix marks a fragment as a DID rather than a handle
	DIDPrefix = "did:"

	// DIDMethodPLC is the content-derived DID method
	DIDMethodPLC = "plc"

	// DIDMethodWeb is the domain-derived DID method
	DIDMethodWeb = "web"

	maxHandleLength = 253
	maxDIDLength    = 2048
	plcSuffixLength = 24
)

var (
	// Handle pattern: dot-separated DNS labels, at least two, TLD starts with a letter
	handlePattern = regexp.MustCompile(
		`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

	// did:plc suffix is base32-sortable lowercase
	plcPattern = regexp.MustCompile(`^[a-z2-7]{24}$`)

	// did:web path components
	webPathPattern = regexp.MustCompile(`^[a-zA-Z0-9._~-]+$`)
)

// DIDMethod identifies which DID variant a value uses.
type DIDMethod string

// DID is a parsed AT Protocol DID.
type DID struct {
	// Method is either DIDMethodPLC or DIDMethodWeb
	Method DIDMethod
	// Domain is the DNS name wrapped by a did:web, including an optional port
	Domain string
	// Path holds the colon-separated path components of a did:web
	Path []string
	raw  string
}

// String returns the DID in its original form
func (d DID) String() string {
	return d.raw
}

// IsDomainDerived reports whether the DID supports reverse document lookup
func (d DID) IsDomainDerived() bool {
	return d.Method == DIDMethodWeb
}

// ValidateHandle validates a handle.
//
// Format requirements:
//   - At least two dot-separated labels
//   - Labels are 1-63 characters of [a-zA-Z0-9-] and do not start or end with '-'
//   - The final label starts with a letter
//   - Total length at most 253 characters
//
// Examples of valid handles:
//   - why.example
//   - alice.bsky.social
//
// Examples of invalid handles:
//   - alice (single label)
//   - alice..bsky.social (empty label)
//   - alice.bsky.123 (numeric TLD)
func ValidateHandle(handle string) error {
	if handle == "" {
		return NewValidationError("handle", handle, "handle cannot be empty")
	}
	if len(handle) > maxHandleLength {
		return NewValidationError("handle", handle,
			fmt.Sprintf("handle exceeds maximum length of %d characters", maxHandleLength))
	}
	if !handlePattern.MatchString(handle) {
		return NewValidationError("handle", handle, "")
	}
	return nil
}

// IsValidHandle is a convenience wrapper around ValidateHandle for boolean checks.
func IsValidHandle(handle string) bool {
	return ValidateHandle(handle) == nil
}

// ParseDID parses and validates a did:plc or did:web identifier.
func ParseDID(raw string) (DID, error) {
	if !strings.HasPrefix(raw, DIDPrefix) {
		return DID{}, NewValidationError("did", raw, "missing did: prefix")
	}
	if len(raw) > maxDIDLength {
		return DID{}, NewValidationError("did", raw,
			fmt.Sprintf("did exceeds maximum length of %d characters", maxDIDLength))
	}

	method, rest, ok := strings.Cut(strings.TrimPrefix(raw, DIDPrefix), ":")
	if !ok || rest == "" {
		return DID{}, NewValidationError("did", raw, "missing method-specific identifier")
	}

	switch DIDMethod(method) {
	case DIDMethodPLC:
		if len(rest) != plcSuffixLength || !plcPattern.MatchString(rest) {
			return DID{}, NewValidationError("did", raw,
				fmt.Sprintf("did:plc identifier must be %d characters of [a-z2-7]", plcSuffixLength))
		}
		return DID{Method: DIDMethodPLC, raw: raw}, nil

	case DIDMethodWeb:
		parts := strings.Split(rest, ":")
		domain, err := url.PathUnescape(parts[0])
		if err != nil {
			return DID{}, NewValidationError("did", raw, "invalid percent-encoding in domain")
		}
		host, port, hasPort := strings.Cut(domain, ":")
		if !IsValidHandle(host) && host != "localhost" {
			return DID{}, NewValidationError("did", raw, "did:web must wrap a valid domain name")
		}
		if hasPort && !isPort(port) {
			return DID{}, NewValidationError("did", raw, "did:web port is invalid")
		}
		for _, p := range parts[1:] {
			if !webPathPattern.MatchString(p) {
				return DID{}, NewValidationError("did", raw, "did:web path component is invalid")
			}
		}
		return DID{Method: DIDMethodWeb, Domain: domain, Path: parts[1:], raw: raw}, nil

	default:
		return DID{}, NewValidationError("did", raw, fmt.Sprintf("unsupported DID method %q", method))
	}
}

// ValidateDID validates a DID without returning the parsed form.
func ValidateDID(raw string) error {
	_, err := ParseDID(raw)
	return err
}

// IsDID reports whether a fragment takes the DID branch
func IsDID(s string) bool {
	return strings.HasPrefix(s, DIDPrefix)
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
