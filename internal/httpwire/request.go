// Package httpwire is the proxy's external collaborator for turning a raw
// request byte buffer into a structured request and back, in the spirit of
// the proxy_parse library the original C proxy built on (see
// _examples/original_source/proxyserver.c: ParsedRequest_parse,
// ParsedHeader_set/get, ParsedRequest_unparse_headers). The core consumes
// this package's interface; nothing outside httpwire depends on its
// internals.
package httpwire

import "strings"

// Header is an insertion-ordered header list. HTTP/1.x header order is
// significant to some origins and is worth preserving on re-serialization,
// which a map[string][]string (net/http.Header's representation) would
// lose; the original proxy_parse headers were themselves an ordered list.
type Header struct {
	keys []string
	vals []string
}

// Get returns the first value for key (case-insensitive), or "" if absent.
func (h *Header) Get(key string) string {
	if h == nil {
		return ""
	}
	key = strings.ToLower(key)
	for i, k := range h.keys {
		if strings.ToLower(k) == key {
			return h.vals[i]
		}
	}
	return ""
}

// Set replaces the first occurrence of key, or appends it if absent.
func (h *Header) Set(key, value string) {
	lower := strings.ToLower(key)
	for i, k := range h.keys {
		if strings.ToLower(k) == lower {
			h.vals[i] = value
			return
		}
	}
	h.keys = append(h.keys, key)
	h.vals = append(h.vals, value)
}

// Add appends a header even if key already exists, preserving both.
func (h *Header) Add(key, value string) {
	h.keys = append(h.keys, key)
	h.vals = append(h.vals, value)
}

// Len reports how many header lines are stored.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.keys)
}

// Each calls fn for every header in insertion order.
func (h *Header) Each(fn func(key, value string)) {
	if h == nil {
		return
	}
	for i := range h.keys {
		fn(h.keys[i], h.vals[i])
	}
}

// ParsedRequest is the structured form of one client request: method, path,
// version, target host/port, and headers. Its lifetime is bounded by the
// worker that created it (spec.md §3).
type ParsedRequest struct {
	Method  string
	Path    string
	Version string
	Host    string
	Port    string // empty means "use the default for the scheme" (80 for HTTP)
	Headers Header
}

// CanonicalURL is the cache lookup key: host concatenated with path,
// ignoring port, scheme, query-string casing, and header variation. This
// coarseness is preserved from spec.md §4.2 / §9 as a known limitation.
func (r *ParsedRequest) CanonicalURL() string {
	return r.Host + r.Path
}
