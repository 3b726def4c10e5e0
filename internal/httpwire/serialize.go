package httpwire

import (
	"errors"
	"strings"
)

// ErrOverflow is returned by BuildForwardRequest when the serialized
// request would exceed maxBytes (spec.md §4.2 step 3).
var ErrOverflow = errors.New("httpwire: forwarded request exceeds MAX_BYTES")

// BuildForwardRequest renders the request line and headers the upstream
// fetcher sends to the origin, per spec.md §4.2 steps 1-3:
//
//	GET <path> <version>\r\n
//	<headers, with Connection: close and Host: <host> ensured>\r\n
//	\r\n
//
// The result is bounded by maxBytes; exceeding it is ErrOverflow, which the
// worker turns into a 500 response.
func BuildForwardRequest(req *ParsedRequest, maxBytes int) ([]byte, error) {
	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(req.Path)
	b.WriteByte(' ')
	b.WriteString(req.Version)
	b.WriteString("\r\n")

	req.Headers.Set("Connection", "close")
	if req.Headers.Get("Host") == "" {
		req.Headers.Set("Host", req.Host)
	}

	req.Headers.Each(func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	})
	b.WriteString("\r\n")

	if b.Len() > maxBytes {
		return nil, ErrOverflow
	}
	return []byte(b.String()), nil
}

// Port returns req.Port as an int, defaulting to 80 (spec.md §4.2 step 4).
func Port(req *ParsedRequest) int {
	return portOrDefault(req.Port)
}
