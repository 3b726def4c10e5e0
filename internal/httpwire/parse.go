package httpwire

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformed is returned by Parse when the request line or headers cannot
// be made sense of. The worker turns this into a 400 response (spec.md §4.3).
var ErrMalformed = errors.New("httpwire: malformed request")

// Parse turns a raw request byte buffer into a ParsedRequest. It recognizes
// both origin-form requests ("GET /path HTTP/1.1" with a Host header) and
// absolute-form requests ("GET http://host:port/path HTTP/1.1"), matching
// what a real client sends to a forward proxy. It does not itself reject
// non-GET methods; that policy decision belongs to the worker (spec.md
// §4.3's PARSE state), since a syntactically valid non-GET request is not
// a parse failure.
func Parse(buf []byte) (*ParsedRequest, error) {
	text := string(buf)

	lineEnd := strings.Index(text, "\r\n")
	if lineEnd < 0 {
		return nil, ErrMalformed
	}
	requestLine := text[:lineEnd]
	rest := text[lineEnd+2:]

	fields := strings.Fields(requestLine)
	if len(fields) != 3 {
		return nil, ErrMalformed
	}

	req := &ParsedRequest{
		Method:  fields[0],
		Version: fields[2],
	}

	target := fields[1]
	if target == "" {
		return nil, ErrMalformed
	}

	if strings.HasPrefix(target, "http://") {
		if err := parseAbsoluteTarget(req, target); err != nil {
			return nil, err
		}
	} else {
		if !strings.HasPrefix(target, "/") {
			return nil, ErrMalformed
		}
		req.Path = target
	}

	if err := parseHeaders(req, rest); err != nil {
		return nil, err
	}

	if req.Host == "" {
		req.Host = req.Headers.Get("Host")
	}
	if req.Host == "" {
		return nil, ErrMalformed
	}

	if host, port, ok := strings.Cut(req.Host, ":"); ok {
		req.Host = host
		req.Port = port
	}

	return req, nil
}

func parseAbsoluteTarget(req *ParsedRequest, target string) error {
	rest := strings.TrimPrefix(target, "http://")
	slash := strings.IndexByte(rest, '/')

	var authority string
	if slash < 0 {
		authority = rest
		req.Path = "/"
	} else {
		authority = rest[:slash]
		req.Path = rest[slash:]
	}
	if authority == "" {
		return ErrMalformed
	}

	if host, port, ok := strings.Cut(authority, ":"); ok {
		req.Host = host
		req.Port = port
	} else {
		req.Host = authority
	}
	return nil
}

func parseHeaders(req *ParsedRequest, text string) error {
	if text == "" {
		return nil
	}

	for {
		i := strings.Index(text, "\r\n")
		if i < 0 {
			// tolerate a request with no trailing blank line, as long as
			// what remains is itself a well-formed header or empty.
			i = len(text)
		}
		line := text[:i]
		if i < len(text) {
			text = text[i+2:]
		} else {
			text = ""
		}

		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return ErrMalformed
		}
		req.Headers.Add(strings.TrimSpace(key), strings.TrimSpace(value))

		if text == "" {
			break
		}
	}
	return nil
}

// portOrDefault returns req.Port as an int, or 80 if unset, per spec.md
// §4.2 step 4.
func portOrDefault(port string) int {
	if port == "" {
		return 80
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 80
	}
	return n
}
