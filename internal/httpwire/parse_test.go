package httpwire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omalloc/waystation/internal/httpwire"
)

func TestParseOriginFormWithHostHeader(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.test\r\nUser-Agent: test\r\n\r\n"

	req, err := httpwire.Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "example.test", req.Host)
	assert.Equal(t, "", req.Port)
	assert.Equal(t, "test", req.Headers.Get("User-Agent"))
}

func TestParseAbsoluteFormWithPort(t *testing.T) {
	raw := "GET http://example.test:8080/a/b?x=1 HTTP/1.0\r\n\r\n"

	req, err := httpwire.Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "example.test", req.Host)
	assert.Equal(t, "8080", req.Port)
	assert.Equal(t, "/a/b?x=1", req.Path)
}

func TestParseAbsoluteFormWithoutPath(t *testing.T) {
	raw := "GET http://example.test HTTP/1.0\r\n\r\n"

	req, err := httpwire.Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "example.test", req.Host)
	assert.Equal(t, "/", req.Path)
}

func TestParseToleratesMissingTrailingBlankLine(t *testing.T) {
	raw := "GET /x HTTP/1.1\r\nHost: example.test"

	req, err := httpwire.Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "example.test", req.Host)
}

func TestParseRejectsMissingRequestLineTerminator(t *testing.T) {
	_, err := httpwire.Parse([]byte("GET /x HTTP/1.1"))
	assert.ErrorIs(t, err, httpwire.ErrMalformed)
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := httpwire.Parse([]byte("GET HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, httpwire.ErrMalformed)
}

func TestParseRejectsRelativeTargetMissingLeadingSlash(t *testing.T) {
	_, err := httpwire.Parse([]byte("GET index.html HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	assert.ErrorIs(t, err, httpwire.ErrMalformed)
}

func TestParseRejectsMissingHost(t *testing.T) {
	_, err := httpwire.Parse([]byte("GET /x HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, httpwire.ErrMalformed)
}

func TestParseRejectsMalformedHeaderLine(t *testing.T) {
	raw := "GET /x HTTP/1.1\r\nHost example.test\r\n\r\n"
	_, err := httpwire.Parse([]byte(raw))
	assert.ErrorIs(t, err, httpwire.ErrMalformed)
}

func TestParsePreservesHeaderOrder(t *testing.T) {
	raw := "GET /x HTTP/1.1\r\nHost: example.test\r\nA: 1\r\nB: 2\r\nC: 3\r\n\r\n"
	req, err := httpwire.Parse([]byte(raw))
	require.NoError(t, err)

	var seen []string
	req.Headers.Each(func(key, value string) {
		seen = append(seen, key)
	})
	assert.Equal(t, []string{"Host", "A", "B", "C"}, seen)
}

func TestParseDoesNotRejectNonGETMethods(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: example.test\r\n\r\n"
	req, err := httpwire.Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
}

func TestCanonicalURLIgnoresPort(t *testing.T) {
	req := &httpwire.ParsedRequest{Host: "example.test", Port: "8080", Path: "/a"}
	assert.Equal(t, "example.test/a", req.CanonicalURL())
}
