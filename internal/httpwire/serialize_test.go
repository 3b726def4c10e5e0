package httpwire_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omalloc/waystation/internal/httpwire"
)

func TestBuildForwardRequestInjectsHostAndConnectionClose(t *testing.T) {
	req, err := httpwire.Parse([]byte("GET http://example.test/x HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	out, err := httpwire.BuildForwardRequest(req, 4096)
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "GET /x HTTP/1.1\r\n"))
	assert.Contains(t, s, "Connection: close\r\n")
	assert.Contains(t, s, "Host: example.test\r\n")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\n"))
}

func TestBuildForwardRequestDoesNotDuplicateExistingHost(t *testing.T) {
	req, err := httpwire.Parse([]byte("GET http://example.test/x HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	require.NoError(t, err)

	out, err := httpwire.BuildForwardRequest(req, 4096)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(string(out), "Host:"))
}

func TestBuildForwardRequestOverflowsPastMaxBytes(t *testing.T) {
	req, err := httpwire.Parse([]byte("GET /x HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	require.NoError(t, err)

	_, err = httpwire.BuildForwardRequest(req, 8)
	assert.ErrorIs(t, err, httpwire.ErrOverflow)
}

func TestPortDefaultsTo80(t *testing.T) {
	req := &httpwire.ParsedRequest{Host: "example.test"}
	assert.Equal(t, 80, httpwire.Port(req))
}

func TestPortUsesExplicitValue(t *testing.T) {
	req := &httpwire.ParsedRequest{Host: "example.test", Port: "8080"}
	assert.Equal(t, 8080, httpwire.Port(req))
}

func TestPortFallsBackTo80OnGarbage(t *testing.T) {
	req := &httpwire.ParsedRequest{Host: "example.test", Port: "notanumber"}
	assert.Equal(t, 80, httpwire.Port(req))
}
