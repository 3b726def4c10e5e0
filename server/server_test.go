package server_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omalloc/waystation/internal/config"
	"github.com/omalloc/waystation/internal/xlog"
	"github.com/omalloc/waystation/server"
)

func fakeOrigin(t *testing.T, response []byte) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				_, _ = c.Read(buf)
				_, _ = c.Write(response)
			}(conn)
		}
	}()

	return ln
}

func startProxy(t *testing.T) (*server.Server, func()) {
	t.Helper()

	cfg := config.Default()
	cfg.Port = 0 // ephemeral
	cfg.DialTimeout = 2 * time.Second

	srv := server.New(cfg, xlog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, srv.Listen(ctx))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Run(ctx)
	}()

	cleanup := func() {
		cancel()
		wg.Wait()
	}
	return srv, cleanup
}

func doRequest(t *testing.T, proxyAddr net.Addr, request []byte) []byte {
	t.Helper()
	conn, err := net.Dial("tcp", proxyAddr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(request)
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return out
}

// TestProxyForwardsCacheMiss covers spec.md §8 scenario 1: a client
// request with an empty cache results in the proxy fetching the origin and
// returning exactly its bytes.
func TestProxyForwardsCacheMiss(t *testing.T) {
	response := []byte("HTTP/1.0 200 OK\r\nContent-Length: 5\r\n\r\nhello")
	origin := fakeOrigin(t, response)
	defer origin.Close()

	host, port, err := net.SplitHostPort(origin.Addr().String())
	require.NoError(t, err)

	proxy, cleanup := startProxy(t)
	defer cleanup()

	request := []byte("GET / HTTP/1.0\r\nHost: " + host + ":" + port + "\r\n\r\n")
	got := doRequest(t, proxy.Addr(), request)

	assert.Equal(t, response, got)
}

// TestProxySecondRequestIsCacheHit covers spec.md §8 scenario 1's second
// half: an identical subsequent request for the same URL is served from
// cache, which we confirm by shutting the origin down before the second
// request and still getting a full response back.
func TestProxySecondRequestIsCacheHit(t *testing.T) {
	response := []byte("HTTP/1.0 200 OK\r\nContent-Length: 5\r\n\r\nhello")
	origin := fakeOrigin(t, response)

	host, port, err := net.SplitHostPort(origin.Addr().String())
	require.NoError(t, err)

	proxy, cleanup := startProxy(t)
	defer cleanup()

	request := []byte("GET /a HTTP/1.0\r\nHost: " + host + ":" + port + "\r\n\r\n")

	first := doRequest(t, proxy.Addr(), request)
	require.Equal(t, response, first)

	origin.Close() // origin is now unreachable

	second := doRequest(t, proxy.Addr(), request)
	assert.Equal(t, response, second)
}

// TestProxyConcurrentClientsAllGetServed covers spec.md §8 scenario 6: many
// concurrent clients requesting the same already-cached URL all receive
// the exact cached bytes.
func TestProxyConcurrentClientsAllGetServed(t *testing.T) {
	response := []byte("HTTP/1.0 200 OK\r\nContent-Length: 6\r\n\r\nworld!")
	origin := fakeOrigin(t, response)
	defer origin.Close()

	host, port, err := net.SplitHostPort(origin.Addr().String())
	require.NoError(t, err)

	proxy, cleanup := startProxy(t)
	defer cleanup()

	request := []byte("GET /shared HTTP/1.0\r\nHost: " + host + ":" + port + "\r\n\r\n")

	// Warm the cache first.
	warm := doRequest(t, proxy.Addr(), request)
	require.Equal(t, response, warm)

	const clients = 20
	var wg sync.WaitGroup
	results := make([][]byte, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = doRequest(t, proxy.Addr(), request)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, response, got)
	}
}

func TestProxyBadRequestReturns400(t *testing.T) {
	proxy, cleanup := startProxy(t)
	defer cleanup()

	got := doRequest(t, proxy.Addr(), []byte("garbage\r\n\r\n"))
	assert.Contains(t, string(got), "400 Bad Request")
}
