// Package worker implements the per-client-connection state machine from
// spec.md §4.3: receive one request, parse it, consult the cache, and
// either replay a hit or fetch the origin while mirroring bytes to the
// client. Each Worker services exactly one request per connection, then
// closes — mirroring proxyserver.c's thread_fn, restructured as a bounded
// task instead of an unjoined, unreaped pthread per connection (spec.md §9).
package worker

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/omalloc/waystation/internal/cache"
	"github.com/omalloc/waystation/internal/httperr"
	"github.com/omalloc/waystation/internal/httpwire"
	"github.com/omalloc/waystation/internal/metrics"
	"github.com/omalloc/waystation/internal/upstream"
	"github.com/omalloc/waystation/internal/xlog"
)

// Worker holds the shared, read-only collaborators every per-connection
// invocation of Serve needs. A single Worker value is safe to reuse across
// goroutines: it holds no per-request mutable state itself.
type Worker struct {
	MaxBytes int
	Cache    *cache.Cache
	Fetcher  *upstream.Fetcher
	Log      xlog.Logger
	Metrics  *metrics.Metrics
}

// Serve drives one client connection through RECV_REQUEST -> PARSE ->
// LOOKUP -> (REPLAY | FETCH) -> DONE, emitting a canned error response on a
// parse failure, a non-GET method, or an upstream failure before any origin
// byte reached the client. A receive failure, a replay failure, or a
// mid-stream upstream failure sends nothing further. It always closes conn
// before returning; the
// caller is responsible for releasing the admission token that gated this
// call (spec.md §4.3's DONE state).
func (w *Worker) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reqID := metrics.NewRequestID()
	log := w.Log.With("request_id", reqID, "remote_addr", conn.RemoteAddr().String())

	buf := make([]byte, w.MaxBytes)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		// RECV_REQUEST: 0 or error -> DONE. Nothing was parsed, so there
		// is no status worth emitting.
		w.Metrics.RequestDone("recv_error")
		return
	}

	parsed, err := httpwire.Parse(buf[:n])
	if err != nil {
		log.Debugf("parse failed: %s", err)
		w.fail(conn, log, httperr.New(400).WithCause(err), "bad_request")
		return
	}

	if parsed.Method != "GET" {
		log.Debugf("unsupported method %s", parsed.Method)
		w.fail(conn, log, httperr.New(501), "not_implemented")
		return
	}

	url := parsed.CanonicalURL()
	log = log.With("url", url)

	if cached, ok := w.Cache.Lookup(url); ok {
		log.Infof("cache hit")
		if err := w.replay(conn, cached); err != nil {
			log.Warnf("replay failed: %s", err)
			w.Metrics.RequestDone("replay_error")
			return
		}
		w.Metrics.RequestDone("hit")
		return
	}

	log.Infof("cache miss, fetching from origin")
	w.fetch(ctx, conn, log, parsed, url)
}

func (w *Worker) replay(conn net.Conn, cached []byte) error {
	_, err := writeFull(conn, cached)
	return err
}

func (w *Worker) fetch(ctx context.Context, conn net.Conn, log xlog.Logger, parsed *httpwire.ParsedRequest, url string) {
	result, err := w.Fetcher.Fetch(ctx, parsed, conn)
	if err != nil {
		if !result.Started {
			// Failure before any byte reached the client: resolution or
			// connect failure, or the forwarded request itself didn't fit.
			// A 5xx surface is permitted by spec.md §7; a non-streaming
			// error never touches the cache.
			kind := classify(err)
			log.Warnf("upstream fetch failed before streaming (%s): %s", kind, err)
			w.Metrics.UpstreamError(kind)
			w.fail(conn, log, httperr.New(statusFor(err)).WithCause(err), "upstream_error")
			return
		}

		// Mid-stream failure: some bytes already reached the client, so we
		// cannot retroactively send a status line. Close and don't cache
		// (spec.md §4.2 step 7, §7).
		log.Warnf("upstream stream interrupted: %s", err)
		w.Metrics.UpstreamError("mid_stream")
		w.Metrics.RequestDone("upstream_mid_stream_error")
		return
	}

	w.Cache.Insert(url, result.Captured)
	w.Metrics.RequestDone("miss")
}

func (w *Worker) fail(conn net.Conn, log xlog.Logger, status *httperr.Status, outcome string) {
	body := httperr.Render(status.Code, time.Now())
	if body == nil {
		w.Metrics.RequestDone(outcome)
		return
	}
	if _, err := writeFull(conn, body); err != nil {
		log.Warnf("failed to send %d response: %s", status.Code, err)
	}
	w.Metrics.RequestDone(outcome)
}

func writeFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// classify turns an upstream error into a short metric/label-friendly kind.
func classify(err error) string {
	switch {
	case errors.Is(err, upstream.ErrResolve):
		return "resolve"
	case errors.Is(err, upstream.ErrConnect):
		return "connect"
	case errors.Is(err, httpwire.ErrOverflow):
		return "overflow"
	default:
		return "unknown"
	}
}

// statusFor maps a pre-stream upstream failure to a canned response code.
// spec.md §6 only defines canned bodies for 400/403/404/500/501, so every
// pre-stream upstream failure (resolution, connect, or an oversized
// forwarded request) surfaces as 500, the "implementation-chosen 5xx"
// spec.md §7 allows.
func statusFor(err error) int {
	return 500
}
