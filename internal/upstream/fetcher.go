// Package upstream speaks HTTP/1.x to the origin server on behalf of one
// client request: it builds the forwarded request, opens the TCP
// connection, and mirrors every byte it receives to the client while
// capturing a copy for the cache (spec.md §4.2). It is the Go-idiomatic
// replacement for proxyserver.c's handle_request, and borrows its dial
// timeout shape from the ancestor codebase's proxy/proxy.go net.Dialer
// configuration.
package upstream

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/omalloc/waystation/internal/httpwire"
)

// ErrResolve and ErrConnect classify a fetch failure that happened before
// any origin byte reached the client, so the worker can still emit a 5xx
// canned response (spec.md §7). Once streaming has started, failures are
// reported via Result.Started == true instead, since the client may
// already be mid-response.
var (
	ErrResolve = errors.New("upstream: host resolution failed")
	ErrConnect = errors.New("upstream: connect failed")
)

// Fetcher opens one origin connection per call and tears it down when done;
// persistent upstream connections are an explicit non-goal (spec.md §1).
type Fetcher struct {
	dialTimeout time.Duration
	maxBytes    int
	dialer      func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New creates a Fetcher bounded by dialTimeout per connection attempt and
// maxBytes per send/receive chunk (spec.md §3's MAX_BYTES).
func New(dialTimeout time.Duration, maxBytes int) *Fetcher {
	d := &net.Dialer{Timeout: dialTimeout}
	return &Fetcher{
		dialTimeout: dialTimeout,
		maxBytes:    maxBytes,
		dialer:      d.DialContext,
	}
}

// Result carries the captured response bytes (for cache insertion) and
// whether streaming to the client had begun when an error, if any,
// occurred.
type Result struct {
	Captured []byte
	Started  bool
}

// Fetch resolves req.Host to an IPv4 address, connects to req.Port (or 80),
// sends the forwarded request, and copies the response to client while
// capturing it. client receives exactly the origin's bytes, in origin
// order (spec.md §5).
func (f *Fetcher) Fetch(ctx context.Context, req *httpwire.ParsedRequest, client io.Writer) (Result, error) {
	forward, err := httpwire.BuildForwardRequest(req, f.maxBytes)
	if err != nil {
		return Result{}, err
	}

	ipAddr, err := net.DefaultResolver.ResolveIPAddr(ctx, "ip4", req.Host)
	if err != nil {
		return Result{}, errJoin(ErrResolve, err)
	}

	port := httpwire.Port(req)
	addr := net.JoinHostPort(ipAddr.String(), strconv.Itoa(port))

	conn, err := f.dialer(ctx, "tcp", addr)
	if err != nil {
		return Result{}, errJoin(ErrConnect, err)
	}
	defer conn.Close()

	if _, err := writeFull(conn, forward); err != nil {
		return Result{}, errJoin(ErrConnect, err)
	}

	return f.stream(conn, client)
}

// stream repeatedly receives into a MAX_BYTES buffer, forwarding each
// non-empty chunk to the client and appending it to the capture buffer,
// until the origin closes the connection or an error occurs (spec.md
// §4.2 step 7).
func (f *Fetcher) stream(origin io.Reader, client io.Writer) (Result, error) {
	buf := make([]byte, f.maxBytes)
	var captured []byte
	started := false

	for {
		n, rerr := origin.Read(buf)
		if n > 0 {
			if _, werr := client.Write(buf[:n]); werr != nil {
				return Result{Captured: captured, Started: true}, werr
			}
			started = true
			captured = append(captured, buf[:n]...)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return Result{Captured: captured, Started: started}, nil
			}
			return Result{Captured: captured, Started: started}, rerr
		}
	}
}

func writeFull(w io.Writer, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func errJoin(sentinel, cause error) error {
	return &wrapped{sentinel: sentinel, cause: cause}
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w *wrapped) Error() string { return w.sentinel.Error() + ": " + w.cause.Error() }
func (w *wrapped) Unwrap() []error { return []error{w.sentinel, w.cause} }
