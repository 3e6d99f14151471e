package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBufferSize is the relay buffer size.
const DefaultBufferSize = 8192

// ErrNoTokenSource is returned by ListenAndServe when Tokens is nil.
var ErrNoTokenSource = errors.New("proxy has no token source")

// Proxy accepts CONNECT requests and tunnels them through the upstream
// proxy with a Negotiate Proxy-Authorization header.
type Proxy struct {
	UpstreamHost string
	UpstreamPort int
	Tokens       TokenSource
	BufferSize   int
	Logger       *slog.Logger

	// Dial opens the upstream connection. net.Dialer when nil.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func (p *Proxy) upstreamAddr() string {
	return net.JoinHostPort(p.UpstreamHost, strconv.Itoa(p.UpstreamPort))
}

func (p *Proxy) bufferSize() int {
	if p.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return p.BufferSize
}

func (p *Proxy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodConnect {
		http.Error(w, "only CONNECT is supported", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	target := r.Host
	logger := p.logger().With("target", target)
	logger.InfoContext(ctx, "connect request")

	if p.Tokens == nil {
		logger.ErrorContext(ctx, "token generation failed", "error", ErrNoTokenSource)
		http.Error(w, "Kerberos token generation failed", http.StatusInternalServerError)
		return
	}
	token, err := p.Tokens.Token(ctx, p.UpstreamHost)
	if err != nil {
		logger.ErrorContext(ctx, "token generation failed", "error", err)
		http.Error(w, "Kerberos token generation failed", http.StatusInternalServerError)
		return
	}

	upstream, upstreamBuf, err := p.openTunnel(ctx, target, token)
	if err != nil {
		logger.ErrorContext(ctx, "tunnel failed", "error", err)
		http.Error(w, fmt.Sprintf("Tunnel failed: %v", err), http.StatusBadGateway)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		upstream.Close()
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	client, clientBuf, err := hj.Hijack()
	if err != nil {
		upstream.Close()
		logger.ErrorContext(ctx, "hijack failed", "error", err)
		return
	}
	if _, err := io.WriteString(client, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		client.Close()
		upstream.Close()
		return
	}

	if err := relay(client, clientBuf.Reader, upstream, upstreamBuf, p.bufferSize()); err != nil {
		logger.DebugContext(ctx, "relay ended", "error", err)
	}
	logger.InfoContext(ctx, "tunnel closed")
}

// openTunnel dials the upstream proxy and performs the authenticated
// CONNECT handshake. The returned reader holds any bytes read past the
// handshake response.
func (p *Proxy) openTunnel(ctx context.Context, target, token string) (net.Conn, *bufio.Reader, error) {
	dial := p.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", p.upstreamAddr())
	if err != nil {
		return nil, nil, err
	}

	handshake := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\nProxy-Authorization: %s\r\nProxy-Connection: Keep-Alive\r\n\r\n",
		target, target, token)
	if _, err := io.WriteString(conn, handshake); err != nil {
		conn.Close()
		return nil, nil, err
	}

	br := bufio.NewReaderSize(conn, p.bufferSize())
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodConnect})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("reading upstream response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, nil, fmt.Errorf("upstream replied %s", resp.Status)
	}
	return conn, br, nil
}

// relay copies bytes both ways until either side closes, then closes both.
func relay(client net.Conn, fromClient io.Reader, upstream net.Conn, fromUpstream io.Reader, size int) error {
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			client.Close()
			upstream.Close()
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		defer closeBoth()
		_, err := io.CopyBuffer(upstream, fromClient, make([]byte, size))
		return ignoreClosed(err)
	})
	g.Go(func() error {
		defer closeBoth()
		_, err := io.CopyBuffer(client, fromUpstream, make([]byte, size))
		return ignoreClosed(err)
	})
	return g.Wait()
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// ListenAndServe serves the proxy on addr until ctx is cancelled.
func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	if p.Tokens == nil {
		return ErrNoTokenSource
	}
	srv := &http.Server{Addr: addr, Handler: p}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return srv.Close()
	}
}
