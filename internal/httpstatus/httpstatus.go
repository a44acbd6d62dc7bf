// Package httpstatus serves a scheduler's scripts and job log directory
// over HTTP, so a running pipeline's progress and archived output can be
// inspected from another machine without shell access to the host.
package httpstatus

import (
	"context"
	"net"
	"net/http"

	"github.com/lpar/gzipped/v2"
	"golang.org/x/sync/errgroup"
)

// tcpKeepAliveListener is the same accept-time keepalive wrapper the
// standard library's own ListenAndServe uses internally.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	tc.SetKeepAlive(true)
	return tc, nil
}

// Server serves dir (typically a Scheduler's ScriptsDir or a JobLog
// Archiver's directory) as a read-only file tree, preferring precompressed
// .gz siblings when present.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server listening on addr and serving dir.
func New(addr, dir string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/", gzipped.FileServer(http.Dir(dir)))
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// ListenAndServe runs the server until ctx is canceled, at which point it
// gracefully shuts down and returns. It blocks until both the serving
// goroutine and the shutdown goroutine have returned, mirroring the
// errgroup serve/shutdown pairing used for the package store export
// server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	var eg errgroup.Group
	eg.Go(func() error {
		err := s.httpServer.Serve(tcpKeepAliveListener{ln.(*net.TCPListener)})
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		return s.httpServer.Shutdown(context.Background())
	})
	return eg.Wait()
}

// Addr returns the server's configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }
