// Package server owns the listening socket and dispatches accepted
// connections to a handler.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/f4ah6o/simplehttp-go/internal/config"
	"github.com/f4ah6o/simplehttp-go/internal/tty"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// ErrBind matches every BindError with errors.Is.
var ErrBind = errors.New("bind failed")

// BindError reports a failure to bind or listen on an address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBind }

// ConnHandler serves a single accepted connection and closes it when done.
type ConnHandler interface {
	ServeConn(net.Conn)
}

// Server holds the listening socket for the lifetime of the process.
type Server struct {
	// ErrorLog receives accept errors. If nil, the standard logger is used.
	ErrorLog *log.Logger

	ln      net.Listener
	handler ConnHandler
}

// Listen binds a TCP socket to the configured host and port.
func Listen(ctx context.Context, cfg *config.Config, h ConnHandler) (*Server, error) {
	addr := cfg.Address()
	lc := net.ListenConfig{Control: control}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return &Server{ln: ln, handler: h}, nil
}

// Addr returns the address the socket is actually bound to.
func (s *Server) Addr() *net.TCPAddr {
	return s.ln.Addr().(*net.TCPAddr)
}

// Announce writes the startup line with the bound address to w.
func (s *Server) Announce(w io.Writer) error {
	addr := s.Addr()
	_, err := tty.Color(w, color.FgGreen).Fprintf(w, "Serving HTTP on %s port %d ...\n", addr.IP, addr.Port)
	return errors.Wrap(err, "announce")
}

// Serve accepts connections until the listener is closed and hands each one
// to the handler on its own goroutine. Accept failures are logged and retried.
func (s *Server) Serve() error {
	var delay time.Duration
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			s.logf("accept error: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0
		go s.handler.ServeConn(conn)
	}
}

// Close releases the listening socket. Serve returns net.ErrClosed afterwards.
func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) logf(format string, args ...any) {
	if s.ErrorLog != nil {
		s.ErrorLog.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
