package net

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/l1jgo/bestiary/internal/config"
	"go.uber.org/zap"
)

// Server owns the HTTP listener. The listener is bound in NewServer so a bad
// address fails at boot instead of inside the serve goroutine.
type Server struct {
	listener net.Listener
	http     *http.Server
	log      *zap.Logger
	doneCh   chan struct{}
}

func NewServer(cfg config.HTTPConfig, h http.Handler, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		http: &http.Server{
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			ErrorLog:     zap.NewStdLog(log.Named("http")),
		},
		log:    log,
		doneCh: make(chan struct{}),
	}
	return s, nil
}

// Serve runs in its own goroutine until Shutdown is called.
func (s *Server) Serve() {
	defer close(s.doneCh)
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("http server stopped", zap.Error(err))
	}
}

// Shutdown stops accepting new requests and waits for in-flight ones until
// ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	select {
	case <-s.doneCh:
	case <-ctx.Done():
	}
	return err
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
