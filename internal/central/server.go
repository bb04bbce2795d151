// Package central owns the controller role: the TCP listener accepting
// point connections, the peer registry, and the inbound call handlers.
package central

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/schema"
	"github.com/voltbridge/voltbridge/internal/session"
)

var ErrListenAddrRequired = errors.New("central: listen address required")

// ServerConfig configures the central listener.
type ServerConfig struct {
	ListenAddr        string
	HeartbeatInterval time.Duration
	CallTimeout       time.Duration
}

// Server accepts point connections and runs one session per connection.
type Server struct {
	cfg      ServerConfig
	registry *Registry
	handlers *Handlers
	log      zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	sessions map[*session.Session]struct{}
	wg       sync.WaitGroup
}

func NewServer(cfg ServerConfig, validator schema.Validator, log zerolog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, ErrListenAddrRequired
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 300 * time.Second
	}
	registry := NewRegistry()
	return &Server{
		cfg:      cfg,
		registry: registry,
		handlers: NewHandlers(registry, validator, cfg.HeartbeatInterval, log),
		log:      log,
		sessions: make(map[*session.Session]struct{}),
	}, nil
}

// Registry exposes the live peer registry to the admin facade.
func (s *Server) Registry() *Registry { return s.registry }

// Addr returns the bound listen address, empty before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and every live session. It does not return until every session goroutine
// has exited.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("central listening")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = err
			}
			break
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}

	s.closeSessions()
	s.wg.Wait()
	return acceptErr
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	sess := session.New(conn, session.Options{
		Role:        ocpp.RoleCentral,
		Handler:     s.handlers,
		Logger:      s.log,
		CallTimeout: s.cfg.CallTimeout,
		OnClose: func(closed *session.Session) {
			s.registry.RemoveSession(closed)
			s.forget(closed)
			if identity := closed.Identity(); identity != "" {
				s.log.Info().Str("identity", identity).Msg("point disconnected")
			}
		},
	})
	s.track(sess)
	if err := sess.Serve(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Str("remote", sess.RemoteAddr()).Msg("session ended")
	}
}

func (s *Server) track(sess *session.Session) {
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) forget(sess *session.Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	sessions := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		_ = sess.Close()
	}
}
