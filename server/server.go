package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"charm.land/log/v2"

	"github.com/avila-org/avila-arrow/lifecycle"
)

// ErrNotInitialized is returned when the server is started before the
// library lifecycle gate has been opened.
var ErrNotInitialized = errors.New("library is not initialized")

// StatusResponse precedes every result frame. On failure no result
// frame follows.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Server is a TCP server speaking a framed request protocol: a JSON
// header frame followed by an Arrow IPC payload frame.
type Server struct {
	cfg      Config
	listener net.Listener
	handler  *Handler
	auth     *Authenticator
	logger   *log.Logger
	running  bool
	mu       sync.Mutex
	quit     chan struct{}
}

// NewServer creates a Server from the given config.
func NewServer(cfg Config, logger *log.Logger) (*Server, error) {
	handler, err := NewHandler(cfg.Workers, cfg.QueueSize, cfg.JobTimeout)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		handler: handler,
		auth: NewAuthenticator(AuthConfig{
			Enabled: cfg.AuthEnabled,
			Token:   cfg.AuthToken,
		}),
		logger: logger,
		quit:   make(chan struct{}),
	}, nil
}

// Handler returns the request handler, for stats reporting.
func (s *Server) Handler() *Handler {
	return s.handler
}

// Start starts the server on the configured address and blocks until
// it is stopped. The library must be initialized first.
func (s *Server) Start() error {
	if !lifecycle.Initialized() {
		return ErrNotInitialized
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = lis
	s.running = true
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", lis.Addr().String(), "auth", s.auth.IsEnabled())
	defer s.Stop()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				s.logger.Warn("accept failed", "error", err)
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// StartAsync starts the server in a background goroutine.
func (s *Server) StartAsync() error {
	if !lifecycle.Initialized() {
		return ErrNotInitialized
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = lis
	s.running = true
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", lis.Addr().String(), "auth", s.auth.IsEnabled())

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				select {
				case <-s.quit:
					return
				default:
					continue
				}
			}
			go s.handleConnection(conn)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the server and shuts down the handler pool.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.quit)
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("listener close failed", "error", err)
		}
	}
	s.handler.Close()
}

// handleConnection serves a single client connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	if s.auth.IsEnabled() {
		if err := s.authenticate(conn); err != nil {
			s.logger.Warn("authentication failed", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}
	}

	for {
		header, err := ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("read header failed", "error", err)
			}
			return
		}

		payload, err := ReadFrame(conn)
		if err != nil {
			s.logger.Debug("read payload failed", "error", err)
			return
		}

		result, err := s.handler.ProcessRequest(header, payload)
		if err != nil {
			s.logger.Warn("request failed", "error", err)
			if werr := s.writeStatus(conn, StatusResponse{Success: false, Error: err.Error()}); werr != nil {
				return
			}
			continue
		}

		if err := s.writeStatus(conn, StatusResponse{Success: true}); err != nil {
			return
		}
		if err := WriteFrame(conn, result); err != nil {
			s.logger.Debug("write result failed", "error", err)
			return
		}
	}
}

// authenticate performs the token handshake as the first frame exchange.
func (s *Server) authenticate(conn net.Conn) error {
	frame, err := ReadFrame(conn)
	if err != nil {
		return err
	}

	var msg AuthMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return fmt.Errorf("%w: malformed auth message", ErrAuthFailed)
	}
	if msg.Type != "auth" {
		s.writeAuthResponse(conn, AuthResponse{Success: false, Error: ErrAuthRequired.Error()})
		return ErrAuthRequired
	}

	if err := s.auth.ValidateToken(msg.Token); err != nil {
		s.writeAuthResponse(conn, AuthResponse{Success: false, Error: err.Error()})
		return err
	}

	s.writeAuthResponse(conn, AuthResponse{Success: true})
	return nil
}

func (s *Server) writeAuthResponse(conn net.Conn, resp AuthResponse) {
	_ = WriteJSONFrame(conn, resp)
}

func (s *Server) writeStatus(conn net.Conn, resp StatusResponse) error {
	return WriteJSONFrame(conn, resp)
}
