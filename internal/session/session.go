package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voltbridge/voltbridge/internal/observability"
	"github.com/voltbridge/voltbridge/internal/ocpp"
	"github.com/voltbridge/voltbridge/internal/ocpp/call"
)

const (
	maxFrameBytes      = 128 * 1024
	defaultCallTimeout = 30 * time.Second
)

var errFrameTooLarge = errors.New("session: frame exceeds size limit")

// Handler answers inbound calls for one role. A nil error sends the reply as
// a CallResult; a *ocpp.CallError sends a CallError frame; ocpp.ErrNotSupported
// sends a NotImplemented CallError; any other error sends InternalError.
type Handler interface {
	HandleCall(ctx context.Context, sess *Session, action ocpp.Action, payload json.RawMessage) (any, error)
}

// Options configures one session.
type Options struct {
	Role        ocpp.Role
	Handler     Handler
	Logger      zerolog.Logger
	CallTimeout time.Duration
	// OnClose runs exactly once when the session tears down, after all
	// pending calls have been failed.
	OnClose func(*Session)
}

// Session is one end of a live connection.
type Session struct {
	conn    net.Conn
	reader  *bufio.Reader
	role    ocpp.Role
	handler Handler
	pending *call.Table
	log     zerolog.Logger

	wmu sync.Mutex // serializes every frame write

	callTimeout time.Duration

	idMu     sync.RWMutex
	identity string

	closeOnce sync.Once
	closed    chan struct{}
	onClose   func(*Session)
}

func New(conn net.Conn, opts Options) *Session {
	logger := opts.Logger.With().
		Str("role", string(opts.Role)).
		Str("remote", remoteAddr(conn)).
		Logger()
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Session{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		role:        opts.Role,
		handler:     opts.Handler,
		pending:     call.NewTable(logger),
		log:         logger,
		callTimeout: timeout,
		closed:      make(chan struct{}),
		onClose:     opts.OnClose,
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Identity returns the peer's self-reported identity, empty before the
// handshake has been accepted.
func (s *Session) Identity() string {
	s.idMu.RLock()
	defer s.idMu.RUnlock()
	return s.identity
}

// SetIdentity records the identity announced by the peer's handshake.
func (s *Session) SetIdentity(identity string) {
	s.idMu.Lock()
	s.identity = identity
	s.idMu.Unlock()
}

func (s *Session) RemoteAddr() string { return remoteAddr(s.conn) }

// Done is closed when the session has torn down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Serve runs the inbound listener loop until the connection closes or ctx is
// cancelled. Protocol-level problems (malformed frames, unmatched replies,
// unknown actions) are logged and survived; only transport failure ends the
// loop. Teardown failing pending calls and firing OnClose happens exactly
// once regardless of how the loop exits.
func (s *Session) Serve(ctx context.Context) error {
	defer s.teardown()
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	for {
		line, err := s.readFrame()
		if err != nil {
			if errors.Is(err, errFrameTooLarge) {
				s.log.Warn().Msg("oversized frame dropped")
				observability.RecordFrame(string(s.role), "in", "oversized")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				s.log.Info().Msg("connection closed by peer")
				return nil
			}
			return fmt.Errorf("session: read frame: %w", err)
		}
		s.handleFrame(ctx, bytes.TrimSpace(line))
	}
}

// readFrame reads one newline-terminated frame, enforcing maxFrameBytes while
// reading so a newline-free flood cannot grow the buffer without bound. An
// oversized line is drained off the wire in fixed-size chunks and reported as
// errFrameTooLarge; the connection stays usable.
func (s *Session) readFrame() ([]byte, error) {
	var frame []byte
	for {
		chunk, err := s.reader.ReadSlice('\n')
		if len(frame)+len(chunk) > maxFrameBytes {
			if derr := s.drainLine(err); derr != nil {
				return nil, derr
			}
			return nil, errFrameTooLarge
		}
		frame = append(frame, chunk...)
		if err == nil {
			return frame, nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return nil, err
	}
}

// drainLine consumes the rest of an oversized line without retaining it.
func (s *Session) drainLine(err error) error {
	for err == nil || errors.Is(err, bufio.ErrBufferFull) {
		if err == nil {
			return nil // delimiter already consumed
		}
		_, err = s.reader.ReadSlice('\n')
	}
	return err
}

func (s *Session) handleFrame(ctx context.Context, line []byte) {
	if len(line) == 0 {
		return
	}
	env, err := ocpp.Decode(line)
	if err != nil {
		s.log.Warn().Err(err).Msg("malformed frame dropped")
		observability.RecordFrame(string(s.role), "in", "malformed")
		return
	}
	observability.RecordFrame(string(s.role), "in", "ok")

	switch env.Type {
	case ocpp.MessageCall:
		s.handleCall(ctx, env)
	case ocpp.MessageCallResult:
		s.pending.Resolve(env.ID, env.Payload, false)
	case ocpp.MessageCallError:
		s.pending.Resolve(env.ID, env.Payload, true)
	}
}

func (s *Session) handleCall(ctx context.Context, env ocpp.Envelope) {
	reply, err := s.handler.HandleCall(ctx, s, env.Action, env.Payload)
	if err != nil {
		var callErr *ocpp.CallError
		switch {
		case errors.As(err, &callErr):
		case errors.Is(err, ocpp.ErrNotSupported):
			s.log.Warn().Str("action", string(env.Action)).Msg("unknown action")
			callErr = ocpp.NewCallError(ocpp.CodeNotImplemented, "action %s not supported", env.Action)
		default:
			s.log.Error().Str("action", string(env.Action)).Err(err).Msg("handler failed")
			callErr = ocpp.NewCallError(ocpp.CodeInternalError, "internal error")
		}
		frame, encErr := ocpp.EncodeError(env.ID, callErr)
		if encErr != nil {
			s.log.Error().Err(encErr).Msg("encode call error")
			return
		}
		if err := s.send(frame); err != nil {
			s.log.Warn().Err(err).Msg("send call error frame")
		}
		return
	}
	frame, err := ocpp.EncodeResult(env.ID, reply)
	if err != nil {
		s.log.Error().Str("action", string(env.Action)).Err(err).Msg("encode call result")
		return
	}
	if err := s.send(frame); err != nil {
		s.log.Warn().Err(err).Msg("send call result frame")
	}
}

// Call sends action with payload to the peer and suspends until the
// correlated reply arrives, ctx expires, or the session closes. When ctx
// carries no deadline the session's configured call timeout applies.
func (s *Session) Call(ctx context.Context, action ocpp.Action, payload any) (json.RawMessage, error) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
		deadline, _ = ctx.Deadline()
	}
	budget := time.Until(deadline)

	id := uuid.NewString()
	pending, err := s.pending.Register(id, action)
	if err != nil {
		return nil, err
	}
	frame, err := ocpp.EncodeCall(id, action, payload)
	if err != nil {
		s.pending.Cancel(id)
		return nil, err
	}
	if err := s.send(frame); err != nil {
		s.pending.Cancel(id)
		observability.RecordCall(string(s.role), string(action), observability.OutcomeFailed)
		return nil, fmt.Errorf("session: send call: %w", err)
	}

	out, err := pending.Wait(ctx)
	if err != nil {
		s.pending.Cancel(id)
		observability.RecordCall(string(s.role), string(action), observability.OutcomeFailed)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ocpp.ErrCallTimeout, action, budget.Round(time.Millisecond))
		}
		return nil, err
	}
	if out.Err != nil {
		observability.RecordCall(string(s.role), string(action), observability.OutcomeFailed)
		return nil, out.Err
	}
	if out.IsError {
		observability.RecordCall(string(s.role), string(action), observability.OutcomeError)
		callErr := &ocpp.CallError{}
		if err := json.Unmarshal(out.Payload, callErr); err != nil || callErr.Code == "" {
			callErr = ocpp.NewCallError(ocpp.CodeInternalError, "unparseable call error payload")
		}
		return nil, callErr
	}
	observability.RecordCall(string(s.role), string(action), observability.OutcomeResult)
	return out.Payload, nil
}

func (s *Session) send(frame []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.conn.Write(append(frame, '\n')); err != nil {
		return err
	}
	observability.RecordFrame(string(s.role), "out", "ok")
	return nil
}

// Close tears the session down: the socket closes, every pending call fails
// with ocpp.ErrConnectionClosed, and OnClose fires once.
func (s *Session) Close() error {
	err := s.conn.Close()
	s.teardown()
	return err
}

func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		s.pending.FailAll(ocpp.ErrConnectionClosed)
		close(s.closed)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
