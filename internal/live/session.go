package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/glizzus/livesfx/internal/event"
	"github.com/glizzus/livesfx/internal/proto"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle stage of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateBootstrapping
	StateConnected
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateBootstrapping:
		return "bootstrapping"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// minEventTextLength skips bodies too short to be an event payload.
const minEventTextLength = 100

const (
	defaultHeartbeatInterval = 20 * time.Second
	defaultRetryPause        = time.Second
	defaultBackoff           = time.Second
	defaultMaxBackoff        = 30 * time.Second
	defaultEndTimeout        = 10 * time.Second
)

// Dispatcher handles the body of an event frame.
type Dispatcher interface {
	Dispatch(body []byte) (event.Result, error)
}

// Recorder observes session activity.
type Recorder interface {
	FrameReceived(operation string)
	DecodeFailed()
	Reconnected()
	HeartbeatFailed(kind string)
}

type nopRecorder struct{}

func (nopRecorder) FrameReceived(string)   {}
func (nopRecorder) DecodeFailed()          {}
func (nopRecorder) Reconnected()           {}
func (nopRecorder) HeartbeatFailed(string) {}

// ReconnectPolicy controls how a lost connection is replaced. The wait
// before each attempt starts at Backoff and doubles up to MaxBackoff.
// MaxAttempts of zero retries until the context ends.
type ReconnectPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

type SessionConfig struct {
	IDCode            string
	HeartbeatInterval time.Duration
	RetryPause        time.Duration
	Reconnect         ReconnectPolicy
	// EndTimeout bounds the end call made for a game that is left behind.
	EndTimeout time.Duration
}

// Session owns one live connection at a time and the game it belongs to.
type Session struct {
	api      API
	dialer   Dialer
	handler  Dispatcher
	recorder Recorder
	cfg      SessionConfig

	state atomic.Int32

	mu     sync.Mutex
	gameID string
}

func NewSession(api API, dialer Dialer, handler Dispatcher, cfg SessionConfig, recorder Recorder) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = defaultRetryPause
	}
	if cfg.Reconnect.Backoff <= 0 {
		cfg.Reconnect.Backoff = defaultBackoff
	}
	if cfg.Reconnect.MaxBackoff <= 0 {
		cfg.Reconnect.MaxBackoff = defaultMaxBackoff
	}
	if cfg.EndTimeout <= 0 {
		cfg.EndTimeout = defaultEndTimeout
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Session{
		api:      api,
		dialer:   dialer,
		handler:  handler,
		recorder: recorder,
		cfg:      cfg,
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	old := State(s.state.Swap(int32(state)))
	if old != state {
		slog.Debug("Session state changed", "from", old, "to", state)
	}
}

// GameID returns the identifier of the current game, if any.
func (s *Session) GameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

func (s *Session) swapGameID(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.gameID
	s.gameID = id
	return old
}

// Run connects and serves until ctx is done, replacing the connection when
// it is lost. A failed first connection or a refused authentication ends
// Run with an error. The game is ended before Run returns.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateBootstrapping)) {
		return errors.New("session has already been run")
	}
	defer s.close()

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}

	for {
		err := s.serve(ctx, conn)
		if closeErr := conn.Close(); closeErr != nil {
			slog.Debug("Failed to close live connection", "error", closeErr)
		}
		if ctx.Err() != nil {
			return nil
		}

		slog.Warn("Live connection lost", "game_id", s.GameID(), "error", err)
		conn, err = s.reconnect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Session) connect(ctx context.Context) (Conn, error) {
	s.setState(StateBootstrapping)

	info, err := s.api.Start(ctx, s.cfg.IDCode)
	if err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	s.swapGameID(info.GameID)

	endpoint, err := info.Endpoint()
	if err != nil {
		return nil, err
	}
	slog.Info("Started game", "game_id", info.GameID, "endpoint", endpoint)

	conn, err := s.dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	s.setState(StateConnected)

	if err := s.authenticate(ctx, conn, info.AuthBody); err != nil {
		conn.Close()
		return nil, err
	}
	s.setState(StateRunning)
	slog.Info("Live session running", "game_id", info.GameID)
	return conn, nil
}

func (s *Session) authenticate(ctx context.Context, conn Conn, authBody string) error {
	if err := conn.Write(ctx, proto.Encode(proto.OpAuth, 0, []byte(authBody))); err != nil {
		return &TransportError{Op: "send auth", Err: err}
	}

	msg, err := conn.Read(ctx)
	if err != nil {
		return &TransportError{Op: "receive auth reply", Err: err}
	}
	frame, err := proto.Decode(msg)
	if err != nil {
		return fmt.Errorf("failed to decode auth reply: %w", err)
	}

	code := gjson.GetBytes(frame.Body, "code")
	if !code.Exists() {
		return fmt.Errorf("auth reply has no status code: %q", frame.Body)
	}
	if code.Int() != 0 {
		return &AuthError{Code: code.Int()}
	}
	return nil
}

func (s *Session) reconnect(ctx context.Context) (Conn, error) {
	policy := s.cfg.Reconnect
	backoff := policy.Backoff

	for attempt := 1; policy.MaxAttempts == 0 || attempt <= policy.MaxAttempts; attempt++ {
		s.setState(StateDisconnected)
		s.endGame(ctx)

		slog.Info("Reconnecting live session", "attempt", attempt, "backoff", backoff)
		if !pause(ctx, backoff) {
			return nil, ctx.Err()
		}

		conn, err := s.connect(ctx)
		if err == nil {
			s.recorder.Reconnected()
			return conn, nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		slog.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)
		backoff = min(backoff*2, policy.MaxBackoff)
	}

	return nil, fmt.Errorf("gave up reconnecting after %d attempts", policy.MaxAttempts)
}

// serve runs the keepalive, the service heartbeat and the receive loop
// until the connection is lost or ctx is done.
func (s *Session) serve(ctx context.Context, conn Conn) error {
	gameID := s.GameID()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.keepalive(gctx, conn)
		return nil
	})
	g.Go(func() error {
		s.heartbeat(gctx, gameID)
		return nil
	})
	g.Go(func() error {
		return s.receive(gctx, conn)
	})
	return g.Wait()
}

func (s *Session) keepalive(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := conn.Write(ctx, proto.Encode(proto.OpHeartbeat, 0, nil)); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.recorder.HeartbeatFailed("connection")
			slog.Warn("Failed to send heartbeat frame", "error", err)
			continue
		}
		slog.Debug("Sent heartbeat frame")
	}
}

func (s *Session) heartbeat(ctx context.Context, gameID string) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.api.Heartbeat(ctx, gameID); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.recorder.HeartbeatFailed("service")
			slog.Warn("Failed to send game heartbeat", "game_id", gameID, "error", err)
			continue
		}
		slog.Debug("Sent game heartbeat", "game_id", gameID)
	}
}

func (s *Session) receive(ctx context.Context, conn Conn) error {
	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrConnClosed) {
				return &TransportError{Op: "receive", Err: err}
			}
			slog.Warn("Failed to receive message", "error", err)
			if !pause(ctx, s.cfg.RetryPause) {
				return nil
			}
			continue
		}

		frame, err := proto.Decode(msg)
		if err != nil {
			s.recorder.DecodeFailed()
			slog.Warn("Dropping malformed frame", "bytes", len(msg), "error", err)
			if !pause(ctx, s.cfg.RetryPause) {
				return nil
			}
			continue
		}
		s.handleFrame(frame)
	}
}

func (s *Session) handleFrame(frame *proto.Frame) {
	s.recorder.FrameReceived(frame.Operation.String())

	if frame.Version != 0 || len(frame.Body) == 0 {
		slog.Debug("Skipping frame", "operation", frame.Operation, "version", frame.Version)
		return
	}
	if !utf8.Valid(frame.Body) {
		slog.Warn("Dropping frame with a non UTF-8 body", "operation", frame.Operation)
		return
	}
	if utf8.RuneCount(frame.Body) <= minEventTextLength {
		return
	}

	if _, err := s.handler.Dispatch(frame.Body); err != nil {
		slog.Warn("Failed to dispatch event", "error", err)
	}
}

// endGame ends the current game, if any. Failures are logged.
func (s *Session) endGame(ctx context.Context) {
	gameID := s.swapGameID("")
	if gameID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EndTimeout)
	defer cancel()

	if err := s.api.End(ctx, gameID); err != nil {
		slog.Warn("Failed to end game", "game_id", gameID, "error", err)
		return
	}
	slog.Info("Ended game", "game_id", gameID)
}

func (s *Session) close() {
	s.setState(StateClosing)
	s.endGame(context.Background())
	s.setState(StateClosed)
}

// pause waits for d and reports whether ctx is still live.
func pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
