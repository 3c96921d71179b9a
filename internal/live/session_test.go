package live_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/glizzus/livesfx/internal/event"
	"github.com/glizzus/livesfx/internal/live"
	"github.com/glizzus/livesfx/internal/proto"
)

type fakeAPI struct {
	mu         sync.Mutex
	endpoint   string
	starts     int
	heartbeats int
	ended      []string
	startErr   func(n int) error
}

func (a *fakeAPI) Start(_ context.Context, code string) (*live.StartInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.starts++
	if a.startErr != nil {
		if err := a.startErr(a.starts); err != nil {
			return nil, err
		}
	}
	return &live.StartInfo{
		GameID:   fmt.Sprintf("game-%d", a.starts),
		Links:    []string{a.endpoint},
		AuthBody: `{"code":"` + code + `"}`,
	}, nil
}

func (a *fakeAPI) Heartbeat(context.Context, string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.heartbeats++
	return nil
}

func (a *fakeAPI) End(_ context.Context, gameID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ended = append(a.ended, gameID)
	return nil
}

func (a *fakeAPI) snapshot() (starts, heartbeats int, ended []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts, a.heartbeats, append([]string(nil), a.ended...)
}

type fakeDispatcher struct {
	bodies chan string
}

func (d *fakeDispatcher) Dispatch(body []byte) (event.Result, error) {
	d.bodies <- string(body)
	return event.Result{}, nil
}

type fakeRecorder struct {
	reconnects     atomic.Int32
	decodeFailures atomic.Int32
}

func (r *fakeRecorder) FrameReceived(string)   {}
func (r *fakeRecorder) DecodeFailed()          { r.decodeFailures.Add(1) }
func (r *fakeRecorder) Reconnected()           { r.reconnects.Add(1) }
func (r *fakeRecorder) HeartbeatFailed(string) {}

// startLiveServer runs handler for every websocket connection, passing the
// 1-based connection number.
func startLiveServer(t *testing.T, handler func(ctx context.Context, n int, conn *websocket.Conn)) string {
	t.Helper()
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		handler(r.Context(), int(count.Add(1)), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	return conn.Write(ctx, websocket.MessageBinary, msg)
}

// acceptAuth reads the auth frame and answers it with code.
func acceptAuth(t *testing.T, ctx context.Context, conn *websocket.Conn, code int) bool {
	t.Helper()
	_, msg, err := conn.Read(ctx)
	if err != nil {
		t.Errorf("read auth: %v", err)
		return false
	}
	frame, err := proto.Decode(msg)
	if err != nil {
		t.Errorf("decode auth: %v", err)
		return false
	}
	if frame.Operation != proto.OpAuth || !strings.Contains(string(frame.Body), "ID-CODE") {
		t.Errorf("unexpected auth frame op=%v body=%s", frame.Operation, frame.Body)
	}
	return write(ctx, conn, proto.Encode(proto.OpAuthReply, 0, []byte(fmt.Sprintf(`{"code":%d}`, code)))) == nil
}

// drain reads until the client goes away, reporting heartbeat frames.
func drain(ctx context.Context, conn *websocket.Conn, heartbeats chan<- struct{}) {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if frame, err := proto.Decode(msg); err == nil && frame.Operation == proto.OpHeartbeat {
			select {
			case heartbeats <- struct{}{}:
			default:
			}
		}
	}
}

func eventBody(cmd string) string {
	return fmt.Sprintf(`{"cmd":%q,"data":{"like_count":3},"pad":%q}`, cmd, strings.Repeat("x", 100))
}

func testConfig() live.SessionConfig {
	return live.SessionConfig{
		IDCode:            "ID-CODE",
		HeartbeatInterval: 10 * time.Millisecond,
		RetryPause:        time.Millisecond,
		Reconnect: live.ReconnectPolicy{
			Backoff:    time.Millisecond,
			MaxBackoff: 5 * time.Millisecond,
		},
	}
}

func runSession(ctx context.Context, s *live.Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("session did not stop")
		return nil
	}
}

func TestSessionDispatchesEventFrames(t *testing.T) {
	heartbeats := make(chan struct{}, 1)
	endpoint := startLiveServer(t, func(ctx context.Context, _ int, conn *websocket.Conn) {
		if !acceptAuth(t, ctx, conn, 0) {
			return
		}
		short := proto.Encode(proto.OpMessage, 0, []byte(`{"cmd":"LIVE_OPEN_PLATFORM_DM"}`))
		versioned := proto.Encode(proto.OpMessage, 0, []byte(eventBody("OPEN_LIVEROOM_GUARD")))
		versioned[7] = 1 // version field
		garbage := []byte{0, 0}
		for _, msg := range [][]byte{short, versioned, garbage, proto.Encode(proto.OpMessage, 0, []byte(eventBody("OPEN_LIVEROOM_LIKE")))} {
			if err := write(ctx, conn, msg); err != nil {
				return
			}
		}
		drain(ctx, conn, heartbeats)
	})

	api := &fakeAPI{endpoint: endpoint}
	dispatcher := &fakeDispatcher{bodies: make(chan string, 8)}
	recorder := &fakeRecorder{}
	session := live.NewSession(api, &live.WebsocketDialer{}, dispatcher, testConfig(), recorder)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := runSession(ctx, session)

	select {
	case body := <-dispatcher.bodies:
		if !strings.Contains(body, "OPEN_LIVEROOM_LIKE") {
			t.Errorf("expected the like event to be dispatched first, got %s", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event dispatched")
	}
	select {
	case <-heartbeats:
	case <-time.After(5 * time.Second):
		t.Fatal("no heartbeat frame sent")
	}

	if got := session.State(); got != live.StateRunning {
		t.Errorf("expected state running, got %v", got)
	}
	if got := session.GameID(); got != "game-1" {
		t.Errorf("expected game-1, got %q", got)
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	starts, _, ended := api.snapshot()
	if starts != 1 || len(ended) != 1 || ended[0] != "game-1" {
		t.Errorf("expected one started and ended game, got starts=%d ended=%v", starts, ended)
	}
	if got := recorder.decodeFailures.Load(); got != 1 {
		t.Errorf("expected 1 decode failure, got %d", got)
	}
	if got := session.State(); got != live.StateClosed {
		t.Errorf("expected state closed, got %v", got)
	}
	select {
	case body := <-dispatcher.bodies:
		t.Errorf("unexpected extra dispatch: %s", body)
	default:
	}
}

func TestSessionServiceHeartbeat(t *testing.T) {
	endpoint := startLiveServer(t, func(ctx context.Context, _ int, conn *websocket.Conn) {
		if acceptAuth(t, ctx, conn, 0) {
			drain(ctx, conn, nil)
		}
	})

	api := &fakeAPI{endpoint: endpoint}
	session := live.NewSession(api, &live.WebsocketDialer{}, &fakeDispatcher{}, testConfig(), nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := runSession(ctx, session)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, heartbeats, _ := api.snapshot(); heartbeats >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("service heartbeat not sent")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestSessionAuthRefused(t *testing.T) {
	endpoint := startLiveServer(t, func(ctx context.Context, _ int, conn *websocket.Conn) {
		if acceptAuth(t, ctx, conn, 1001) {
			drain(ctx, conn, nil)
		}
	})

	api := &fakeAPI{endpoint: endpoint}
	session := live.NewSession(api, &live.WebsocketDialer{}, &fakeDispatcher{}, testConfig(), nil)

	err := waitErr(t, runSession(t.Context(), session))

	var authErr *live.AuthError
	if !errors.As(err, &authErr) || authErr.Code != 1001 {
		t.Fatalf("expected AuthError with code 1001, got %v", err)
	}
	if _, _, ended := api.snapshot(); len(ended) != 1 {
		t.Errorf("expected the started game to be ended, got %v", ended)
	}
	if got := session.State(); got != live.StateClosed {
		t.Errorf("expected state closed, got %v", got)
	}
}

func TestSessionBootstrapFailure(t *testing.T) {
	api := &fakeAPI{startErr: func(int) error {
		return &live.APIError{Path: "/v2/app/start", Code: 7002, Message: "bad code"}
	}}
	session := live.NewSession(api, &live.WebsocketDialer{}, &fakeDispatcher{}, testConfig(), nil)

	err := waitErr(t, runSession(t.Context(), session))

	var apiErr *live.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if starts, _, ended := api.snapshot(); starts != 1 || len(ended) != 0 {
		t.Errorf("expected a single start and nothing to end, got starts=%d ended=%v", starts, ended)
	}
}

func TestSessionReconnectsAfterClose(t *testing.T) {
	endpoint := startLiveServer(t, func(ctx context.Context, n int, conn *websocket.Conn) {
		if !acceptAuth(t, ctx, conn, 0) {
			return
		}
		if n == 1 {
			conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		write(ctx, conn, proto.Encode(proto.OpMessage, 0, []byte(eventBody("OPEN_LIVEROOM_LIKE"))))
		drain(ctx, conn, nil)
	})

	api := &fakeAPI{endpoint: endpoint}
	dispatcher := &fakeDispatcher{bodies: make(chan string, 8)}
	recorder := &fakeRecorder{}
	session := live.NewSession(api, &live.WebsocketDialer{}, dispatcher, testConfig(), recorder)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := runSession(ctx, session)

	select {
	case <-dispatcher.bodies:
	case <-time.After(10 * time.Second):
		t.Fatal("no event dispatched after reconnecting")
	}
	if got := session.GameID(); got != "game-2" {
		t.Errorf("expected game-2 after reconnecting, got %q", got)
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	starts, _, ended := api.snapshot()
	if starts != 2 {
		t.Errorf("expected 2 starts, got %d", starts)
	}
	if len(ended) != 2 || ended[0] != "game-1" || ended[1] != "game-2" {
		t.Errorf("expected both games ended in order, got %v", ended)
	}
	if got := recorder.reconnects.Load(); got != 1 {
		t.Errorf("expected 1 reconnect, got %d", got)
	}
}

func TestSessionGivesUpReconnecting(t *testing.T) {
	endpoint := startLiveServer(t, func(ctx context.Context, _ int, conn *websocket.Conn) {
		if acceptAuth(t, ctx, conn, 0) {
			conn.Close(websocket.StatusGoingAway, "bye")
		}
	})

	api := &fakeAPI{endpoint: endpoint, startErr: func(n int) error {
		if n > 1 {
			return errors.New("service unavailable")
		}
		return nil
	}}
	cfg := testConfig()
	cfg.Reconnect.MaxAttempts = 2
	session := live.NewSession(api, &live.WebsocketDialer{}, &fakeDispatcher{}, cfg, nil)

	err := waitErr(t, runSession(t.Context(), session))
	if err == nil || !strings.Contains(err.Error(), "gave up reconnecting after 2 attempts") {
		t.Fatalf("expected the reconnect limit error, got %v", err)
	}
	if starts, _, _ := api.snapshot(); starts != 3 {
		t.Errorf("expected 1 start and 2 retries, got %d starts", starts)
	}
}

func TestSessionRunsOnce(t *testing.T) {
	api := &fakeAPI{startErr: func(int) error { return errors.New("down") }}
	session := live.NewSession(api, &live.WebsocketDialer{}, &fakeDispatcher{}, testConfig(), nil)

	waitErr(t, runSession(t.Context(), session))
	if err := session.Run(t.Context()); err == nil {
		t.Fatal("expected a second Run to fail")
	}
}
