package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"ironbank/internal/domain"
)

// --- test doubles ---

type testBus struct {
	mu       sync.Mutex
	handlers []domain.EventHandler
}

func (b *testBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	hs := make([]domain.EventHandler, len(b.handlers))
	copy(hs, b.handlers)
	b.mu.Unlock()
	for _, h := range hs {
		h(ctx, event)
	}
}

func (b *testBus) Subscribe(_ domain.EventType, _ domain.EventHandler) func() { return func() {} }

func (b *testBus) SubscribeAll(handler domain.EventHandler) func() {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers = nil
	}
}

func (b *testBus) Close() {}

// typedBus dispatches synchronously to typed subscribers only.
type typedBus struct {
	testBus
	typed map[domain.EventType][]domain.EventHandler
}

func (b *typedBus) Subscribe(t domain.EventType, h domain.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.typed == nil {
		b.typed = make(map[domain.EventType][]domain.EventHandler)
	}
	b.typed[t] = append(b.typed[t], h)
	return func() {}
}

func (b *typedBus) emit(t domain.EventType) {
	b.mu.Lock()
	hs := append([]domain.EventHandler(nil), b.typed[t]...)
	b.mu.Unlock()
	for _, h := range hs {
		h(context.Background(), domain.Event{Type: t})
	}
}

func newTestAuth() Authenticator {
	return NewStaticTokenAuth([]TokenEntry{
		{Token: "test-token", Name: "tester", Roles: []string{"editor"}},
	})
}

func startTestServer(t *testing.T, bus domain.EventBus, opts Options) *Server {
	t.Helper()
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	srv := NewServer(bus, newTestAuth(), opts, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = srv.Start(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for srv.BoundAddr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Cleanup(func() {
		srv.Stop(context.Background())
	})

	return srv
}

func dialWS(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func roundtrip(t *testing.T, ws *websocket.Conn, req Frame) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, ws, req); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp Frame
	if err := wsjson.Read(ctx, ws, &resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

// --- tests ---

func TestServerLifecycle(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{})

	if srv.BoundAddr() == "" {
		t.Fatal("BoundAddr is empty")
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestServerAuthReject(t *testing.T) {
	var mu sync.Mutex
	var denied []string
	srv := startTestServer(t, &testBus{}, Options{
		OnDenied: func(_ context.Context, remote, reason string) {
			mu.Lock()
			defer mu.Unlock()
			denied = append(denied, reason)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws?token=bad-token", nil)
	if err == nil {
		t.Fatal("expected auth rejection")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(denied) != 1 || denied[0] != "invalid token" {
		t.Errorf("denied = %v", denied)
	}
}

func TestServerRPCRoundtrip(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{})
	srv.RegisterHandler("echo", func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	resp := roundtrip(t, ws, Frame{
		Type:    FrameTypeRequest,
		ID:      1,
		Method:  "echo",
		Payload: json.RawMessage(`{"msg":"hello"}`),
	})

	if resp.Type != FrameTypeResponse {
		t.Errorf("type = %q", resp.Type)
	}
	if resp.ID != 1 {
		t.Errorf("ID = %d", resp.ID)
	}
	if resp.Error != "" {
		t.Errorf("error = %q", resp.Error)
	}
	if string(resp.Payload) != `{"msg":"hello"}` {
		t.Errorf("payload = %s", resp.Payload)
	}
	if got := srv.Metrics().Calls()["echo"]; got != 1 {
		t.Errorf("echo calls = %d, want 1", got)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{})
	ws := dialWS(t, srv.BoundAddr(), "test-token")

	resp := roundtrip(t, ws, Frame{Type: FrameTypeRequest, ID: 2, Method: "nonexistent"})

	if resp.Error == "" {
		t.Error("expected error for unknown method")
	}
	if resp.Code != string(domain.CodeRPCMethodNotFound) {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestServerSchemaRejectsBeforeDispatch(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{})
	var called atomic.Bool
	srv.RegisterHandler(MethodRead, func(context.Context, *ClientInfo, json.RawMessage) (json.RawMessage, error) {
		called.Store(true)
		return nil, nil
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	resp := roundtrip(t, ws, Frame{
		Type:    FrameTypeRequest,
		ID:      3,
		Method:  MethodRead,
		Payload: json.RawMessage(`{"path":""}`),
	})

	if resp.Code != string(domain.CodeRPCInvalidPayload) {
		t.Errorf("code = %q, want %s", resp.Code, domain.CodeRPCInvalidPayload)
	}
	if called.Load() {
		t.Error("handler ran despite invalid payload")
	}
}

func TestServerLedgerErrorCode(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{})
	deps, _ := newHandlerDeps(t)
	RegisterDefaultHandlers(srv, deps)

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	resp := roundtrip(t, ws, Frame{
		Type:    FrameTypeRequest,
		ID:      4,
		Method:  MethodDelete,
		Payload: json.RawMessage(`{"path":"/docs/Ironbank/ledgers/missing.json"}`),
	})

	if resp.Code != string(domain.CodeNotFound) {
		t.Errorf("code = %q, want %s", resp.Code, domain.CodeNotFound)
	}
	if len(resp.Payload) != 0 {
		t.Errorf("error response carries payload %s", resp.Payload)
	}
}

func TestServerRateLimit(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{RequestsPerSecond: 0.001, Burst: 1})
	srv.RegisterHandler("ping", func(context.Context, *ClientInfo, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"pong"`), nil
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token")

	first := roundtrip(t, ws, Frame{Type: FrameTypeRequest, ID: 1, Method: "ping"})
	if first.Error != "" {
		t.Fatalf("first call: %s", first.Error)
	}
	second := roundtrip(t, ws, Frame{Type: FrameTypeRequest, ID: 2, Method: "ping"})
	if second.Code != string(domain.CodeRateLimit) {
		t.Errorf("second call code = %q, want %s", second.Code, domain.CodeRateLimit)
	}
}

func TestServerEventForwarding(t *testing.T) {
	bus := &testBus{}
	srv := startTestServer(t, bus, Options{})
	ws := dialWS(t, srv.BoundAddr(), "test-token")

	// Give the connection time to be registered.
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(domain.LedgerEventPayload{Path: "/l/a.json", Filename: "a.json"})
	bus.Publish(context.Background(), domain.Event{
		Type:      domain.EventLedgerSaved,
		Timestamp: time.Now(),
		Payload:   payload,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var frame Frame
	if err := wsjson.Read(ctx, ws, &frame); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if frame.Type != FrameTypeEvent {
		t.Errorf("type = %q, want event", frame.Type)
	}
	var ev domain.Event
	if err := json.Unmarshal(frame.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != domain.EventLedgerSaved {
		t.Errorf("event type = %q", ev.Type)
	}
}

func TestServerSlowClient(t *testing.T) {
	bus := &testBus{}
	srv := startTestServer(t, bus, Options{})

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	_ = ws // connected but not reading

	time.Sleep(100 * time.Millisecond)

	// Flooding must neither block nor panic.
	for i := 0; i < 200; i++ {
		bus.Publish(context.Background(), domain.Event{
			Type:      domain.EventLedgerSaved,
			Timestamp: time.Now(),
		})
	}
}

func TestServerConcurrentClients(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{})
	srv.RegisterHandler("ping", func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"pong"`), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			ws, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws?token=test-token", nil)
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer ws.Close(websocket.StatusNormalClosure, "")

			req := Frame{Type: FrameTypeRequest, ID: uint64(id), Method: "ping"}
			if err := wsjson.Write(ctx, ws, req); err != nil {
				return
			}
			var resp Frame
			wsjson.Read(ctx, ws, &resp)
		}(i)
	}
	wg.Wait()
}

func TestServerDisconnect(t *testing.T) {
	bus := &testBus{}
	srv := startTestServer(t, bus, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws?token=test-token", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ws.Close(websocket.StatusNormalClosure, "bye")

	time.Sleep(100 * time.Millisecond)

	// Publishing after the client left must not panic.
	bus.Publish(context.Background(), domain.Event{
		Type:      domain.EventLedgerDeleted,
		Timestamp: time.Now(),
	})
	if got := srv.Metrics().Connections.Load(); got != 0 {
		t.Errorf("Connections = %d, want 0", got)
	}
}

func TestServerHandlerError(t *testing.T) {
	srv := startTestServer(t, &testBus{}, Options{})
	srv.RegisterHandler("fail", func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return nil, domain.ErrIO
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	resp := roundtrip(t, ws, Frame{Type: FrameTypeRequest, ID: 1, Method: "fail"})

	if resp.Error == "" {
		t.Error("expected error in response")
	}
	if resp.Code != string(domain.CodeIO) {
		t.Errorf("code = %q", resp.Code)
	}
	if srv.Metrics().RPCErrors.Load() != 1 {
		t.Errorf("RPCErrors = %d", srv.Metrics().RPCErrors.Load())
	}
}

func TestServerRESTHardenedAndLimited(t *testing.T) {
	bus := &testBus{}
	srv := NewServer(bus, newTestAuth(), Options{Addr: "127.0.0.1:0", RequestsPerSecond: 0.001, Burst: 1}, discardLogger())
	deps, _ := newHandlerDeps(t)
	RegisterRESTHandlers(srv, deps)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Start(ctx) }()
	deadline := time.Now().Add(3 * time.Second)
	for srv.BoundAddr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Cleanup(func() { srv.Stop(context.Background()) })

	url := "http://" + srv.BoundAddr() + "/metrics?token=test-token"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}

	resp, err = http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", resp.StatusCode)
	}
}
