package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Codewithsaffy/ai-todo-app/modules/assistant"
	fastws "github.com/fasthttp/websocket"
)

func newChatApp(a Assistant) *APIModule {
	m := newTestModule(&mockAuthPort{authenticateFunc: sessionFor("tok-1", "acc-1")}, &mockTaskPort{})
	m.SetAssistant(a)
	return m
}

func TestChat_Streams(t *testing.T) {
	var gotOwner string
	var gotHistory []assistant.Message
	var cancellable bool
	a := &mockAssistant{enabled: true, chatFunc: func(ctx context.Context, ownerID string, history []assistant.Message, sink assistant.Sink) (*assistant.Result, error) {
		gotOwner, gotHistory = ownerID, history
		cancellable = ctx.Done() != nil
		for _, part := range []string{"## Your Task List\n", "- Pay bills\n"} {
			if err := sink(part); err != nil {
				return nil, err
			}
		}
		return &assistant.Result{Text: "## Your Task List\n- Pay bills\n", Steps: 2}, nil
	}}
	app := newChatApp(a).newApp()

	body := `{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"Hello!"},{"role":"user","content":"Show all my tasks"}]}`
	resp, text := doRequest(t, app, "POST", "/api/chat", body, sessionCookie("tok-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, text)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q, want text/markdown", ct)
	}
	if text != "## Your Task List\n- Pay bills\n" {
		t.Errorf("body = %q", text)
	}
	if gotOwner != "acc-1" {
		t.Errorf("owner = %q, want acc-1", gotOwner)
	}
	if len(gotHistory) != 3 || gotHistory[1].Role != assistant.RoleAssistant || gotHistory[2].Content != "Show all my tasks" {
		t.Errorf("history = %+v", gotHistory)
	}
	if !cancellable {
		t.Error("turn context can never be cancelled")
	}
}

func TestChat_FailureBeforeText(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "model error", err: errors.New("model step 1: 503 unavailable"), wantStatus: http.StatusBadGateway, wantError: ErrChatFailed.Error()},
		{name: "model not configured", err: fmt.Errorf("chat: %w", assistant.ErrModelNotConfigured), wantStatus: http.StatusServiceUnavailable, wantError: assistant.ErrModelNotConfigured.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAssistant{enabled: true, chatFunc: func(context.Context, string, []assistant.Message, assistant.Sink) (*assistant.Result, error) {
				return nil, tt.err
			}}
			app := newChatApp(a).newApp()

			resp, body := doRequest(t, app, "POST", "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`, sessionCookie("tok-1"))
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(body, tt.wantError) {
				t.Errorf("body = %s, want error %q", body, tt.wantError)
			}
			if strings.Contains(body, "503 unavailable") {
				t.Error("internal error leaked into the response")
			}
		})
	}
}

func TestChat_StopCancelsTurn(t *testing.T) {
	started := make(chan struct{})
	turnErr := make(chan error, 1)
	a := &mockAssistant{enabled: true, chatFunc: func(ctx context.Context, _ string, _ []assistant.Message, sink assistant.Sink) (*assistant.Result, error) {
		if err := sink("Working on it"); err != nil {
			return nil, err
		}
		close(started)
		<-ctx.Done()
		turnErr <- ctx.Err()
		return nil, ctx.Err()
	}}
	m := newChatApp(a)
	app := m.newApp()

	type response struct {
		body string
		err  error
	}
	done := make(chan response, 1)
	go func() {
		req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(sessionCookie("tok-1"))
		resp, err := app.Test(req, -1)
		if err != nil {
			done <- response{err: err}
			return
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		done <- response{body: string(data), err: err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not start")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-turnErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("turn ctx error = %v, want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not cancel the running turn")
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("app.Test() error = %v", res.err)
	}
	if !strings.HasPrefix(res.body, "Working on it") || !strings.HasSuffix(res.body, chatFailureText) {
		t.Errorf("body = %q", res.body)
	}
}

func TestChat_FailureAfterStreamStarted(t *testing.T) {
	a := &mockAssistant{enabled: true, chatFunc: func(_ context.Context, _ string, _ []assistant.Message, sink assistant.Sink) (*assistant.Result, error) {
		_ = sink("Here are")
		return &assistant.Result{Text: "Here are"}, errors.New("model step 2: stream reset")
	}}
	app := newChatApp(a).newApp()

	resp, text := doRequest(t, app, "POST", "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`, sessionCookie("tok-1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(text, "Here are") || !strings.HasSuffix(text, chatFailureText) {
		t.Errorf("body = %q", text)
	}
	if strings.Contains(text, "stream reset") {
		t.Error("internal error leaked into the stream")
	}
}

func TestChat_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		assistant  Assistant
		body       string
		cookie     bool
		wantStatus int
	}{
		{name: "no session", assistant: &mockAssistant{enabled: true}, body: `{"messages":[{"role":"user","content":"hi"}]}`, wantStatus: http.StatusUnauthorized},
		{name: "model not configured", assistant: &mockAssistant{}, body: `{"messages":[{"role":"user","content":"hi"}]}`, cookie: true, wantStatus: http.StatusServiceUnavailable},
		{name: "no assistant", body: `{"messages":[{"role":"user","content":"hi"}]}`, cookie: true, wantStatus: http.StatusServiceUnavailable},
		{name: "empty history", assistant: &mockAssistant{enabled: true}, body: `{"messages":[]}`, cookie: true, wantStatus: http.StatusBadRequest},
		{name: "ends with assistant", assistant: &mockAssistant{enabled: true}, body: `{"messages":[{"role":"assistant","content":"hi"}]}`, cookie: true, wantStatus: http.StatusBadRequest},
		{name: "malformed", assistant: &mockAssistant{enabled: true}, body: `{"messages":`, cookie: true, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModule(&mockAuthPort{authenticateFunc: sessionFor("tok-1", "acc-1")}, &mockTaskPort{})
			if tt.assistant != nil {
				m.SetAssistant(tt.assistant)
			}
			var cookies []*http.Cookie
			if tt.cookie {
				cookies = append(cookies, sessionCookie("tok-1"))
			}
			resp, body := doRequest(t, m.newApp(), "POST", "/api/chat", tt.body, cookies...)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestToHistory(t *testing.T) {
	tests := []struct {
		name     string
		messages []ChatMessage
		wantErr  bool
	}{
		{name: "single user message", messages: []ChatMessage{{Role: "user", Content: "hi"}}},
		{name: "alternating", messages: []ChatMessage{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}, {Role: "user", Content: "c"}}},
		{name: "empty", wantErr: true},
		{name: "unknown role", messages: []ChatMessage{{Role: "system", Content: "x"}, {Role: "user", Content: "hi"}}, wantErr: true},
		{name: "blank last message", messages: []ChatMessage{{Role: "user", Content: "  "}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := toHistory(tt.messages)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChat) {
					t.Errorf("toHistory() error = %v, want ErrInvalidChat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("toHistory() error = %v", err)
			}
			if len(history) != len(tt.messages) {
				t.Errorf("len = %d, want %d", len(history), len(tt.messages))
			}
		})
	}
}

func TestChat_WebSocketRequiresUpgrade(t *testing.T) {
	app := newChatApp(&mockAssistant{enabled: true}).newApp()
	resp, _ := doRequest(t, app, "GET", "/api/chat/ws", "", sessionCookie("tok-1"))
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUpgradeRequired)
	}
}

// dialChat serves app on a loopback listener and opens a chat socket.
func dialChat(t *testing.T, m *APIModule) *fastws.Conn {
	t.Helper()
	app := m.newApp()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	header := http.Header{"Cookie": {sessionCookie("tok-1").String()}}
	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/chat/ws", header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *fastws.Conn) ChatEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event ChatEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return event
}

func TestChat_SocketTurn(t *testing.T) {
	a := &mockAssistant{enabled: true, chatFunc: func(_ context.Context, _ string, history []assistant.Message, sink assistant.Sink) (*assistant.Result, error) {
		if history[len(history)-1].Content == "fail" {
			return nil, errors.New("model step 1: stream reset")
		}
		if err := sink("Task added."); err != nil {
			return nil, err
		}
		return &assistant.Result{Text: "Task added.", Steps: 2}, nil
	}}
	conn := dialChat(t, newChatApp(a))

	if err := conn.WriteJSON(ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "Add buy milk"}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if got := readEvent(t, conn); got.Type != "chunk" || got.Text != "Task added." {
		t.Errorf("first event = %+v, want chunk", got)
	}
	if got := readEvent(t, conn); got.Type != "done" {
		t.Errorf("second event = %+v, want done", got)
	}

	if err := conn.WriteJSON(ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "fail"}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if got := readEvent(t, conn); got.Type != "error" || got.Message != ErrChatFailed.Error() {
		t.Errorf("event = %+v, want error %q", got, ErrChatFailed.Error())
	}
}

func TestChat_SocketCloseCancelsTurn(t *testing.T) {
	started := make(chan struct{})
	turnErr := make(chan error, 1)
	a := &mockAssistant{enabled: true, chatFunc: func(ctx context.Context, _ string, _ []assistant.Message, sink assistant.Sink) (*assistant.Result, error) {
		if err := sink("Looking"); err != nil {
			return nil, err
		}
		close(started)
		<-ctx.Done()
		turnErr <- ctx.Err()
		return nil, ctx.Err()
	}}
	conn := dialChat(t, newChatApp(a))

	if err := conn.WriteJSON(ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "Find my tasks"}}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if got := readEvent(t, conn); got.Type != "chunk" {
		t.Fatalf("event = %+v, want chunk", got)
	}
	<-started
	conn.Close()

	select {
	case err := <-turnErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("turn ctx error = %v, want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("closing the socket did not cancel the running turn")
	}
}
