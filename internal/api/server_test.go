package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"deskhook/internal/config"
	"deskhook/internal/geom"
	"deskhook/internal/protocol"
	"deskhook/internal/window"

	"github.com/gorilla/websocket"
)

type fakeProvider struct {
	mu     sync.Mutex
	snap   *protocol.Snapshot
	paused []bool
}

func (p *fakeProvider) Snapshot() *protocol.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *fakeProvider) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = append(p.paused, paused)
}

func newTestServer(t *testing.T, token string) (*Server, *fakeProvider, *httptest.Server) {
	t.Helper()
	mgr, err := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewManagerAt: %v", err)
	}
	cfg := mgr.Get()
	cfg.API.Token = token
	if err := mgr.Set(cfg); err != nil {
		t.Fatalf("Set: %v", err)
	}

	provider := &fakeProvider{snap: &protocol.Snapshot{
		Frame:    42,
		Enabled:  true,
		HeldKeys: []string{"A"},
		Windows: []window.Info{
			{Handle: 0x10, Title: "Editor", Rect: geom.Rect{Width: 800, Height: 600}, Serial: 1},
		},
	}}
	s := NewServer(mgr, provider, "test", log.New(io.Discard, "", 0))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, provider, ts
}

func TestHealthSkipsAuth(t *testing.T) {
	_, _, ts := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	_, _, ts := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 with token, got %d", resp.StatusCode)
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["frame"] != float64(42) {
		t.Errorf("Expected frame 42, got %v", status["frame"])
	}
	if status["windows"] != float64(1) {
		t.Errorf("Expected 1 window, got %v", status["windows"])
	}

	resp, err = http.Get(ts.URL + "/api/status?token=secret")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with query token, got %d", resp.StatusCode)
	}
}

func TestWindowsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/windows")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var infos []window.Info
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].Title != "Editor" || infos[0].Handle != 0x10 {
		t.Errorf("Expected the Editor window, got %+v", infos)
	}
}

func TestStatusBeforeFirstTick(t *testing.T) {
	_, provider, ts := newTestServer(t, "")
	provider.snap = nil

	resp, err := http.Get(ts.URL + "/api/input")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 before the first tick, got %d", resp.StatusCode)
	}
}

func TestPauseEndpoint(t *testing.T) {
	_, provider, ts := newTestServer(t, "")

	resp, err := http.Post(ts.URL+"/api/pause?paused=true", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(provider.paused) != 1 || !provider.paused[0] {
		t.Errorf("Expected SetPaused(true), got %v", provider.paused)
	}

	resp, err = http.Post(ts.URL+"/api/pause?paused=maybe", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad value, got %d", resp.StatusCode)
	}
}

func TestConfigUpdate(t *testing.T) {
	s, _, ts := newTestServer(t, "")

	body := strings.NewReader(`{"window":{"tick_rate":30}}`)
	resp, err := http.Post(ts.URL+"/api/config", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	cfg := s.configMgr.Get()
	if cfg.Window.TickRate != 30 {
		t.Errorf("Expected tick rate 30, got %d", cfg.Window.TickRate)
	}
	if cfg.Window.Viewport.Width != 1920 {
		t.Errorf("Expected untouched viewport width 1920, got %d", cfg.Window.Viewport.Width)
	}

	resp, err = http.Post(ts.URL+"/api/config", "application/json", bytes.NewReader([]byte(`{"window":{"tick_rate":0}}`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid config, got %d", resp.StatusCode)
	}
	if s.configMgr.Get().Window.TickRate != 30 {
		t.Error("Expected invalid update to be rejected")
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestWebSocketStream(t *testing.T) {
	s, _, ts := newTestServer(t, "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	hello := readMessage(t, conn)
	if hello.Type != protocol.TypeHello {
		t.Fatalf("Expected hello first, got %s", hello.Type)
	}
	var hp protocol.HelloPayload
	if err := hello.DecodePayload(&hp); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if len(hp.ClientID) != 36 {
		t.Errorf("Expected a uuid client id, got %q", hp.ClientID)
	}
	if s.Clients() != 1 {
		t.Errorf("Expected 1 client, got %d", s.Clients())
	}

	s.Broadcast(protocol.Message{
		Type:    protocol.TypeKey,
		Payload: protocol.InputPayload{Frame: 7, Name: "A", Pressed: true},
	})
	msg := readMessage(t, conn)
	if msg.Type != protocol.TypeKey {
		t.Fatalf("Expected key message, got %s", msg.Type)
	}
	var in protocol.InputPayload
	if err := msg.DecodePayload(&in); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if in.Name != "A" || !in.Pressed || in.Frame != 7 {
		t.Errorf("Expected A pressed at frame 7, got %+v", in)
	}

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeSnapshotRequest}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	resp := readMessage(t, conn)
	if resp.Type != protocol.TypeSnapshotResponse {
		t.Fatalf("Expected snapshot response, got %s", resp.Type)
	}
	var snap protocol.Snapshot
	if err := resp.DecodePayload(&snap); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if snap.Frame != 42 || len(snap.Windows) != 1 {
		t.Errorf("Expected frame 42 with 1 window, got %+v", snap)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	_, _, ts := newTestServer(t, "secret")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=secret", nil)
	if err != nil {
		t.Fatalf("Dial with token: %v", err)
	}
	conn.Close()
}
