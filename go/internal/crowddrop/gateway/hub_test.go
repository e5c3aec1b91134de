package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/events"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/gamelink"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/round"
	"github.com/mcdev12/crowddrop/go/internal/models"
)

type fakeLink struct {
	mu   sync.Mutex
	sent []gamelink.Event
}

func (l *fakeLink) SendEvent(ev gamelink.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, ev)
	return nil
}

func (l *fakeLink) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

type testServer struct {
	hub     *Hub
	session *round.Session
	link    *fakeLink
	server  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog, err := models.NewCatalog([]models.Item{
		{Key: "freeze", Emoji: "🧊", Label: "Freeze Orb"},
		{Key: "fire", Emoji: "🔥", Label: "Power Core"},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	hub := NewHub(DefaultHubConfig())
	link := &fakeLink{}
	session := round.NewSession(catalog, round.DefaultConfig(), hub, link,
		round.WithPicker(func(int) int { return 0 }))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	mux := http.NewServeMux()
	NewService(Config{OverlayDir: t.TempDir()}, hub, session).RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &testServer{hub: hub, session: session, link: link, server: server}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind events.Kind) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", kind, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid JSON %s: %v", data, err)
		}
		if msg["type"] == string(kind) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestConnectSendsSnapshot(t *testing.T) {
	ts := newTestServer(t)
	ts.session.StartRound()

	conn := ts.dial(t)
	st := readUntil(t, conn, events.KindState)

	info, ok := st["round"].(map[string]any)
	if !ok || info["active"] != true || info["round_id"] != float64(1) {
		t.Fatalf("round = %v", st["round"])
	}
	if remaining, _ := info["duration_remaining"].(float64); remaining < 29 || remaining > 30 {
		t.Fatalf("duration_remaining = %v", info["duration_remaining"])
	}
	if opts, _ := st["options"].([]any); len(opts) != 2 {
		t.Fatalf("options = %v", st["options"])
	}
	if _, present := st["pending_placement"]; !present {
		t.Fatal("pending_placement missing from snapshot")
	}

	send(t, conn, `{"type":"ping"}`)
	if pong := readUntil(t, conn, events.KindPong); pong["t"] == nil {
		t.Fatalf("pong without timestamp: %v", pong)
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	ts := newTestServer(t)
	a := ts.dial(t)
	b := ts.dial(t)
	readUntil(t, a, events.KindState)
	readUntil(t, b, events.KindState)

	ts.session.StartRound()
	for _, conn := range []*websocket.Conn{a, b} {
		msg := readUntil(t, conn, events.KindRoundStart)
		if msg["round_id"] != float64(1) || msg["duration"] != float64(30) {
			t.Fatalf("round_start = %v", msg)
		}
	}
}

func TestOnlyBoundPlacerCanPlace(t *testing.T) {
	ts := newTestServer(t)

	placer := ts.dial(t)
	other := ts.dial(t)
	anon := ts.dial(t)
	readUntil(t, placer, events.KindState)
	readUntil(t, other, events.KindState)
	readUntil(t, anon, events.KindState)

	send(t, placer, `{"type":"overlay_hello","twitch_user_id":"U1"}`)
	send(t, other, `{"type":"overlay_hello","identity":"U2"}`)
	readUntil(t, placer, events.KindState)
	readUntil(t, other, events.KindState)

	ts.session.StartRound()
	if _, err := ts.session.CastVote(round.Voter{ID: "U1", Name: "alice"}, "fire"); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	ts.session.CloseVoting()
	if p, ok := ts.session.SelectPlacer(); !ok || p.ChosenUserID != "U1" {
		t.Fatalf("placer = %+v", p)
	}
	readUntil(t, anon, events.KindPlacementRequest)

	send(t, anon, `{"type":"place_choice","place":"left"}`)
	send(t, other, `{"type":"place_choice","place":"left"}`)
	send(t, other, `{"type":"pointer_event","x":5,"y":5,"terminate":true}`)

	// round trip through the other client so its messages were handled
	send(t, other, `{"type":"sync"}`)
	st := readUntil(t, other, events.KindState)
	if st["pending_placement"] == nil {
		t.Fatal("unauthorized client cleared the placement")
	}
	if ts.link.count() != 0 {
		t.Fatal("unauthorized input reached the game")
	}

	send(t, placer, `{"type":"place_choice","place":"right"}`)
	update := readUntil(t, anon, events.KindPlaceUpdate)
	if update["place"] != "right" || update["chosen_user_id"] != "U1" {
		t.Fatalf("place_update = %v", update)
	}
	readUntil(t, anon, events.KindPlacementComplete)

	// the game write happens after the broadcast
	deadline := time.Now().Add(2 * time.Second)
	for ts.link.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ts.link.count() != 1 {
		t.Fatalf("game received %d events, want 1", ts.link.count())
	}
}

func TestHealthAndStateEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.session.StartRound()
	conn := ts.dial(t)
	readUntil(t, conn, events.KindState)

	resp, err := http.Get(ts.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !health.OK || health.Clients != 1 || !health.RoundActive || health.RoundID != 1 || health.Pending {
		t.Fatalf("health = %+v", health)
	}

	stateResp, err := http.Get(ts.server.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	defer stateResp.Body.Close()
	var st map[string]any
	if err := json.NewDecoder(stateResp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st["type"] != "state" {
		t.Fatalf("state type = %v", st["type"])
	}
}

func TestOverlayRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	mux := http.NewServeMux()
	NewOverlayHandler(t.TempDir()).RegisterRoutes(mux)

	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("favicon status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/overlay.js", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "overlay.js not found") {
		t.Fatalf("missing overlay.js: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/overlay.html" {
		t.Fatalf("root redirect: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	resp, err := http.Get(ts.server.URL + "/overlay.html")
	if err != nil {
		t.Fatalf("GET /overlay.html: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("overlay status = %d", resp.StatusCode)
	}
}

func TestBroadcastDropsSlowClientOnly(t *testing.T) {
	hub := NewHub(DefaultHubConfig())
	slow := &Client{ID: "slow", Send: make(chan []byte), hub: hub}
	fast := &Client{ID: "fast", Send: make(chan []byte, 4), hub: hub}
	hub.Register(slow)
	hub.Register(fast)

	hub.handleBroadcast(events.PlacementComplete{})

	if hub.ClientCount() != 1 {
		t.Fatalf("clients = %d, want 1", hub.ClientCount())
	}
	select {
	case data := <-fast.Send:
		if string(data) != `{"type":"placement_complete"}` {
			t.Fatalf("fast client got %s", data)
		}
	default:
		t.Fatal("fast client got nothing")
	}
	if _, open := <-slow.Send; open {
		t.Fatal("slow client's send channel still open")
	}

	// unregistering again is harmless
	hub.Unregister(slow)
	hub.Unregister(slow)
}

type pointerGame struct {
	mu       sync.Mutex
	pointers []round.Pointer
}

func (g *pointerGame) Snapshot() events.State { return events.State{} }

func (g *pointerGame) CommitPlacement(string, string) (events.Placement, error) {
	return events.Placement{}, nil
}

func (g *pointerGame) ForwardPointer(_ string, p round.Pointer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pointers = append(g.pointers, p)
	return nil
}

func TestPointerRateLimit(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.PointerRate = 0
	cfg.PointerBurst = 2
	hub := NewHub(cfg)
	game := &pointerGame{}
	h := NewWebSocketHandler(hub, game)

	c := &Client{ID: "c1", Send: make(chan []byte, 4), hub: hub}
	c.pointer = newPointerLimiter(cfg)

	// unbound clients are ignored entirely
	h.HandleClientEvent(c, PointerEvent{X: 1})
	if len(game.pointers) != 0 {
		t.Fatal("unbound pointer forwarded")
	}

	hub.BindIdentity(c, "U1")
	for i := 0; i < 5; i++ {
		h.HandleClientEvent(c, PointerEvent{X: i})
	}
	h.HandleClientEvent(c, PointerEvent{X: 99, Terminate: true})

	if len(game.pointers) != 3 {
		t.Fatalf("forwarded %d pointer events, want burst of 2 plus the click", len(game.pointers))
	}
	if last := game.pointers[2]; !last.Terminal || last.X != 99 {
		t.Fatalf("click = %+v", last)
	}
}
