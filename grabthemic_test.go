package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *GameManager) {
	t.Helper()

	errs := make(chan error, 64)
	mux, gm := newRouter(cfg, errs)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		gm.Close()
		srv.Close()
	})

	return srv, gm
}

func dialGame(t *testing.T, srv *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + gamePath + "/" + gameID + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	return ws
}

// readState reads game_state messages until match returns true. Every
// message read along the way is passed to seen, if set.
func readState(t *testing.T, ws *websocket.Conn, match func(GameStateMessage) bool, seen func(GameStateMessage)) GameStateMessage {
	t.Helper()

	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))

	for {
		var msg GameStateMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for game state: %v", err)
		}
		if msg.Type != "game_state" {
			continue
		}
		if seen != nil {
			seen(msg)
		}
		if match(msg) {
			return msg
		}
	}
}

func sendAction(t *testing.T, ws *websocket.Conn, msg ClientMessage) {
	t.Helper()

	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write %q: %v", msg.Type, err)
	}
}

func TestGameOverWebsocket(t *testing.T) {
	cfg := validConfig()
	cfg.countdown = 500
	cfg.singing = 1
	cfg.tick = 10 * time.Millisecond

	srv, _ := newTestServer(t, cfg)
	ws := dialGame(t, srv, "Abcd1234")

	initial := readState(t, ws, func(GameStateMessage) bool { return true }, nil)
	if initial.Phase != "idle" {
		t.Fatalf("expected idle, got %q", initial.Phase)
	}
	if initial.CurrentWord != "Get Ready!" {
		t.Fatalf("unexpected initial word %q", initial.CurrentWord)
	}
	if len(initial.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(initial.Players))
	}
	p1 := initial.Players[0]

	// Rejected actions produce no change.
	sendAction(t, ws, ClientMessage{Type: "award", PlayerID: p1.ID})
	sendAction(t, ws, ClientMessage{Type: "bogus"})

	sendAction(t, ws, ClientMessage{Type: "start_game"})
	started := readState(t, ws, func(m GameStateMessage) bool {
		return m.Phase == "word_display"
	}, nil)
	if started.Round != 1 {
		t.Fatalf("expected round 1, got %d", started.Round)
	}
	if started.Countdown != 500 {
		t.Fatalf("expected countdown 500, got %d", started.Countdown)
	}
	for _, p := range started.Players {
		if p.Score != 0 {
			t.Fatalf("score changed by rejected award: %+v", p)
		}
	}

	sendAction(t, ws, ClientMessage{Type: "tap"})
	readState(t, ws, func(m GameStateMessage) bool {
		return m.Phase == "scoring"
	}, nil)

	sendAction(t, ws, ClientMessage{Type: "award", PlayerID: p1.ID})
	next := readState(t, ws, func(m GameStateMessage) bool {
		return m.Phase == "word_display" && m.Round == 2
	}, nil)

	if next.Players[0].Score != 1 {
		t.Fatalf("expected P1 score 1, got %d", next.Players[0].Score)
	}
	if next.Players[1].Score != 0 {
		t.Fatalf("expected P2 score 0, got %d", next.Players[1].Score)
	}
	if next.CurrentWord == started.CurrentWord {
		t.Fatalf("expected a new word, still %q", next.CurrentWord)
	}

	// A second screen joining the same table sees the same game.
	other := dialGame(t, srv, "Abcd1234")
	mirrored := readState(t, other, func(GameStateMessage) bool { return true }, nil)
	if mirrored.Round != 2 || mirrored.Players[0].Score != 1 {
		t.Fatalf("second screen got a different table: %+v", mirrored)
	}
}

func TestCountdownExpiryOverWebsocket(t *testing.T) {
	cfg := validConfig()
	cfg.countdown = 1
	cfg.tick = 10 * time.Millisecond

	srv, _ := newTestServer(t, cfg)
	ws := dialGame(t, srv, "Efgh5678")

	readState(t, ws, func(GameStateMessage) bool { return true }, nil)

	sendAction(t, ws, ClientMessage{Type: "start_game"})

	readState(t, ws, func(m GameStateMessage) bool {
		return m.Round >= 3
	}, func(m GameStateMessage) {
		if m.Phase != "word_display" {
			t.Fatalf("countdown expiry moved to %q", m.Phase)
		}
	})
}

func TestSeparateGamesAreIsolated(t *testing.T) {
	cfg := validConfig()
	cfg.countdown = 500

	srv, gm := newTestServer(t, cfg)

	a := dialGame(t, srv, "GameAAAA")
	b := dialGame(t, srv, "GameBBBB")

	readState(t, a, func(GameStateMessage) bool { return true }, nil)
	readState(t, b, func(GameStateMessage) bool { return true }, nil)

	sendAction(t, a, ClientMessage{Type: "start_game"})
	readState(t, a, func(m GameStateMessage) bool { return m.Phase == "word_display" }, nil)

	_ = b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var msg GameStateMessage
	if err := b.ReadJSON(&msg); err == nil {
		t.Fatalf("other game received an update: %+v", msg)
	}

	if gm.count() != 2 {
		t.Fatalf("expected 2 games, got %d", gm.count())
	}
}

func TestReaperClosesIdleGames(t *testing.T) {
	cfg := validConfig()

	gm := newGameManager(40 * time.Millisecond)
	t.Cleanup(gm.Close)

	hub, err := gm.getHub(cfg, "Idle1234")
	if err != nil {
		t.Fatalf("getHub: %v", err)
	}

	select {
	case <-hub.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("idle game was not reaped")
	}

	if gm.count() != 0 {
		t.Fatalf("expected no games left, got %d", gm.count())
	}
}

func TestGetHubReusesGame(t *testing.T) {
	cfg := validConfig()

	gm := newGameManager(0)
	t.Cleanup(gm.Close)

	a, err := gm.getHub(cfg, "Same1234")
	if err != nil {
		t.Fatalf("getHub: %v", err)
	}
	b, err := gm.getHub(cfg, "Same1234")
	if err != nil {
		t.Fatalf("getHub: %v", err)
	}
	if a != b {
		t.Fatalf("expected the same hub for the same id")
	}

	gm.Close()

	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("hub still running after manager close")
	}
}

func TestNewGameIDUnique(t *testing.T) {
	gm := newGameManager(0)
	t.Cleanup(gm.Close)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := gm.newGameID()
		if len(id) != 8 {
			t.Fatalf("expected 8-char id, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestHubEveryStopsOnCancel(t *testing.T) {
	h := &Hub{
		ticks: make(chan func()),
		quit:  make(chan struct{}),
	}
	defer close(h.quit)

	cancel := h.Every(5*time.Millisecond, func() {})

	select {
	case <-h.ticks:
	case <-time.After(2 * time.Second):
		t.Fatalf("no tick delivered")
	}

	cancel()
	cancel()

	time.Sleep(50 * time.Millisecond)

	select {
	case <-h.ticks:
		t.Fatalf("tick delivered after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
