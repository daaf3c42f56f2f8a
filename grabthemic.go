// Grab the Mic
//
// A word flashes up with a short countdown. The first player to tap grabs
// the mic and has to sing a line containing the word before the singing
// timer runs out. The host then awards a point to whoever sang it, or skips.
//
// Features:
// - One shared table per game ID: /path/:gameid and /path/:gameid/ws
// - Every connected screen mirrors the same table and may send actions
// - Rules and timers live in games/grabthemic; the hub only drives them
// - Each hub goroutine is the only code that touches its game
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to open the current table on another screen, backed by go-qrcode

package main

import (
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/grabthemic/games/grabthemic"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`                // "start_game", "tap", "award", "skip"
	PlayerID string `json:"player_id,omitempty"` // award
	Points   int    `json:"points,omitempty"`    // award, defaults to 1
}

// GameStateMessage is broadcast on connect and after every change.
type GameStateMessage struct {
	Type        string              `json:"type"` // "game_state"
	Phase       string              `json:"phase"`
	CurrentWord string              `json:"current_word"`
	Countdown   int                 `json:"countdown"`
	Singing     int                 `json:"singing"`
	Players     []grabthemic.Player `json:"players"`
	Round       int                 `json:"round"`
}

func newGameStateMessage(s grabthemic.Snapshot) GameStateMessage {
	return GameStateMessage{
		Type:        "game_state",
		Phase:       s.Phase.String(),
		CurrentWord: s.CurrentWord,
		Countdown:   s.Countdown,
		Singing:     s.Singing,
		Players:     s.Players,
		Round:       s.Round,
	}
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type Hub struct {
	id      string
	clients map[*Client]bool
	game    *grabthemic.Controller

	register chan *Client
	unreg    chan *Client
	actions  chan ClientMessage
	ticks    chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, gameID string) (*Hub, error) {
	now := time.Now()

	h := &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan ClientMessage),
		ticks:      make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	game, err := grabthemic.New(grabthemic.Options{
		PlayerNames:  cfg.playerNames(),
		Countdown:    cfg.countdown,
		Singing:      cfg.singing,
		TickInterval: cfg.tick,
		Scheduler:    h,
		Logf: func(format string, args ...any) {
			logf(cfg, "GAMES: [%s] "+format, append([]any{gameID}, args...)...)
		},
	})
	if err != nil {
		return nil, err
	}

	h.game = game
	h.game.Subscribe(h.broadcast)

	return h, nil
}

// Every implements grabthemic.Scheduler. The ticker goroutine only hands
// tick to the run loop; it never calls it directly.
func (h *Hub) Every(d time.Duration, tick func()) func() {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case h.ticks <- tick:
				case <-stop:
					return
				case <-h.quit:
					return
				}
			case <-stop:
				return
			case <-h.quit:
				return
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}

func (h *Hub) run(cfg *Config) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			h.sendLocked(c, newGameStateMessage(h.game.Snapshot()))
			count := len(h.clients)
			h.mu.Unlock()

			logf(cfg, "GAMES: Screen joined %s (%d connected)", h.id, count)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.actions:
			h.touch()
			h.handleAction(cfg, msg)

		case tick := <-h.ticks:
			tick()

		case <-h.quit:
			h.game.Close()
			h.closeClients()

			logf(cfg, "GAMES: Closed %s after %s", h.id, time.Since(h.createdAt).Round(time.Second))

			return
		}
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

// handleAction applies a client action to the game. Actions that the game
// rejects are logged and otherwise dropped; clients always see the last
// valid state.
func (h *Hub) handleAction(cfg *Config, msg ClientMessage) {
	var err error

	switch msg.Type {
	case "start_game":
		err = h.game.StartGame()
	case "tap":
		err = h.game.PlayerTappedToSing()
	case "award":
		points := msg.Points
		if points == 0 {
			points = 1
		}
		err = h.game.AwardPoints(msg.PlayerID, points)
	case "skip":
		err = h.game.Skip()
	default:
		return
	}

	if err != nil {
		logf(cfg, "GAMES: Ignored %q in %s: %v", msg.Type, h.id, err)
	}
}

func (h *Hub) broadcast(s grabthemic.Snapshot) {
	msg := newGameStateMessage(s)

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

// sendLocked assumes h.mu is already held. Clients that cannot keep up are
// dropped.
func (h *Hub) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

// stop ends the run loop, which closes the game and every client.
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated table.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	quit        chan struct{}
	closeOnce   sync.Once
}

func newGameManager(idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		quit:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub, nil
	}

	hub, err := newHub(cfg, gameID)
	if err != nil {
		return nil, err
	}

	gm.hubs[gameID] = hub
	go hub.run(cfg)

	return hub, nil
}

func (gm *GameManager) count() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.hubs)
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const max = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < 8 {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if b <= max && len(out) < 8 {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-gm.quit:
			return
		}

		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			if hub.idleSince().Before(cutoff) {
				delete(gm.hubs, id)
				hub.stop()
			}
		}
		gm.mu.Unlock()
	}
}

// Close stops the reaper and every running game.
func (gm *GameManager) Close() {
	gm.closeOnce.Do(func() {
		close(gm.quit)
	})

	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub, err := gm.getHub(cfg, gameID)
		if err != nil {
			logf(cfg, "ERROR: Unable to create game %s: %v", gameID, err)
			http.Error(w, "unable to create game", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade for %s failed: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start_game", "tap", "award", "skip":
			select {
			case h.actions <- msg:
			case <-h.quit:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// sessionURL rebuilds the public URL of the game page from a request for one
// of its sub-resources, respecting TLS and X-Forwarded-Proto.
func sessionURL(r *http.Request, suffix string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, suffix)
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if ps.ByName("gameid") == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(sessionURL(r, "/qr"), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err
		}
	}
}

func serveGamePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/grabthemic/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		page := strings.ReplaceAll(string(data), "{{PREFIX}}", cfg.prefix)

		_, err = w.Write([]byte(page))
		if err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerGrabTheMicGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerGrabTheMicGame(cfg *Config, path string, mux *httprouter.Router, errs chan<- error) *GameManager {
	gm := newGameManager(cfg.sessionTimeout)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", serveGamePage(cfg, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", serveQR(cfg, errs))

	return gm
}
