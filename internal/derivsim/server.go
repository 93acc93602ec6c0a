// Package derivsim is a stand-in Deriv WebSocket endpoint. It answers
// authorize, ticks_history (candles), proposal and buy with deterministic
// synthetic data so the engine can run and be tested without credentials.
package derivsim

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"signalengine/internal/candlegen"
)

// Options configures the simulator.
type Options struct {
	// Token, when set, is the only API token authorize accepts.
	Token string
	// Symbols, when non-empty, restricts ticks_history and proposal to these symbols.
	Symbols []string
	// Now is the clock used to align the last candle. Default time.Now.
	Now func() time.Time
}

// Server is the simulator. Use Handler to mount it.
type Server struct {
	opts     Options
	symbols  map[string]bool
	hub      *hub
	log      *slog.Logger
	contract atomic.Int64
}

// New creates a simulator.
func New(opts Options, log *slog.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		opts: opts,
		hub:  newHub(),
		log:  log.With("component", "derivsim"),
	}
	if len(opts.Symbols) > 0 {
		s.symbols = make(map[string]bool, len(opts.Symbols))
		for _, sym := range opts.Symbols {
			s.symbols[sym] = true
		}
	}
	s.contract.Store(100000)
	return s
}

// Clients returns the number of connected sessions.
func (s *Server) Clients() int { return s.hub.count() }

// Handler serves the WebSocket API on /websockets/v3 (and /) plus /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/websockets/v3", s.serveWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"derivsim","clients":%d}`+"\n", s.hub.count())
	})
	mux.HandleFunc("/", s.serveWS)
	return mux
}

// CloseAll disconnects every client.
func (s *Server) CloseAll() { s.hub.closeAll() }

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type session struct {
	authorized bool
	proposals  map[string]proposal
}

type proposal struct {
	symbol string
	amount float64
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "error", err)
		return
	}
	s.hub.register(conn)
	s.log.Debug("client connected", "remote", r.RemoteAddr, "app_id", r.URL.Query().Get("app_id"))
	defer func() {
		s.hub.unregister(conn)
		conn.Close()
		s.log.Debug("client disconnected", "remote", r.RemoteAddr)
	}()

	sess := &session{proposals: make(map[string]proposal)}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(msg, &req); err != nil {
			req = map[string]any{}
		}
		resp := s.handle(sess, req)
		resp["echo_req"] = req
		if id, ok := req["req_id"]; ok {
			resp["req_id"] = id
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func apiError(msgType, code, message string) map[string]any {
	return map[string]any{
		"msg_type": msgType,
		"error":    map[string]any{"code": code, "message": message},
	}
}

func (s *Server) handle(sess *session, req map[string]any) map[string]any {
	switch {
	case req["authorize"] != nil:
		return s.authorize(sess, req)
	case req["ticks_history"] != nil:
		return s.ticksHistory(req)
	case req["proposal"] != nil:
		return s.proposal(sess, req)
	case req["buy"] != nil:
		return s.buy(sess, req)
	case req["ping"] != nil:
		return map[string]any{"msg_type": "ping", "ping": "pong"}
	}
	return apiError("error", "UnrecognisedRequest", "Unrecognised request")
}

func (s *Server) authorize(sess *session, req map[string]any) map[string]any {
	token, _ := req["authorize"].(string)
	if token == "" || (s.opts.Token != "" && token != s.opts.Token) {
		return apiError("authorize", "InvalidToken", "The token is invalid.")
	}
	sess.authorized = true
	return map[string]any{
		"msg_type": "authorize",
		"authorize": map[string]any{
			"loginid":    "VRTC0000001",
			"currency":   "USD",
			"balance":    10000.0,
			"is_virtual": 1,
		},
	}
}

func (s *Server) knownSymbol(symbol string) bool {
	return symbol != "" && (s.symbols == nil || s.symbols[symbol])
}

func (s *Server) ticksHistory(req map[string]any) map[string]any {
	symbol, _ := req["ticks_history"].(string)
	if !s.knownSymbol(symbol) {
		return apiError("candles", "InvalidSymbol", fmt.Sprintf("Symbol %s is invalid.", symbol))
	}
	count := intParam(req["count"], 200)
	if count > 5000 {
		count = 5000
	}
	gran := intParam(req["granularity"], 60)
	if gran <= 0 {
		gran = 60
	}
	return map[string]any{
		"msg_type": "candles",
		"candles":  Candles(symbol, count, time.Duration(gran)*time.Second, s.opts.Now()),
		"pip_size": 4,
	}
}

func (s *Server) proposal(sess *session, req map[string]any) map[string]any {
	if !sess.authorized {
		return apiError("proposal", "AuthorizationRequired", "Please log in.")
	}
	symbol, _ := req["symbol"].(string)
	if !s.knownSymbol(symbol) {
		return apiError("proposal", "InvalidSymbol", fmt.Sprintf("Symbol %s is invalid.", symbol))
	}
	ct, _ := req["contract_type"].(string)
	if ct != "CALL" && ct != "PUT" {
		return apiError("proposal", "InputValidationFailed", "Input validation failed: contract_type")
	}
	amount, _ := req["amount"].(float64)
	if amount <= 0 {
		return apiError("proposal", "ContractBuyValidationError", "Stake must be positive.")
	}
	id := fmt.Sprintf("%x", fnvHash(fmt.Sprintf("%s|%s|%f|%d", symbol, ct, amount, len(sess.proposals))))
	sess.proposals[id] = proposal{symbol: symbol, amount: amount}
	return map[string]any{
		"msg_type": "proposal",
		"proposal": map[string]any{
			"id":        id,
			"ask_price": amount,
			"payout":    amount * 1.95,
			"longcode":  fmt.Sprintf("Win payout if %s is %s than entry spot.", symbol, map[string]string{"CALL": "higher", "PUT": "lower"}[ct]),
		},
	}
}

func (s *Server) buy(sess *session, req map[string]any) map[string]any {
	if !sess.authorized {
		return apiError("buy", "AuthorizationRequired", "Please log in.")
	}
	id, _ := req["buy"].(string)
	p, ok := sess.proposals[id]
	if !ok {
		return apiError("buy", "InvalidContractProposal", "Unknown contract proposal.")
	}
	price, _ := req["price"].(float64)
	if price < p.amount {
		return apiError("buy", "PriceMoved", "The underlying market has moved too much since you priced the contract.")
	}
	delete(sess.proposals, id)
	cid := s.contract.Add(1)
	return map[string]any{
		"msg_type": "buy",
		"buy": map[string]any{
			"contract_id":    cid,
			"transaction_id": cid * 2,
			"buy_price":      p.amount,
			"longcode":       "Simulated contract on " + p.symbol,
		},
	}
}

// Candles returns count deterministic candles for symbol, the last one
// starting at now truncated to the interval.
func Candles(symbol string, count int, interval time.Duration, now time.Time) []map[string]any {
	last := now.UTC().Truncate(interval)
	from := last.Add(-time.Duration(count-1) * interval)
	start, vol := basePrice(symbol)
	rng := rand.New(rand.NewSource(int64(fnvHash(symbol))))
	table := candlegen.WalkFrom(rng, count, start, vol, from, interval)

	out := make([]map[string]any, len(table))
	for i, c := range table {
		out[i] = map[string]any{
			"epoch": c.Time.Unix(),
			"open":  c.Open,
			"high":  c.High,
			"low":   c.Low,
			"close": c.Close,
		}
	}
	return out
}

func basePrice(symbol string) (start, vol float64) {
	switch {
	case strings.HasPrefix(symbol, "frxXAU"):
		return 2300, 2
	case strings.HasPrefix(symbol, "frxXAG"):
		return 27, 0.05
	case symbol == "frxWTI":
		return 78, 0.2
	case strings.Contains(symbol, "JPY") || strings.Contains(symbol, "INR"):
		return 150, 0.05
	case strings.Contains(symbol, "IDR"):
		return 16000, 5
	case strings.HasPrefix(symbol, "frx"):
		return 1.1, 0.0005
	case strings.HasPrefix(symbol, "OTC_"):
		return 18000, 10
	}
	return 1000, 1
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func intParam(v any, def int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return def
}
