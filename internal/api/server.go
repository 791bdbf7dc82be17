// Package api provides the HTTP and WebSocket boundary over the
// deterministic backtest core: a thin adapter that accepts a Play,
// drives internal/runner, and exposes progress/result polling plus a
// WebSocket completion feed. It owns no trading logic itself.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ledgerline/btcore/internal/artifact"
	"github.com/ledgerline/btcore/internal/data"
	"github.com/ledgerline/btcore/internal/runner"
	"github.com/ledgerline/btcore/pkg/types"
)

// Server is the HTTP/WebSocket API server fronting the backtest core.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	dataStore  *data.Store
	backtests  map[string]*BacktestState
}

// Client is one connected WebSocket subscriber.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// BacktestState tracks one submitted run across its lifecycle.
type BacktestState struct {
	ID      string
	Config  *types.BacktestConfig
	Status  string // "running", "completed", "failed", "cancelled"
	Started time.Time
	Result  *artifact.Artifacts
	Err     error
	cancel  context.CancelFunc
}

// Message is a WebSocket envelope for both requests and server-pushed
// events.
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"` // request, response, event
	Method    string      `json:"method"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewServer builds a Server over dataStore, ready to have its routes
// mounted via Router() or run standalone via Start().
func NewServer(logger *zap.Logger, config *types.ServerConfig, dataStore *data.Store) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:    logger,
		config:    config,
		router:    mux.NewRouter(),
		clients:   make(map[string]*Client),
		dataStore: dataStore,
		backtests: make(map[string]*BacktestState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying mux.Router, mainly for tests.
func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/data/symbols", s.handleGetSymbols).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/{id}", s.handleGetBacktest).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/trades", s.handleGetBacktestTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/cancel", s.handleCancelBacktest).Methods("POST")
	s.router.HandleFunc(s.wsPath(), s.handleWebSocket)
	if s.config == nil || s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}
}

func (s *Server) wsPath() string {
	if s.config != nil && s.config.WebSocketPath != "" {
		return s.config.WebSocketPath
	}
	return "/ws"
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	addr := "localhost:8080"
	readTimeout, writeTimeout := 30*time.Second, 30*time.Second
	if s.config != nil {
		if s.config.Host != "" || s.config.Port != 0 {
			addr = s.config.Host + portSuffix(s.config.Port)
		}
		if s.config.ReadTimeout > 0 {
			readTimeout = s.config.ReadTimeout
		}
		if s.config.WriteTimeout > 0 {
			writeTimeout = s.config.WriteTimeout
		}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	s.logger.Info("starting api server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

func portSuffix(port int) string {
	if port == 0 {
		return ":8080"
	}
	b, _ := json.Marshal(port)
	return ":" + string(b)
}

// Stop gracefully shuts down the server, closing WebSocket clients first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.mu.Unlock()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symbols": s.dataStore.Symbols()})
}

// handleRunBacktest accepts a BacktestConfig (a Play plus its run
// window), kicks it off on internal/runner in the background, and
// returns immediately with the assigned run ID.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var cfg types.BacktestConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	state := &BacktestState{ID: cfg.ID, Config: &cfg, Status: "running", Started: time.Now(), cancel: cancel}

	s.mu.Lock()
	s.backtests[cfg.ID] = state
	s.mu.Unlock()

	go s.runAsync(runCtx, state)

	writeJSON(w, http.StatusOK, map[string]any{"id": cfg.ID, "status": "running"})
}

func (s *Server) runAsync(ctx context.Context, state *BacktestState) {
	req := runner.Request{
		Symbol:     firstOrEmpty(state.Config.Play.SymbolUniverse),
		Play:       &state.Config.Play,
		Provenance: state.ID,
	}
	if !state.Config.StartDate.IsZero() {
		req.StartTsMs = state.Config.StartDate.UnixMilli()
	}
	if !state.Config.EndDate.IsZero() {
		req.EndTsMs = state.Config.EndDate.UnixMilli()
	}

	result, err := runner.Run(ctx, s.logger, s.dataStore, req)

	s.mu.Lock()
	switch {
	case ctx.Err() != nil:
		state.Status = "cancelled"
	case err != nil:
		state.Status = "failed"
		state.Err = err
	default:
		state.Status = "completed"
		state.Result = result
	}
	s.mu.Unlock()

	s.broadcast(&Message{
		ID: uuid.New().String(), Type: "event", Method: "backtest:complete",
		Payload: map[string]any{"id": state.ID, "status": state.Status}, Timestamp: time.Now().UnixMilli(),
	})
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupBacktest(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}
	resp := map[string]any{"id": state.ID, "status": state.Status, "started": state.Started.Unix()}
	if state.Result != nil {
		resp["result"] = state.Result
	}
	if state.Err != nil {
		resp["error"] = state.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBacktestTrades(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupBacktest(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}
	if state.Result == nil {
		http.Error(w, "backtest not complete", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": state.ID, "trades": state.Result.Trades, "count": len(state.Result.Trades)})
}

func (s *Server) handleCancelBacktest(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupBacktest(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}
	s.mu.RLock()
	status := state.Status
	s.mu.RUnlock()
	if status != "running" {
		http.Error(w, "backtest not running", http.StatusBadRequest)
		return
	}
	state.cancel()
	writeJSON(w, http.StatusOK, map[string]any{"id": state.ID, "status": "cancelling"})
}

func (s *Server) lookupBacktest(id string) (*BacktestState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.backtests[id]
	return state, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
