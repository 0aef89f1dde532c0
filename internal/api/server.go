// Package api provides the HTTP API for observing city state.
// Every endpoint is read-only; the stream endpoint pushes a snapshot per
// tick over a websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/circular-city/internal/buildings"
	"github.com/talgya/circular-city/internal/economy"
	"github.com/talgya/circular-city/internal/engine"
	"github.com/talgya/circular-city/internal/metrics"
)

const (
	maxStreamConns  = 8
	streamCatchUp   = 50 // events sent on connect
	defaultEvents   = 50
	heartbeatPeriod = 15 * time.Second
	writeWait       = 5 * time.Second
)

// Server serves the city state over HTTP.
type Server struct {
	Sim     *engine.Simulation
	Eng     *engine.Engine
	Metrics *metrics.Metrics // nil disables /metrics
	Port    int

	hub      *Hub
	limiter  *RateLimiter
	upgrader websocket.Upgrader
	srv      *http.Server

	// Active stream connection count.
	streamConns atomic.Int32
}

// NewServer wires a server to sim and registers its stream hub as a tick
// observer. Stream connections are limited to streamRate per minute per IP.
func NewServer(sim *engine.Simulation, eng *engine.Engine, m *metrics.Metrics, port, streamRate int) *Server {
	s := &Server{
		Sim:     sim,
		Eng:     eng,
		Metrics: m,
		Port:    port,
		hub:     NewHub(),
		limiter: NewRateLimiter(streamRate, time.Minute),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // read-only data
		},
	}
	sim.AddObserver(s.hub)
	return s
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", getOnly(s.handleStatus))
	mux.HandleFunc("/api/v1/ledger", getOnly(s.handleLedger))
	mux.HandleFunc("/api/v1/pollution", getOnly(s.handlePollution))
	mux.HandleFunc("/api/v1/buildings", getOnly(s.handleBuildings))
	mux.HandleFunc("/api/v1/events", getOnly(s.handleEvents))
	mux.HandleFunc("/api/v1/prices", getOnly(s.handlePrices))
	mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(s.limiter, s.handleStream))
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics.Handler())
	}
	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "metrics", s.Metrics != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the listener and the limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	status := map[string]any{
		"city_id":        s.Sim.CityID,
		"tick":           snap.Tick,
		"money":          snap.Money,
		"money_display":  humanize.CommafWithDigits(snap.Money, 0),
		"level":          snap.Level,
		"xp":             snap.XP,
		"next_level_xp":  snap.NextLevelXP,
		"circular_score": snap.Score,
		"breakdown":      snap.Breakdown,
		"population":     snap.Population,
		"employed":       snap.Employed,
		"buildings":      snap.BuildingCount,
		"energy":         snap.Energy,
		"energy_cap":     snap.EnergyCap,
		"generated":      snap.Generated,
		"pollution_mean": snap.PollutionMean,
		"stats":          snap.Stats,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

type ledgerEntry struct {
	Resource string  `json:"resource"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Cap      float64 `json:"cap,omitempty"` // omitted when unbounded
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	amounts := s.Sim.LedgerSnapshot()
	category := r.URL.Query().Get("category")

	result := make([]ledgerEntry, 0, economy.NumResources)
	for _, res := range economy.AllResources() {
		if category != "" && res.Category().String() != category {
			continue
		}
		result = append(result, ledgerEntry{
			Resource: res.String(),
			Category: res.Category().String(),
			Amount:   amounts[res],
			Cap:      s.Sim.Ledger.Cap(res), // caps are fixed at creation
		})
	}
	writeJSON(w, result)
}

func (s *Server) handlePollution(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.PollutionSnapshot())
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	all := s.Sim.BuildingSnapshots()
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		writeJSON(w, all)
		return
	}
	if _, err := buildings.ParseKind(kind); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result := make([]engine.BuildingSnapshot, 0, len(all))
	for _, b := range all {
		if string(b.Kind) == kind {
			result = append(result, b)
		}
	}
	writeJSON(w, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEvents
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 1000)
	}
	writeJSON(w, s.Sim.RecentEvents(limit))
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	type priceEntry struct {
		Resource string  `json:"resource"`
		Price    float64 `json:"price"`
	}
	prices := s.Sim.Prices()
	result := make([]priceEntry, 0, len(prices))
	for _, res := range economy.AllResources() {
		if p, ok := prices[res]; ok {
			result = append(result, priceEntry{Resource: res.String(), Price: p})
		}
	}
	writeJSON(w, result)
}

// handleStream upgrades to a websocket, sends a hello frame with recent
// events, then one frame per tick until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := s.streamConns.Add(1)
	defer s.streamConns.Add(-1)
	if current > maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, frames := s.hub.Subscribe()
	defer s.hub.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID, "ip", clientIP(r))

	snap := s.Sim.Snapshot()
	hello, err := json.Marshal(Frame{
		Type:   "hello",
		Tick:   snap.Tick,
		City:   snap,
		Events: s.Sim.RecentEvents(streamCatchUp),
	})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	// The reader only notices the close; clients never send data.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case data, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
