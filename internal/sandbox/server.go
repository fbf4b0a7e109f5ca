// Package sandbox serves the grid proxy protocol on top of any grid.Backend,
// so the people service can run against a local grid.
package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ratio1/people_grid_go/internal/gridapi"
	"github.com/Ratio1/people_grid_go/pkg/grid"
)

// FailConfig injects failures into a fraction of requests.
type FailConfig struct {
	Rate float64
	Code int
}

// Options tunes the sandbox behaviour.
type Options struct {
	Latency time.Duration
	Fail    FailConfig
	Logger  *zap.Logger
}

// Server is an http.Handler implementing the grid proxy protocol.
type Server struct {
	backend grid.Backend
	opts    Options
	logger  *zap.Logger
	mux     *http.ServeMux

	randMu sync.Mutex
	rand   *rand.Rand
}

// New builds a Server over backend.
func New(backend grid.Backend, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend: backend,
		opts:    opts,
		logger:  logger,
		mux:     http.NewServeMux(),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("GET /maps/{map}/entry", s.handleGet)
	s.mux.HandleFunc("PUT /maps/{map}/entry", s.handlePut)
	s.mux.HandleFunc("DELETE /maps/{map}/entry", s.handleRemove)
	s.mux.HandleFunc("GET /maps/{map}/values", s.handleValues)
	s.mux.HandleFunc("GET /maps/{map}/size", s.handleSize)
	s.mux.HandleFunc("DELETE /maps/{map}", s.handleClear)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.opts.Latency > 0 {
		time.Sleep(s.opts.Latency)
	}
	if s.shouldFail() {
		code := s.opts.Fail.Code
		if code == 0 {
			code = http.StatusInternalServerError
		}
		s.logger.Debug("failure injected", zap.String("path", r.URL.Path), zap.Int("status", code))
		http.Error(w, "failure injected", code)
		return
	}
	s.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("session", r.Header.Get(grid.SessionHeader)))
	s.mux.ServeHTTP(w, r)
}

func (s *Server) shouldFail() bool {
	if s.opts.Fail.Rate <= 0 {
		return false
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Float64() < s.opts.Fail.Rate
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeResult(w, true)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := queryKey(w, r)
	if !ok {
		return
	}
	value, err := s.backend.Get(r.Context(), r.PathValue("map"), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, json.RawMessage(value))
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload grid.EntryRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(payload.Key) == 0 || len(payload.Value) == 0 {
		http.Error(w, "key and value are required", http.StatusBadRequest)
		return
	}
	prev, err := s.backend.Put(r.Context(), r.PathValue("map"), payload.Key, payload.Value)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, json.RawMessage(prev))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	key, ok := queryKey(w, r)
	if !ok {
		return
	}
	prev, err := s.backend.Remove(r.Context(), r.PathValue("map"), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, json.RawMessage(prev))
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	values, err := s.backend.Values(r.Context(), r.PathValue("map"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	raws := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		raws = append(raws, json.RawMessage(v))
	}
	writeResult(w, raws)
}

func (s *Server) handleSize(w http.ResponseWriter, r *http.Request) {
	n, err := s.backend.Size(r.Context(), r.PathValue("map"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, n)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Clear(r.Context(), r.PathValue("map")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, true)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("backend error", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func queryKey(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key parameter", http.StatusBadRequest)
		return nil, false
	}
	if !json.Valid([]byte(key)) {
		http.Error(w, "key must be a JSON document", http.StatusBadRequest)
		return nil, false
	}
	return []byte(key), true
}

func writeResult(w http.ResponseWriter, payload any) {
	if raw, ok := payload.(json.RawMessage); ok && len(raw) == 0 {
		payload = nil
	}
	data, err := gridapi.Encode(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// ParseFailConfig parses "rate=<float>,code=<status>".
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return FailConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		value := strings.TrimSpace(keyVal[1])
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			rate, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return FailConfig{}, fmt.Errorf("invalid fail rate %q: %w", value, err)
			}
			if rate < 0 || rate > 1 {
				return FailConfig{}, fmt.Errorf("fail rate %v out of range [0,1]", rate)
			}
			cfg.Rate = rate
		case "code":
			code, err := strconv.Atoi(value)
			if err != nil {
				return FailConfig{}, fmt.Errorf("invalid fail code %q: %w", value, err)
			}
			if code < 400 || code > 599 {
				return FailConfig{}, fmt.Errorf("fail code %d is not an error status", code)
			}
			cfg.Code = code
		default:
			return FailConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
