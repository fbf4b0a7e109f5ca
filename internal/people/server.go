package people

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Ratio1/people_grid_go/internal/logging"
)

var errMissingField = errors.New("people: id, name and age are required")

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request failures and debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry registers the service metrics on reg and serves reg on
// /metrics. By default a private registry is used.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// Server is the HTTP handler for the people API.
type Server struct {
	store    Store
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics
	mux      *http.ServeMux
}

// NewServer wires the routes over store. The store must already be
// connected; the server never opens or closes it.
func NewServer(store Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		logger:   zap.NewNop(),
		registry: prometheus.NewRegistry(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registry)

	s.route("GET /api/people", "list", s.handleList)
	s.route("POST /api/people", "create", s.handleCreate)
	s.route("GET /api/people/{id}", "get", s.handleGet)
	s.route("DELETE /api/people/{id}", "delete", s.handleDelete)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s
}

// ServeHTTP dispatches to the API routes and /metrics.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) route(pattern, name string, h http.HandlerFunc) {
	s.mux.Handle(pattern, withRequestID(s.metrics.instrument(name, h)))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	people, err := s.store.Values(r.Context())
	if err != nil {
		s.internalError(w, r, "list people", err)
		return
	}
	if people == nil {
		people = []Person{}
	}
	writeJSON(w, http.StatusOK, people)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.internalError(w, r, "read body", err)
		return
	}
	p, err := decodePerson(body)
	if err != nil {
		s.internalError(w, r, "decode person", err)
		return
	}
	if _, err := s.store.Put(r.Context(), p.ID, p); err != nil {
		s.internalError(w, r, "put person", err)
		return
	}
	logging.FromContext(r.Context(), s.logger).Debug("person stored", zap.Int("id", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, "parse id", err)
		return
	}
	p, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "get person", err)
		return
	}
	if p == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, "parse id", err)
		return
	}
	prev, err := s.store.Remove(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "remove person", err)
		return
	}
	if prev == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// decodePerson requires all three fields to be present and non-null; types
// are left to the JSON decoder.
func decodePerson(body []byte) (Person, error) {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return Person{}, errors.New("people: body is not a JSON object")
	}
	for _, field := range gjson.GetManyBytes(body, "id", "name", "age") {
		if !field.Exists() || field.Type == gjson.Null {
			return Person{}, errMissingField
		}
	}
	var p Person
	if err := json.Unmarshal(body, &p); err != nil {
		return Person{}, err
	}
	return p, nil
}

// internalError answers with a bare 500, the same reply for every failure.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context(), s.logger).Error("request failed", zap.String("op", op), zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
