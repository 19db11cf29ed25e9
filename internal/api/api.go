// Package api provides HTTP handlers and the main API server logic for IntakePipe.
//
// It exposes RESTful endpoints for driving a participant's intake: status
// polling, answer submission, catalog listing, the detailed audit
// projection, reset, and an optional GenAI summary of a completed intake.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pulsefit/intakepipe/internal/catalog"
	"github.com/pulsefit/intakepipe/internal/genai"
	"github.com/pulsefit/intakepipe/internal/intake"
	"github.com/pulsefit/intakepipe/internal/models"
	"github.com/pulsefit/intakepipe/internal/store"
)

// Server configuration constants
const (
	// DefaultAPIAddr is the address the HTTP server binds when none is configured
	DefaultAPIAddr = ":8080"
	// DefaultReadHeaderTimeout bounds how long the server waits for request headers
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultReadTimeout bounds how long the server waits for a full request
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout bounds how long a handler may take to respond
	DefaultWriteTimeout = 30 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	CatalogFile string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the server bind address (overrides the default :8080).
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithCatalogFile sets a catalog YAML file to load instead of the embedded default.
func WithCatalogFile(path string) Option {
	return func(o *Opts) { o.CatalogFile = path }
}

// Server holds the wired modules behind the HTTP handlers.
type Server struct {
	engine   *intake.Engine
	st       store.Store
	gaClient genai.ClientInterface
	addr     string
}

// NewServer creates an API server over an intake engine and its store.
// gaClient may be nil; the summary endpoint then reports unavailable.
func NewServer(engine *intake.Engine, st store.Store, gaClient genai.ClientInterface, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAPIAddr
	}
	slog.Debug("Server.NewServer: creating API server", "addr", addr, "genai_enabled", gaClient != nil)
	return &Server{engine: engine, st: st, gaClient: gaClient, addr: addr}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/intake/participants", s.participantsCollectionHandler)
	mux.HandleFunc("/intake/participants/", s.participantHandler)
	return mux
}

// Start runs the HTTP server until it fails or the listener closes.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
	}
	slog.Info("Server.Start: IntakePipe API listening", "addr", s.addr)
	return srv.ListenAndServe()
}

// Run composes the catalog, store, engine, and API server from module
// options and starts serving.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var apiCfg Opts
	for _, opt := range apiOpts {
		opt(&apiCfg)
	}

	// Catalog: explicit file or the embedded default.
	var cat *catalog.Catalog
	var err error
	if apiCfg.CatalogFile != "" {
		cat, err = catalog.Load(apiCfg.CatalogFile)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load question catalog: %w", err)
	}
	slog.Info("Run: question catalog loaded", "questions", cat.TotalQuestions(), "from_file", apiCfg.CatalogFile != "")

	// Store backend: DSN type decides the driver; no DSN means in-memory.
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}
	var st store.Store
	switch {
	case storeCfg.DSN == "":
		slog.Info("Run: no database DSN configured, using in-memory store")
		st = store.NewInMemoryStore()
	case store.DetectDSNType(storeCfg.DSN) == "postgres":
		st, err = store.NewPostgresStore(storeOpts...)
	default:
		st, err = store.NewSQLiteStore(storeOpts...)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			slog.Error("Run: failed to close store", "error", cerr)
		}
	}()

	// GenAI client is optional; the summary endpoint degrades gracefully.
	var gaClient genai.ClientInterface
	if ga, gerr := genai.NewClient(genaiOpts...); gerr != nil {
		slog.Info("Run: GenAI client not configured, summary endpoint disabled", "reason", gerr)
	} else {
		gaClient = ga
	}

	engine := intake.NewEngine(cat, st)
	server := NewServer(engine, st, gaClient, apiOpts...)
	return server.Start()
}

// participantHandler routes /intake/participants/{id}/... requests.
func (s *Server) participantHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.participantHandler: routing request", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/intake/participants")
	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		// Trailing slash on the collection path.
		s.participantsCollectionHandler(w, r)
		return
	}
	participantID := segments[0]

	if len(segments) == 2 {
		switch segments[1] {
		case "status":
			s.requireMethod(w, r, http.MethodGet, func() { s.statusHandler(w, r, participantID) })
		case "answer":
			s.requireMethod(w, r, http.MethodPost, func() { s.answerHandler(w, r, participantID) })
		case "questions":
			s.requireMethod(w, r, http.MethodGet, func() { s.questionsHandler(w, r, participantID) })
		case "reset":
			s.requireMethod(w, r, http.MethodPost, func() { s.resetHandler(w, r, participantID) })
		case "summary":
			s.requireMethod(w, r, http.MethodPost, func() { s.summaryHandler(w, r, participantID) })
		default:
			writeJSONResponse(w, http.StatusNotFound, models.Failure("Unknown intake endpoint"))
		}
		return
	}

	if len(segments) == 3 && segments[1] == "status" && segments[2] == "detailed" {
		s.requireMethod(w, r, http.MethodGet, func() { s.detailedStatusHandler(w, r, participantID) })
		return
	}

	writeJSONResponse(w, http.StatusNotFound, models.Failure("Unknown intake endpoint"))
}

// requireMethod dispatches fn when the request method matches, and responds
// 405 with an Allow header otherwise.
func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string, fn func()) {
	if r.Method != method {
		w.Header().Set("Allow", method)
		slog.Warn("Server.requireMethod: method not allowed", "method", r.Method, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Failure("Method not allowed"))
		return
	}
	fn()
}
