package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/capabilities"
	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
	"github.com/skoibuchi/ai-agent-team-management/internal/orchestrator"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/internal/store/postgres"
	"github.com/skoibuchi/ai-agent-team-management/internal/tools"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (frontend on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key, DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string                 // if set, require X-API-Key header or query api_key
	DBDriver       string                 // "sqlite" (default) or "postgres"
	DBURL          string                 // for postgres: connection string (or set DATABASE_URL env)
	Workspace      string                 // root directory for agent tools; defaults under Home
	Version        string                 // reported by /config
	MetricsHandler http.Handler           // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool                   // if true, wrap handler with otelhttp for request metrics
	Notify         *capabilities.Registry // optional task outcome notifications
}

// App holds the HTTP server, SSE hub, store, and orchestrator.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	Store  store.Store
	Orch   *orchestrator.Orchestrator
	Home   string

	// ResolveModel builds the chat model used by /tasks/analyze; tests
	// swap in a canned model.
	ResolveModel func(cfg llm.Config) (llm.ChatModel, error)
}

// NewApp creates the HTTP app (server, hub, store, orchestrator) and
// registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}

	workspace := opts.Workspace
	if workspace == "" {
		workspace = filepath.Join(opts.Home, "workspace")
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, err
	}
	reg := tools.NewRegistry()
	tools.RegisterFileTools(reg, workspace)
	tools.RegisterShellTool(reg, workspace)
	tools.RegisterWebTools(reg)

	orch := orchestrator.New(orchestrator.Options{
		Store: st,
		Tools: reg,
		Pub:   hub,
		Caps:  opts.Notify,
	})

	app := &App{Hub: hub, Store: st, Orch: orch, Home: opts.Home, ResolveModel: llm.Resolve}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", app.handlePlainMetrics)
	}

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		driver := opts.DBDriver
		if driver == "" {
			driver = "sqlite"
		}
		writeJSON(w, models.Config{Home: opts.Home, Version: opts.Version, Driver: driver})
	})

	mux.HandleFunc("/events", hub.Handler())

	mux.HandleFunc("/tasks", app.handleTasks)
	mux.HandleFunc("/tasks/analyze", app.handleTaskAnalyze)
	mux.HandleFunc("/tasks/", app.handleTaskSubroutes)
	mux.HandleFunc("/interactions/", app.handleInteractionSubroutes)
	mux.HandleFunc("/approvals", app.handleApprovals)
	mux.HandleFunc("/approvals/", app.handleApprovalSubroutes)
	mux.HandleFunc("/agents", app.handleAgents)
	mux.HandleFunc("/agents/", app.handleAgentByID)
	mux.HandleFunc("/teams", app.handleTeams)
	mux.HandleFunc("/teams/", app.handleTeamByID)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "agentteam")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	app.Server = srv
	return app, nil
}

// handlePlainMetrics is the fallback when no OTel metrics handler is wired.
func (a *App) handlePlainMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, status := range []string{
		models.TaskPending, models.TaskRunning, models.TaskCompleted,
		models.TaskFailed, models.TaskCancelled,
	} {
		tasks, _ := a.Store.ListTasks(r.Context(), status, 0)
		_, _ = fmt.Fprintf(w, "agentteam_tasks_total{status=%q} %d\n", status, len(tasks))
	}
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

// statusForErr maps store errors onto HTTP status codes.
func statusForErr(err error) int {
	if strings.Contains(err.Error(), "not found") {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func parseLimit(r *http.Request, max int) int {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, _ := fmt.Sscanf(l, "%d", &limit); n != 1 || limit < 0 {
			limit = 0
		}
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
