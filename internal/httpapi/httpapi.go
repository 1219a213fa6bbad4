// Package httpapi exposes the build queue over HTTP: submission,
// output retrieval, a human status page modeled on autobuilder's, a
// static log archive, and Prometheus metrics. Routing follows the
// go-chi conventions the rest of the example pack uses for HTTP
// services; the status page keeps autobuilder's text/template +
// html/template-free rendering approach, swapping its hand-rolled
// formatBytes for docker/go-units.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"text/template"
	"time"

	"github.com/docker/go-units"
	"github.com/forgeci/forge/internal/queue"
	"github.com/forgeci/forge/internal/record"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/lpar/gzipped/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"
)

// uuidRequestID replaces chi's default sequential request-id
// middleware with uuid-based ids, stored under the same context key so
// middleware.Logger and middleware.GetReqID continue to work unchanged.
func uuidRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_builds_total",
		Help: "Completed builds, partitioned by result.",
	}, []string{"result"})
	buildsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forge_builds_running",
		Help: "Builds currently executing.",
	})
	buildsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forge_builds_pending",
		Help: "Submissions not yet admitted to the bounded scheduler.",
	})
)

// recordOutcome updates the completed-build counter. The engine itself
// stays metrics-agnostic; handleSubmit calls this once a submitted
// build's future resolves.
func recordOutcome(b record.Build) {
	if b.Succeeded() {
		buildsTotal.WithLabelValues("success").Inc()
	} else {
		buildsTotal.WithLabelValues("failure").Inc()
	}
}

// Server wires an Engine into an http.Handler.
type Server struct {
	Engine  *queue.Engine
	LogDir  string
	Repo    string // for the status page's "browse source" links
	Handler http.Handler
}

// New builds the router: POST /builds, GET /builds/{id}/output, GET
// /status, GET /logs/ (gzip-aware static file serving per log file),
// GET /metrics.
func New(engine *queue.Engine, logDir, repo string) *Server {
	s := &Server{Engine: engine, LogDir: logDir, Repo: repo}

	r := chi.NewRouter()
	r.Use(uuidRequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Post("/builds", s.handleSubmit)
	r.Get("/builds/{id}/output", s.handleOutput)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", s.metricsHandler())
	r.Handle("/logs/*", http.StripPrefix("/logs/", gzipped.FileServer(http.Dir(logDir))))

	s.Handler = r
	return s
}

type submitRequest struct {
	RepoURL        string `json:"repo_url"`
	Commit         string `json:"commit"`
	BuildScriptURL string `json:"build_script_url"`
}

type submitResponse struct {
	BuildID uint64 `json:"build_id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}
	if req.RepoURL == "" || req.Commit == "" || req.BuildScriptURL == "" {
		http.Error(w, "repo_url, commit and build_script_url are required", http.StatusBadRequest)
		return
	}

	fut, err := s.Engine.Enqueue(r.Context(), record.Request{
		RepoURL:        req.RepoURL,
		Commit:         req.Commit,
		BuildScriptURL: req.BuildScriptURL,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("enqueueing build: %v", err), http.StatusInternalServerError)
		return
	}

	// Observe completion asynchronously purely to feed the
	// forge_builds_total counter; the HTTP response does not wait for it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		if b, err := fut.Wait(ctx); err == nil {
			recordOutcome(b)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitResponse{BuildID: fut.BuildID()})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid build id", http.StatusBadRequest)
		return
	}

	out, err := s.Engine.GetOutput(r.Context(), id)
	if err != nil {
		if queue.IsUnknownBuild(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Text     string `json:"text"`
		ExitCode *int   `json:"exit_code,omitempty"`
	}{Text: out.Text, ExitCode: out.ExitCode})
}

var statusTmpl = template.Must(template.New("status").Funcs(template.FuncMap{
	"humanSize": func(b uint64) string { return units.HumanSize(float64(b)) },
}).Parse(`<!DOCTYPE html>
<head>
<meta charset="utf-8">
<title>forge status</title>
<style type="text/css">
td { padding: 0.5em; }
td.action { text-align: center; }
</style>
</head>
<body>
<h1>running builds</h1>
<table width="100%" cellpadding=0 cellspacing=0>
{{ range .Running }}
<tr>
<td>#{{ .BuildID }} <code>{{ .CommitSHA1 }}</code></td>
<td><a href="{{ $.Repo }}/tree/{{ .CommitSHA1 }}">browse source</a></td>
<td class="action"><a href="/builds/{{ .BuildID }}/output">output</a></td>
</tr>
{{ else }}
<tr><td>(none)</td></tr>
{{ end }}
</table>
<h1>system status</h1>
<p>
pending submissions: {{ .Pending }}<br>
running builds: {{ .RunningCount }}<br>
free disk space: {{ humanSize .DiskSpace }}<br>
</p>
</body>
</html>`))

// metricsHandler refreshes the gauges from live engine state on every
// scrape rather than tracking them incrementally, since RunningCount
// and PendingCount are already cheap synchronized reads.
func (s *Server) metricsHandler() http.Handler {
	h := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buildsRunning.Set(float64(s.Engine.RunningCount()))
		buildsPending.Set(float64(s.Engine.PendingCount()))
		h.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	running := s.Engine.RunningBuilds()

	var fs unix.Statfs_t
	var diskSpace uint64
	if s.LogDir != "" {
		if err := unix.Statfs(s.LogDir, &fs); err == nil {
			diskSpace = fs.Bavail * uint64(fs.Bsize)
		}
	}

	var buf bytes.Buffer
	if err := statusTmpl.Execute(&buf, struct {
		Running      []record.Build
		Pending      int
		RunningCount int
		Repo         string
		DiskSpace    uint64
	}{
		Running:      running,
		Pending:      s.Engine.PendingCount(),
		RunningCount: len(running),
		Repo:         s.Repo,
		DiskSpace:    diskSpace,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	buf.WriteTo(w)
}
