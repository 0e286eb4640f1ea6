// Package httpapi exposes a read-only HTTP front end over the wayback
// facade: GET /search, GET /memento, and GET /metrics. It is a demo
// surface for waybackctl serve, not part of the core library.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	wayback "github.com/edgi-govdata-archiving/wayback-sub000"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/inboundlimit"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/waybacktime"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

// Server wraps a chi router bound to a wayback.Client.
type Server struct {
	client  *wayback.Client
	limiter *inboundlimit.Limiter
	router  chi.Router
}

// New builds a Server. limiter may be nil, in which case only the
// router-wide per-IP httprate throttling applies.
func New(client *wayback.Client, limiter *inboundlimit.Limiter) *Server {
	s := &Server{client: client, limiter: limiter}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}
	r.Use(httprate.LimitByIP(20, time.Minute))

	r.Get("/search", s.handleSearch)
	r.Get("/memento", s.handleMemento)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := wblog.WithContext(r.Context())
		next.ServeHTTP(w, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleSearch serves GET /search?url=...&limit=...&from=...&to=...,
// returning the full (materialized) result set as a JSON array. Large
// searches should use the Go Client.Search iterator directly rather than
// this demo endpoint.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	targetURL := r.URL.Query().Get("url")
	if targetURL == "" {
		writeError(w, http.StatusBadRequest, errMissingParam("url"))
		return
	}

	opts := wayback.DefaultSearchOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errInvalidParam("limit", v))
			return
		}
		opts.Limit = n
	}
	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"from", &opts.From}, {"to", &opts.To}} {
		if v := r.URL.Query().Get(bound.name); v != "" {
			ts, err := waybacktime.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, errInvalidParam(bound.name, v))
				return
			}
			*bound.dst = ts
		}
	}

	iter := s.client.Search(r.Context(), targetURL, opts)
	records := make([]wayback.CaptureRecord, 0, 64)
	for {
		record, ok, err := iter.Next()
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		if !ok {
			break
		}
		records = append(records, record)
	}

	writeJSON(w, http.StatusOK, records)
}

// handleMemento serves GET /memento?url=...&timestamp=YYYYMMDDhhmmss.
func (s *Server) handleMemento(w http.ResponseWriter, r *http.Request) {
	targetURL := r.URL.Query().Get("url")
	tsRaw := r.URL.Query().Get("timestamp")
	if targetURL == "" || tsRaw == "" {
		writeError(w, http.StatusBadRequest, errMissingParam("url and timestamp"))
		return
	}

	ts, err := time.Parse("20060102150405", tsRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidParam("timestamp", tsRaw))
		return
	}

	memento, err := s.client.GetMementoURL(r.Context(), targetURL, ts)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	defer memento.Close()

	writeJSON(w, http.StatusOK, map[string]any{
		"url":        memento.URL,
		"mementoUrl": memento.MementoURL,
		"timestamp":  memento.Timestamp,
		"statusCode": memento.StatusCode,
	})
}

// Run starts the HTTP server on addr until ctx is canceled.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
