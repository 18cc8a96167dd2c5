// Package server exposes the query engine over HTTP for long-lived
// deployments where the inventory is queried by other tooling.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/hostgrid/rackq/internal/inventory"
	"github.com/hostgrid/rackq/internal/pkg/rackql"
)

// QueryServer serves the inventory query API. The store and the membership
// context are swapped atomically on snapshot reload, so in-flight requests
// always see one consistent snapshot.
type QueryServer struct {
	mu    sync.RWMutex
	store *inventory.Store
	qctx  *rackql.Context

	reg       *rackql.Registry
	tokenHash []byte // bcrypt hash of the API token; empty disables auth
	logger    hclog.Logger

	srv     *http.Server
	parser  fastjson.ParserPool
	watcher *fsnotify.Watcher
}

// NewQueryServer builds a server over an already-loaded store. tokenHash is
// a bcrypt hash of the accepted bearer token; pass nil to serve unauthenticated.
func NewQueryServer(store *inventory.Store, reg *rackql.Registry, tokenHash []byte, logger hclog.Logger) *QueryServer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &QueryServer{
		store:     store,
		qctx:      rackql.BuildContext(store),
		reg:       reg,
		tokenHash: tokenHash,
		logger:    logger.Named("server"),
	}
}

// Handler returns the route table. Split out from Start so tests can drive
// it through httptest.
func (s *QueryServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/query", s.AuthMiddleware(http.HandlerFunc(s.handleQuery)))
	mux.Handle("/api/entities", s.AuthMiddleware(http.HandlerFunc(s.handleEntities)))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Start runs the HTTP server until Shutdown.
func (s *QueryServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and stops the snapshot watcher.
func (s *QueryServer) Shutdown(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// Watch reloads the snapshot at path whenever it changes on disk. A broken
// replacement snapshot is logged and skipped; the previous snapshot stays
// live.
func (s *QueryServer) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				s.reload(path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("snapshot watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (s *QueryServer) reload(path string) {
	store, err := inventory.Load(path)
	if err != nil {
		s.logger.Error("snapshot reload failed, keeping previous snapshot", "path", path, "error", err)
		return
	}
	qctx := rackql.BuildContext(store)

	s.mu.Lock()
	s.store = store
	s.qctx = qctx
	s.mu.Unlock()
	s.logger.Info("snapshot reloaded", "path", path, "entities", store.Len())
}

func (s *QueryServer) current() (*inventory.Store, *rackql.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store, s.qctx
}

// AuthMiddleware checks the bearer token (or ?token=) against the
// configured bcrypt hash. With no hash configured every request passes.
func (s *QueryServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokenHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="rackq"`)
			http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)); err != nil {
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type queryResponse struct {
	RequestID string             `json:"request_id"`
	Matches   []rackql.EntityKey `json:"matches"`
	Count     int                `json:"count"`
	Warning   string             `json:"warning,omitempty"`
}

// handleQuery processes POST /api/query with a {"query": "..."} body.
func (s *QueryServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	raw := string(v.GetStringBytes("query"))
	if raw == "" {
		http.Error(w, "Missing query", http.StatusBadRequest)
		return
	}

	node, leftover, err := rackql.ParseQuery(raw, s.reg)
	if err != nil {
		s.logger.Debug("query rejected", "request_id", requestID, "query", raw, "error", err)
		http.Error(w, fmt.Sprintf("Invalid query: %v", err), http.StatusBadRequest)
		return
	}

	resp := queryResponse{RequestID: requestID}
	if len(leftover) > 0 {
		resp.Warning = fmt.Sprintf("ignoring %d trailing token(s)", len(leftover))
		s.logger.Warn("query has trailing tokens", "request_id", requestID, "query", raw)
	}

	store, qctx := s.current()
	matches := rackql.Run(node, rackql.NewSet(store.Keys()...), qctx, store)
	resp.Matches = matches.SortedKeys()
	resp.Count = len(resp.Matches)

	s.logger.Info("query served", "request_id", requestID, "matches", resp.Count)
	writeJSON(w, resp)
}

// handleEntities lists every entity key in the current snapshot.
func (s *QueryServer) handleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	store, _ := s.current()
	writeJSON(w, map[string]any{"entities": store.Keys()})
}

func (s *QueryServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	store, _ := s.current()
	writeJSON(w, map[string]any{"status": "ok", "entities": store.Len()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
