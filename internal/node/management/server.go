// Package management implements the node's management RPC surface
// (NodeManagementRPCEndpoint): a small token-gated HTTP/JSON API with
// ping, version and tasks routes, used by the CLI's ping subcommand and by
// operators polling node health, grounded on the same chi+hexjson wiring as the committer
// package.
package management

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	json "github.com/nikkolasg/hexjson"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/core"
	"github.com/arpa-network/arpa-node/internal/node/scheduler"
)

// Version is set at build time via -ldflags; "dev" when built without it.
var Version = "dev"

// TaskReporter is the narrow surface the scheduler exposes for
// introspection.
type TaskReporter interface {
	Tasks() []scheduler.TaskStatus
}

const shutdownGrace = 5 * time.Second

type Server struct {
	listenAddr string
	token      string
	scheduler  TaskReporter
	log        lg.Logger
	mux        http.Handler
}

func NewServer(listenAddr, token string, scheduler TaskReporter, log lg.Logger) *Server {
	if log == nil {
		log = lg.Default()
	}
	s := &Server{listenAddr: listenAddr, token: token, scheduler: scheduler, log: log}

	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Get("/management/v1/ping", s.handlePing)
	r.Get("/management/v1/version", s.handleVersion)
	r.Get("/management/v1/tasks", s.handleTasks)
	s.mux = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Type satisfies scheduler.RPCServer.
func (s *Server) Type() core.RpcServerType { return core.RpcServerManagement }

// Serve runs the management HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{Addr: s.listenAddr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"version": Version})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.scheduler.Tasks())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorw("management server: write response", "err", err)
	}
}
