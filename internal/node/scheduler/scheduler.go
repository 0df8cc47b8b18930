// Package scheduler is the node's task supervisor (C8): it owns every
// long-lived goroutine in the process — listeners and RPC servers — and
// restarts one that exits, waiting a fixed restart backoff scaled by
// core.Jitter (the same jitter the listener poll loop uses). Subscribers
// are not scheduled tasks themselves (they run synchronously inside
// queue.EventQueue.Publish); the scheduler still records their
// registration in its task table so the management RPC surface can report
// a single, complete view of everything the node is doing.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node/core"
)

// Listener is the subset of listener.Listener the scheduler depends on;
// declared locally to avoid an import cycle back into the listener
// package.
type Listener interface {
	Start(ctx context.Context) error
	Type() core.ListenerType
}

// RPCServer is a long-lived server task (committer or management) the
// scheduler starts once and restarts if it ever returns.
type RPCServer interface {
	Type() core.RpcServerType
	Serve(ctx context.Context) error
}

// taskStatus is the scheduler's live view of one task, surfaced read-only
// through Tasks().
type taskStatus struct {
	Type     core.TaskType
	Running  bool
	Restarts int
	LastErr  error
}

// TaskStatus is the management RPC surface's view of one task: the same
// data as taskStatus, with LastErr flattened to a string so callers don't
// need to import this package's error values.
type TaskStatus struct {
	Task     string
	Running  bool
	Restarts int
	LastErr  string
}

// Scheduler supervises every registered Listener and RPCServer: each runs
// in its own goroutine under Start's errgroup, and a task that returns
// (whether via error or a clean ctx.Err() on shutdown) is restarted with
// a jittered backoff unless the parent context is done.
type Scheduler struct {
	mu        sync.RWMutex
	listeners []Listener
	servers   []RPCServer
	statuses  map[core.TaskType]*taskStatus
	restartBackoff time.Duration
	log       lg.Logger
}

func New(log lg.Logger, restartBackoff time.Duration) *Scheduler {
	if log == nil {
		log = lg.Default()
	}
	if restartBackoff <= 0 {
		restartBackoff = time.Second
	}
	return &Scheduler{
		statuses:       map[core.TaskType]*taskStatus{},
		restartBackoff: restartBackoff,
		log:            log,
	}
}

// RegisterListener adds l to the set of tasks Start will supervise.
func (s *Scheduler) RegisterListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
	s.statuses[core.ListenerTask(l.Type())] = &taskStatus{Type: core.ListenerTask(l.Type())}
}

// RegisterRPCServer adds srv to the set of tasks Start will supervise.
func (s *Scheduler) RegisterRPCServer(srv RPCServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = append(s.servers, srv)
	s.statuses[core.RpcServerTask(srv.Type())] = &taskStatus{Type: core.RpcServerTask(srv.Type())}
}

// RecordSubscriber registers a subscriber's type in the task table purely
// for introspection; subscribers are invoked synchronously by the event
// queue and are never spawned or restarted by the scheduler.
func (s *Scheduler) RecordSubscriber(t core.SubscriberType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt := core.SubscriberTask(t)
	if _, ok := s.statuses[tt]; !ok {
		s.statuses[tt] = &taskStatus{Type: tt, Running: true}
	}
}

// Tasks returns a point-in-time snapshot of every registered task's
// status, for the management RPC surface.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		lastErr := ""
		if st.LastErr != nil {
			lastErr = st.LastErr.Error()
		}
		out = append(out, TaskStatus{Task: st.Type.String(), Running: st.Running, Restarts: st.Restarts, LastErr: lastErr})
	}
	return out
}

// Start runs every registered listener and RPC server until ctx is
// cancelled. It returns once every task has exited for good (only
// possible once ctx.Done() fires, since a task that errors is always
// restarted).
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	servers := append([]RPCServer(nil), s.servers...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l := l
		taskType := core.ListenerTask(l.Type())
		g.Go(func() error {
			s.supervise(ctx, taskType, func(ctx context.Context) error { return l.Start(ctx) })
			return nil
		})
	}
	for _, srv := range servers {
		srv := srv
		taskType := core.RpcServerTask(srv.Type())
		g.Go(func() error {
			s.supervise(ctx, taskType, func(ctx context.Context) error { return srv.Serve(ctx) })
			return nil
		})
	}

	return g.Wait()
}

// supervise runs fn, marking taskType running for the duration; on a
// non-context-cancellation error it logs, records the restart and backs
// off (jittered) before trying again. It returns only once ctx is done.
func (s *Scheduler) supervise(ctx context.Context, taskType core.TaskType, fn func(context.Context) error) {
	for {
		s.setRunning(taskType, true)
		err := fn(ctx)
		s.setRunning(taskType, false)

		if ctx.Err() != nil {
			return
		}

		s.recordRestart(taskType, err)
		s.log.Errorw("scheduler: task exited, restarting", "task", taskType.String(), "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(core.Jitter(s.restartBackoff)):
		}
	}
}

func (s *Scheduler) setRunning(t core.TaskType, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[t]; ok {
		st.Running = running
	}
}

func (s *Scheduler) recordRestart(t core.TaskType, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[t]; ok {
		st.Restarts++
		st.LastErr = err
	}
}
