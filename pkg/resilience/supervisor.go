package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ============================================================================
// Child specification
// ============================================================================

// RestartType controls when a supervised child is restarted after exit.
type RestartType string

const (
	// RestartPermanent children are always restarted.
	RestartPermanent RestartType = "permanent"

	// RestartTemporary children are never restarted.
	RestartTemporary RestartType = "temporary"

	// RestartTransient children are restarted only after an abnormal
	// exit (non-nil error).
	RestartTransient RestartType = "transient"
)

// Strategy selects which children are affected when one child fails.
type Strategy string

const (
	// OneForOne restarts only the failed child.
	OneForOne Strategy = "one_for_one"

	// OneForAll stops all children in reverse start order, then
	// restarts all of them in declared order.
	OneForAll Strategy = "one_for_all"

	// RestForOne stops the failed child and every child started after
	// it, then restarts that suffix in declared order.
	RestForOne Strategy = "rest_for_one"
)

// ChildSpec declares one supervised child. Start must block until the
// child exits and honor ctx cancellation for graceful shutdown.
type ChildSpec struct {
	ID string

	// Start runs the child until completion. A nil return is a normal
	// exit; anything else is abnormal.
	Start func(ctx context.Context) error

	// Restart controls restart eligibility. Default: permanent.
	Restart RestartType

	// Shutdown is the grace period allowed between cancellation and
	// exit before the stop is treated as forced. Default: 5s.
	Shutdown time.Duration
}

func (s ChildSpec) validate() error {
	if s.ID == "" {
		return fmt.Errorf("child spec requires an id")
	}
	if s.Start == nil {
		return fmt.Errorf("child %q requires a start function", s.ID)
	}
	switch s.Restart {
	case "", RestartPermanent, RestartTemporary, RestartTransient:
	default:
		return fmt.Errorf("child %q has unknown restart type %q", s.ID, s.Restart)
	}
	return nil
}

// ============================================================================
// Events
// ============================================================================

// SupervisorEventType identifies a supervision lifecycle event.
type SupervisorEventType string

const (
	EventChildStarted   SupervisorEventType = "child_started"
	EventChildExited    SupervisorEventType = "child_exited"
	EventChildRestarted SupervisorEventType = "child_restarted"
	EventChildStopped   SupervisorEventType = "child_stopped"

	// EventRestartBudgetExceeded is the escalation event: the child was
	// abandoned because the sliding-window restart budget ran out.
	EventRestartBudgetExceeded SupervisorEventType = "restart_budget_exceeded"

	EventSupervisorStopped SupervisorEventType = "supervisor_stopped"
)

// SupervisorEvent describes one supervision state change.
type SupervisorEvent struct {
	Type    SupervisorEventType
	ChildID string
	Err     error
	Time    time.Time
}

// ============================================================================
// Supervisor
// ============================================================================

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Strategy applied when a child fails. Default: one_for_one.
	Strategy Strategy `yaml:"strategy"`

	// MaxRestarts within MaxSeconds before escalation. Defaults: 3
	// restarts within 5 seconds.
	MaxRestarts int `yaml:"max_restarts"`
	MaxSeconds  int `yaml:"max_seconds"`

	// EventBuffer sizes the event channel. Events are dropped rather
	// than blocking supervision when the consumer falls behind.
	// Default: 32
	EventBuffer int `yaml:"event_buffer"`
}

// DefaultSupervisorConfig returns the default supervisor configuration.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Strategy:    OneForOne,
		MaxRestarts: 3,
		MaxSeconds:  5,
		EventBuffer: 32,
	}
}

const defaultShutdownGrace = 5 * time.Second

type restartRecord struct {
	at      time.Time
	childID string
}

type childState struct {
	spec    ChildSpec
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	// gen distinguishes runs; exits from a superseded run are ignored.
	gen int
}

type childExit struct {
	id  string
	gen int
	err error
}

// Supervisor starts children in declared order, watches their exits, and
// restarts them according to its strategy and each child's restart type.
// All supervision decisions run on a single goroutine, so strategy
// handling for one exit never interleaves with another.
type Supervisor struct {
	config SupervisorConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	order    []string
	children map[string]*childState
	history  []restartRecord
	started  bool
	stopped  bool

	baseCtx  context.Context
	exits    chan childExit
	events   chan SupervisorEvent
	stopCh   chan struct{}
	loopDone chan struct{}
}

// NewSupervisor creates a supervisor. Children are added with AddChild
// before Start.
func NewSupervisor(cfg SupervisorConfig, logger *slog.Logger) *Supervisor {
	def := DefaultSupervisorConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = def.MaxRestarts
	}
	if cfg.MaxSeconds <= 0 {
		cfg.MaxSeconds = def.MaxSeconds
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		config:   cfg,
		logger:   logger.With("component", "supervisor"),
		now:      time.Now,
		children: make(map[string]*childState),
		exits:    make(chan childExit, 16),
		events:   make(chan SupervisorEvent, cfg.EventBuffer),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// AddChild registers a child. Adding after Start is an error.
func (s *Supervisor) AddChild(spec ChildSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	if spec.Restart == "" {
		spec.Restart = RestartPermanent
	}
	if spec.Shutdown <= 0 {
		spec.Shutdown = defaultShutdownGrace
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("cannot add child %q after start", spec.ID)
	}
	if _, exists := s.children[spec.ID]; exists {
		return fmt.Errorf("duplicate child id %q", spec.ID)
	}
	s.children[spec.ID] = &childState{spec: spec}
	s.order = append(s.order, spec.ID)
	return nil
}

// Events returns the supervision event stream.
func (s *Supervisor) Events() <-chan SupervisorEvent {
	return s.events
}

// Start launches all children in declared order and begins supervising.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started")
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrSupervisorStopped
	}
	s.started = true
	s.baseCtx = ctx

	for _, id := range s.order {
		s.startChildLocked(s.children[id])
	}
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop shuts down all children in reverse start order and stops
// supervising. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	if !started {
		return
	}
	close(s.stopCh)
	<-s.loopDone
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.loopDone)

	for {
		select {
		case <-ctx.Done():
			s.shutdownAll()
			return
		case <-s.stopCh:
			s.shutdownAll()
			return
		case exit := <-s.exits:
			s.handleExit(exit)
		}
	}
}

func (s *Supervisor) shutdownAll() {
	s.mu.Lock()
	s.stopped = true
	for i := len(s.order) - 1; i >= 0; i-- {
		st := s.children[s.order[i]]
		if st.running {
			s.stopChildLocked(st)
		}
	}
	s.mu.Unlock()
	s.emit(SupervisorEvent{Type: EventSupervisorStopped, Time: s.now()})
}

// startChildLocked launches a new run of the child. Callers hold s.mu.
func (s *Supervisor) startChildLocked(st *childState) {
	st.gen++
	st.running = true
	st.done = make(chan struct{})

	childCtx, cancel := context.WithCancel(s.baseCtx)
	st.cancel = cancel

	gen := st.gen
	id := st.spec.ID
	start := st.spec.Start
	done := st.done

	go func() {
		err := start(childCtx)
		close(done)
		select {
		case s.exits <- childExit{id: id, gen: gen, err: err}:
		case <-s.loopDone:
		}
	}()

	s.logger.Info("child started", "child", id)
	s.emit(SupervisorEvent{Type: EventChildStarted, ChildID: id, Time: s.now()})
}

// stopChildLocked cancels the child and waits out its shutdown grace.
// Exceeding the grace period abandons the child's goroutine (forced
// stop). Callers hold s.mu.
func (s *Supervisor) stopChildLocked(st *childState) {
	if !st.running {
		return
	}
	st.cancel()

	select {
	case <-st.done:
	case <-time.After(st.spec.Shutdown):
		s.logger.Warn("child exceeded shutdown grace, forcing stop",
			"child", st.spec.ID, "grace", st.spec.Shutdown)
	}

	// Invalidate the run so a late exit is not mistaken for a failure.
	st.gen++
	st.running = false
	s.emit(SupervisorEvent{Type: EventChildStopped, ChildID: st.spec.ID, Time: s.now()})
}

func (s *Supervisor) handleExit(exit childExit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.children[exit.id]
	if !ok || exit.gen != st.gen || s.stopped {
		return
	}
	st.running = false

	if exit.err != nil {
		s.logger.Warn("child exited abnormally", "child", exit.id, "error", exit.err)
	} else {
		s.logger.Info("child exited", "child", exit.id)
	}
	s.emit(SupervisorEvent{Type: EventChildExited, ChildID: exit.id, Err: exit.err, Time: s.now()})

	switch s.config.Strategy {
	case OneForAll:
		s.restartAllLocked(st, exit.err)
	case RestForOne:
		s.restartSuffixLocked(st, exit.err)
	default:
		s.restartOneLocked(st, exit.err)
	}
}

func (s *Supervisor) restartOneLocked(st *childState, exitErr error) {
	if !shouldRestart(st.spec.Restart, exitErr) {
		return
	}
	s.restartLocked(st)
}

func (s *Supervisor) restartAllLocked(failed *childState, exitErr error) {
	for i := len(s.order) - 1; i >= 0; i-- {
		st := s.children[s.order[i]]
		if st != failed {
			s.stopChildLocked(st)
		}
	}
	for _, id := range s.order {
		st := s.children[id]
		if st == failed {
			if shouldRestart(st.spec.Restart, exitErr) {
				s.restartLocked(st)
			}
		} else if st.spec.Restart != RestartTemporary {
			s.restartLocked(st)
		}
	}
}

func (s *Supervisor) restartSuffixLocked(failed *childState, exitErr error) {
	idx := -1
	for i, id := range s.order {
		if s.children[id] == failed {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	for i := len(s.order) - 1; i > idx; i-- {
		s.stopChildLocked(s.children[s.order[i]])
	}
	for i := idx; i < len(s.order); i++ {
		st := s.children[s.order[i]]
		if st == failed {
			if shouldRestart(st.spec.Restart, exitErr) {
				s.restartLocked(st)
			}
		} else if st.spec.Restart != RestartTemporary {
			s.restartLocked(st)
		}
	}
}

// restartLocked applies the sliding-window restart budget, then either
// restarts the child or escalates by abandoning it.
func (s *Supervisor) restartLocked(st *childState) {
	now := s.now()
	window := time.Duration(s.config.MaxSeconds) * time.Second
	kept := s.history[:0]
	for _, r := range s.history {
		if now.Sub(r.at) <= window {
			kept = append(kept, r)
		}
	}
	s.history = kept

	if len(s.history) >= s.config.MaxRestarts {
		s.logger.Error("restart budget exceeded, abandoning child",
			"child", st.spec.ID,
			"max_restarts", s.config.MaxRestarts,
			"max_seconds", s.config.MaxSeconds)
		s.emit(SupervisorEvent{
			Type:    EventRestartBudgetExceeded,
			ChildID: st.spec.ID,
			Err:     fmt.Errorf("restart budget exceeded: %d restarts within %ds", s.config.MaxRestarts, s.config.MaxSeconds),
			Time:    now,
		})
		return
	}

	s.history = append(s.history, restartRecord{at: now, childID: st.spec.ID})
	s.startChildLocked(st)
	s.emit(SupervisorEvent{Type: EventChildRestarted, ChildID: st.spec.ID, Time: now})
}

func (s *Supervisor) emit(ev SupervisorEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

func shouldRestart(rt RestartType, exitErr error) bool {
	switch rt {
	case RestartTemporary:
		return false
	case RestartTransient:
		return exitErr != nil && !errors.Is(exitErr, context.Canceled)
	default:
		return true
	}
}
