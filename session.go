package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is a state in the per-connection protocol FSM :
//
//	New -> Initializing -> Ready -> Closing -> Closed
//
// There are no backward transitions except to Closed from any state.
type SessionState int

const (
	StateNew SessionState = iota
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateInitializing:
		return "Initializing"
	case StateReady:
		return "Ready"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// validTransitions encodes the FSM's allowed edges. Closed is reachable from
// every state (transport close / idle timeout / protocol violation); all
// other moves are strictly forward.
var validTransitions = map[SessionState]map[SessionState]bool{
	StateNew:          {StateInitializing: true, StateClosed: true},
	StateInitializing: {StateReady: true, StateClosed: true},
	StateReady:        {StateClosing: true, StateClosed: true},
	StateClosing:      {StateClosed: true},
	StateClosed:       {},
}

// ErrInvalidTransition is returned when a caller attempts to move a session
// to a state the FSM does not allow from its current state.
var ErrInvalidTransition = fmt.Errorf("invalid session state transition")

// outboundQueueSize bounds how many framed messages a session buffers for a
// slow or disconnected peer before Enqueue starts rejecting.
const outboundQueueSize = 64

// Session is a single logical MCP conversation. It is created
// by a transport on the first message and mutated only through its own
// methods, which serialize access under an internal lock.
type Session struct {
	ID              string
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
	CreatedAt       time.Time
	AuthTokenRef    string // rate-limit key when set; no transport sets it, so the dispatcher keys on ID

	mu         sync.Mutex
	state      SessionState
	lastSeenAt time.Time
	cancels    map[interface{}]context.CancelFunc
	outbound   chan *MCPResponse
	closed     bool
}

// newSession constructs a Session in state New with a synthesized id.
func newSession() *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		lastSeenAt: now,
		state:      StateNew,
		cancels:    make(map[interface{}]context.CancelFunc),
		outbound:   make(chan *MCPResponse, outboundQueueSize),
	}
}

// State returns the session's current FSM state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to newState, enforcing the FSM. Touches
// last-seen time on success, since a transition always accompanies traffic.
func (s *Session) Transition(newState SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == newState {
		return nil
	}
	if !validTransitions[s.state][newState] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, newState)
	}
	s.state = newState
	s.lastSeenAt = time.Now()
	if newState == StateClosed {
		s.closeLocked()
	}
	return nil
}

// Touch records inbound or outbound traffic for idle-timeout purposes.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeenAt = time.Now()
}

// IdleFor reports how long the session has seen no traffic.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeenAt)
}

// RegisterCancel associates a request id with its cancel function, so the
// session can cooperatively cancel it on $/cancelRequest or on close.
func (s *Session) RegisterCancel(id interface{}, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancels == nil {
		s.cancels = make(map[interface{}]context.CancelFunc)
	}
	s.cancels[id] = cancel
}

// ReleaseCancel removes a completed request's cancel function.
func (s *Session) ReleaseCancel(id interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

// Cancel fires the cancel function registered for id, if any. Used for
// $/cancelRequest.
func (s *Session) Cancel(id interface{}) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll fires every in-flight request's cancel function, used when the
// session enters Closing. Tools that do not observe it within the grace
// period are abandoned by the caller (their results are simply discarded,
// since this session never reads them again).
func (s *Session) CancelAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.cancels))
	for _, c := range s.cancels {
		cancels = append(cancels, c)
	}
	s.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Enqueue places a response frame on the outbound queue for a transport to
// drain (SSE push, stdio write). Returns false if the queue is full or the
// session is closed; the caller should log and drop rather than block.
func (s *Session) Enqueue(resp *MCPResponse) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	select {
	case s.outbound <- resp:
		return true
	default:
		return false
	}
}

// Outbound exposes the receive side of the outbound queue for a transport's
// drain loop.
func (s *Session) Outbound() <-chan *MCPResponse {
	return s.outbound
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

// SessionManager owns the process-wide session map, mutated by transports
// under a map-wide lock; individual sessions use their own internal lock
// for state transitions. It sweeps idle sessions on a timer.
type SessionManager struct {
	mu               sync.RWMutex
	sessions         map[string]*Session
	idleTimeout      time.Duration
	cancelGrace      time.Duration
	logger           *slog.Logger
	stop             chan struct{}
	stopOnce         sync.Once
}

// NewSessionManager creates a SessionManager and starts its idle sweeper.
// idleTimeout and cancelGrace default to 600s/5s if zero.
func NewSessionManager(idleTimeout, cancelGrace time.Duration, logger *slog.Logger) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = 600 * time.Second
	}
	if cancelGrace <= 0 {
		cancelGrace = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	sm := &SessionManager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		cancelGrace: cancelGrace,
		logger:      logger,
		stop:        make(chan struct{}),
	}
	go sm.sweepLoop()
	return sm
}

// Create allocates a new session in state New and registers it.
func (sm *SessionManager) Create() *Session {
	sess := newSession()
	sm.mu.Lock()
	sm.sessions[sess.ID] = sess
	sm.mu.Unlock()
	return sess
}

// Get returns the session for id, if it is still tracked.
func (sm *SessionManager) Get(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[id]
	return sess, ok
}

// Delete removes a session from tracking, transitioning it to Closed first.
func (sm *SessionManager) Delete(id string) {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if ok {
		sess.CancelAll()
		_ = sess.Transition(StateClosing)
		_ = sess.Transition(StateClosed)
	}
}

// Stop halts the idle sweeper. Safe to call more than once.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

func (sm *SessionManager) sweepLoop() {
	ticker := time.NewTicker(sm.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			sm.sweepIdle()
		}
	}
}

func (sm *SessionManager) sweepIdle() {
	sm.mu.RLock()
	idle := make([]*Session, 0)
	for _, sess := range sm.sessions {
		if sess.State() != StateClosed && sess.IdleFor() >= sm.idleTimeout {
			idle = append(idle, sess)
		}
	}
	sm.mu.RUnlock()

	for _, sess := range idle {
		sm.logger.Info("session idle timeout", "session_id", sess.ID)
		sess.CancelAll()
		_ = sess.Transition(StateClosing)
		time.AfterFunc(sm.cancelGrace, func() {
			_ = sess.Transition(StateClosed)
			sm.Delete(sess.ID)
		})
	}
}

// Close transitions a session through Closing to Closed, giving in-flight
// tools cancelGrace to observe the cancel signal before they're abandoned.
func (sm *SessionManager) Close(sess *Session) {
	if sess.State() == StateClosed {
		return
	}
	sess.CancelAll()
	_ = sess.Transition(StateClosing)
	time.AfterFunc(sm.cancelGrace, func() {
		_ = sess.Transition(StateClosed)
		sm.Delete(sess.ID)
	})
}
