package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/yourorg/stockcast/internal/domain"
	"github.com/yourorg/stockcast/internal/gateway"
	"github.com/yourorg/stockcast/internal/observability/metrics"
	"github.com/yourorg/stockcast/internal/requestid"
	"github.com/yourorg/stockcast/internal/sessionstore"
)

// PlaceholderStoreID is used when the probe succeeds but no store id was saved with the cookie
const PlaceholderStoreID = "current_store"

var (
	// ErrBusy is returned when a mutating operation is already in flight
	ErrBusy = errors.New("session: another operation is in progress")
	// ErrNotStarted is returned before the startup probe has resolved
	ErrNotStarted = errors.New("session: startup probe has not completed")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("session: closed")
)

// Gateway is the part of the request gateway the session depends on
type Gateway interface {
	Login(ctx context.Context, creds domain.Credentials) error
	Register(ctx context.Context, creds domain.Credentials) error
	Logout(ctx context.Context) error
	GetDashboardData(ctx context.Context) (string, error)
}

// CookieJar exposes the gateway's session cookies for persistence
type CookieJar interface {
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	ClearCookies()
}

// Auditor receives session lifecycle events
type Auditor interface {
	LogLogin(ctx context.Context, storeID, status, details string)
	LogRegister(ctx context.Context, storeID, status, details string)
	LogLogout(ctx context.Context, storeID, status, details string)
	LogProbe(ctx context.Context, storeID, status, details string)
}

// Option configures a Store
type Option func(*Store)

// WithPersistence saves the cookie session after login and restores it before the startup probe
func WithPersistence(jar CookieJar, persist sessionstore.Store) Option {
	return func(s *Store) {
		s.jar = jar
		s.persist = persist
	}
}

// WithAuditor sets the sink for lifecycle events, including swallowed logout failures
func WithAuditor(a Auditor) Option {
	return func(s *Store) { s.audit = a }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is the single source of truth for "is a session active" and "which store is acting".
// Mutating operations are mutually exclusive; a second one while another is in flight gets ErrBusy.
type Store struct {
	gw      Gateway
	jar     CookieJar
	persist sessionstore.Store
	audit   Auditor
	logger  *slog.Logger

	op sync.Mutex

	mu      sync.RWMutex
	state   State
	storeID string
	loading bool
	closed  bool
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore creates a store in the Unknown state. Loading stays true until Start
// has run the startup probe.
func NewStore(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:      gw,
		state:   StateUnknown,
		loading: true,
		subs:    map[int]chan Snapshot{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.audit == nil {
		s.audit = nopAuditor{}
	}
	metrics.SetSessionState(s.state.String())
	return s
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// StoreID returns the acting store, or "" when unauthenticated
func (s *Store) StoreID() string {
	return s.Snapshot().StoreID
}

// IsAuthenticated reports whether a session is active
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().Authenticated()
}

// Loading reports whether the startup probe is pending or a login/register/logout call is in flight
func (s *Store) Loading() bool {
	return s.Snapshot().Loading
}

// Start runs the startup probe: Unknown becomes Authenticated when the dashboard request
// succeeds and Unauthenticated otherwise. Probe failure is an outcome, not an error.
func (s *Store) Start(ctx context.Context) (Snapshot, error) {
	if err := s.acquire(); err != nil {
		return s.Snapshot(), err
	}
	defer s.op.Unlock()

	if s.Snapshot().State != StateUnknown {
		return s.Snapshot(), ErrAlreadyStarted
	}

	release := s.beginLoading()
	defer release()

	ctx, _ = requestid.Ensure(ctx)
	storeID := s.restore(ctx)

	if _, err := s.gw.GetDashboardData(ctx); err != nil {
		s.logger.Info("no active session", slog.String("error", err.Error()))
		s.audit.LogProbe(ctx, storeID, "failure", err.Error())
		if !gateway.IsNetworkError(err) {
			s.forget(ctx)
		}
		s.transition(StateUnauthenticated, "")
		return s.Snapshot(), nil
	}

	s.audit.LogProbe(ctx, storeID, "success", "")
	s.transition(StateAuthenticated, storeID)
	return s.Snapshot(), nil
}

// Login authenticates as creds.StoreID. On failure the state is left as it was and the
// gateway error is returned unchanged. The password is not retained.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) error {
	if err := s.acquireStarted(); err != nil {
		return err
	}
	defer s.op.Unlock()

	release := s.beginLoading()
	defer release()

	ctx, _ = requestid.Ensure(ctx)
	if err := s.gw.Login(ctx, creds); err != nil {
		s.audit.LogLogin(ctx, creds.StoreID, "failure", err.Error())
		return err
	}

	s.transition(StateAuthenticated, creds.StoreID)
	s.audit.LogLogin(ctx, creds.StoreID, "success", "")

	if s.persist != nil && s.jar != nil {
		if err := s.persist.Save(ctx, sessionstore.NewRecord(creds.StoreID, s.jar.Cookies())); err != nil {
			s.logger.Warn("failed to persist session", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Register creates an account. It never changes the session state.
func (s *Store) Register(ctx context.Context, creds domain.Credentials) error {
	if err := s.acquireStarted(); err != nil {
		return err
	}
	defer s.op.Unlock()

	release := s.beginLoading()
	defer release()

	ctx, _ = requestid.Ensure(ctx)
	if err := s.gw.Register(ctx, creds); err != nil {
		s.audit.LogRegister(ctx, creds.StoreID, "failure", err.Error())
		return err
	}
	s.audit.LogRegister(ctx, creds.StoreID, "success", "")
	return nil
}

// Logout asks the backend to end the session and always ends it locally.
// A failed backend call is reported to the auditor and not returned.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.acquireStarted(); err != nil {
		return err
	}
	defer s.op.Unlock()

	release := s.beginLoading()
	defer release()

	ctx, _ = requestid.Ensure(ctx)
	storeID := s.StoreID()
	if err := s.gw.Logout(ctx); err != nil {
		s.logger.Warn("logout request failed, clearing local session anyway", slog.String("error", err.Error()))
		s.audit.LogLogout(ctx, storeID, "failure", err.Error())
	} else {
		s.audit.LogLogout(ctx, storeID, "success", "")
	}

	s.forget(ctx)
	s.transition(StateUnauthenticated, "")
	return nil
}

// Refresh re-probes an authenticated session. A backend rejection ends the session;
// a network error leaves it in place and is returned. It does not toggle Loading.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.acquireStarted(); err != nil {
		return err
	}
	defer s.op.Unlock()

	snap := s.Snapshot()
	if snap.State != StateAuthenticated {
		return nil
	}

	ctx, _ = requestid.Ensure(ctx)
	_, err := s.gw.GetDashboardData(ctx)
	if err == nil {
		return nil
	}
	if gateway.IsNetworkError(err) {
		return err
	}

	s.logger.Info("session expired", slog.String("store_id", snap.StoreID), slog.String("error", err.Error()))
	s.audit.LogProbe(ctx, snap.StoreID, "expired", err.Error())
	s.forget(ctx)
	s.transition(StateUnauthenticated, "")
	return nil
}

// Close ends every subscription. Later operations return ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Store) acquire() error {
	if !s.op.TryLock() {
		return ErrBusy
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		s.op.Unlock()
		return ErrClosed
	}
	return nil
}

func (s *Store) acquireStarted() error {
	if err := s.acquire(); err != nil {
		return err
	}
	if s.Snapshot().State == StateUnknown {
		s.op.Unlock()
		return ErrNotStarted
	}
	return nil
}

// restore loads a saved session into the jar and returns the store id to assume on probe success
func (s *Store) restore(ctx context.Context) string {
	if s.persist == nil || s.jar == nil {
		return PlaceholderStoreID
	}
	rec, err := s.persist.Load(ctx)
	if err != nil {
		if !errors.Is(err, sessionstore.ErrNotFound) {
			s.logger.Warn("failed to load saved session", slog.String("error", err.Error()))
		}
		return PlaceholderStoreID
	}
	s.jar.SetCookies(rec.HTTPCookies())
	if rec.StoreID == "" {
		return PlaceholderStoreID
	}
	return rec.StoreID
}

// forget drops the cookie session locally and in persistence
func (s *Store) forget(ctx context.Context) {
	if s.jar != nil {
		s.jar.ClearCookies()
	}
	if s.persist != nil {
		if err := s.persist.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear saved session", slog.String("error", err.Error()))
		}
	}
}

// beginLoading raises the loading flag; the returned func lowers it exactly once
func (s *Store) beginLoading() func() {
	s.mu.Lock()
	s.loading = true
	s.notifyLocked()
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.loading = false
			s.notifyLocked()
			s.mu.Unlock()
		})
	}
}

func (s *Store) transition(to State, storeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	s.state = to
	s.storeID = storeID
	if from != to {
		metrics.ObserveSessionTransition(from.String(), to.String())
		metrics.SetSessionState(to.String())
		s.logger.Debug("session transition",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.String("store_id", storeID),
		)
	}
	s.notifyLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, StoreID: s.storeID, Loading: s.loading}
}

type nopAuditor struct{}

func (nopAuditor) LogLogin(context.Context, string, string, string)    {}
func (nopAuditor) LogRegister(context.Context, string, string, string) {}
func (nopAuditor) LogLogout(context.Context, string, string, string)   {}
func (nopAuditor) LogProbe(context.Context, string, string, string)    {}
