package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/stockcast/internal/domain"
	"github.com/yourorg/stockcast/internal/featureflags"
	"github.com/yourorg/stockcast/internal/gateway"
	"github.com/yourorg/stockcast/internal/observability/metrics"
	"github.com/yourorg/stockcast/internal/reliability/ratelimit"
	"github.com/yourorg/stockcast/pkg/cache"
)

var (
	// ErrGenerationInProgress is returned while another generation call for the same store is in flight
	ErrGenerationInProgress = errors.New("prediction generation already in progress")
	// ErrDebounced is returned when an expensive call repeats inside the debounce window
	ErrDebounced = errors.New("called again too soon, try later")
	// ErrNoSession is returned when no store is signed in
	ErrNoSession = errors.New("not signed in")
)

const (
	predictionsPrefix = "predictions:"
	transfersPrefix   = "transfers:"
)

// Backend is the part of the gateway the forecast service drives
type Backend interface {
	GeneratePredictions(ctx context.Context) ([]byte, error)
	GetPredictions(ctx context.Context) ([]byte, error)
	GetTransferSuggestions(ctx context.Context) ([]byte, error)
	UploadInventory(ctx context.Context, filename string, r io.Reader) error
	UploadSales(ctx context.Context, filename string, r io.Reader) error
}

// Session tells the service which store is acting
type Session interface {
	StoreID() string
}

// MarkStore records the last successful guarded call where other processes can see it
type MarkStore interface {
	LastMark(ctx context.Context, name string) (time.Time, error)
	Mark(ctx context.Context, name string, at time.Time) error
}

// ForecastOptions configures a ForecastService
type ForecastOptions struct {
	CacheTTL time.Duration
	Debounce time.Duration
	// Marks extends the debounce window across processes; nil keeps it in process
	Marks  MarkStore
	Logger *slog.Logger
}

// ForecastService guards the expensive forecasting endpoints and caches prediction pages per store
type ForecastService struct {
	backend Backend
	session Session
	pages    *cache.Cache[[]byte]
	limiter  *ratelimit.Limiter
	marks    MarkStore
	debounce time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewForecastService creates a service. Call Close to stop the debounce limiter.
func NewForecastService(backend Backend, session Session, opts ForecastOptions) *ForecastService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.CacheTTL
	if !featureflags.Enabled(featureflags.PredictionCache) {
		ttl = 0
	}
	return &ForecastService{
		backend:  backend,
		session:  session,
		pages:    cache.New[[]byte](ttl),
		limiter:  ratelimit.NewLimiter(1, opts.Debounce),
		marks:    opts.Marks,
		debounce: opts.Debounce,
		now:      time.Now,
		logger:   logger,
		inFlight: map[string]bool{},
	}
}

// Close releases background resources
func (s *ForecastService) Close() {
	s.limiter.Stop()
}

// Generate triggers backend recomputation. Concurrent and rapidly repeated calls are rejected
// before reaching the backend. A successful run invalidates cached prediction pages.
func (s *ForecastService) Generate(ctx context.Context) ([]byte, error) {
	storeID, err := s.storeID()
	if err != nil {
		return nil, err
	}

	key := "generate:" + storeID
	if !s.begin(key) {
		metrics.ObserveOperation("generate_predictions", "in_progress")
		return nil, ErrGenerationInProgress
	}
	defer s.end(key)

	if !s.limiter.Allow(key) || s.recentlyMarked(ctx, key) {
		metrics.ObserveOperation("generate_predictions", "debounced")
		return nil, ErrDebounced
	}

	body, err := s.backend.GeneratePredictions(ctx)
	if err != nil {
		// a failed run should not block an immediate retry
		s.limiter.Forget(key)
		return nil, err
	}
	s.mark(ctx, key)

	s.pages.Delete(predictionsPrefix + storeID)
	s.pages.Delete(transfersPrefix + storeID)
	s.logger.Info("predictions generated", slog.String("store_id", storeID), slog.Int("bytes", len(body)))
	return body, nil
}

// Predictions returns the predictions page, from cache when fresh
func (s *ForecastService) Predictions(ctx context.Context) ([]byte, error) {
	storeID, err := s.storeID()
	if err != nil {
		return nil, err
	}

	key := predictionsPrefix + storeID
	if body, ok := s.pages.Get(key); ok {
		metrics.ObserveOperation("get_predictions", "cache_hit")
		return body, nil
	}

	body, err := s.backend.GetPredictions(ctx)
	if err != nil {
		return nil, err
	}
	s.pages.Set(key, body)
	return body, nil
}

// ParsedPredictions returns structured rows when the backend sends JSON, along with the raw body
func (s *ForecastService) ParsedPredictions(ctx context.Context) ([]domain.Prediction, []byte, error) {
	body, err := s.Predictions(ctx)
	if err != nil {
		return nil, nil, err
	}
	preds, _, err := gateway.ParsePredictions(body)
	if err != nil {
		return nil, body, fmt.Errorf("failed to parse predictions: %w", err)
	}
	return preds, body, nil
}

// TransferSuggestions requests inter-store transfer suggestions, debounced like Generate
func (s *ForecastService) TransferSuggestions(ctx context.Context) ([]byte, error) {
	storeID, err := s.storeID()
	if err != nil {
		return nil, err
	}

	key := transfersPrefix + storeID
	if body, ok := s.pages.Get(key); ok {
		metrics.ObserveOperation("get_transfer_suggestions", "cache_hit")
		return body, nil
	}

	if !s.limiter.Allow(key) || s.recentlyMarked(ctx, key) {
		metrics.ObserveOperation("get_transfer_suggestions", "debounced")
		return nil, ErrDebounced
	}

	body, err := s.backend.GetTransferSuggestions(ctx)
	if err != nil {
		s.limiter.Forget(key)
		return nil, err
	}
	s.mark(ctx, key)
	s.pages.Set(key, body)
	return body, nil
}

// UploadInventory uploads a dataset and drops cached pages that depend on it
func (s *ForecastService) UploadInventory(ctx context.Context, filename string, r io.Reader) error {
	if err := s.backend.UploadInventory(ctx, filename, r); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// UploadSales uploads a dataset and drops cached pages that depend on it
func (s *ForecastService) UploadSales(ctx context.Context, filename string, r io.Reader) error {
	if err := s.backend.UploadSales(ctx, filename, r); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *ForecastService) invalidate() {
	storeID := s.session.StoreID()
	if storeID == "" {
		s.pages.Invalidate(predictionsPrefix)
		s.pages.Invalidate(transfersPrefix)
		return
	}
	s.pages.Delete(predictionsPrefix + storeID)
	s.pages.Delete(transfersPrefix + storeID)
}

// recentlyMarked reports a success for key inside the debounce window, possibly from
// another process. Unreadable marks do not block the call.
func (s *ForecastService) recentlyMarked(ctx context.Context, key string) bool {
	if s.marks == nil || s.debounce <= 0 {
		return false
	}
	last, err := s.marks.LastMark(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read last run", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return !last.IsZero() && s.now().Sub(last) < s.debounce
}

func (s *ForecastService) mark(ctx context.Context, key string) {
	if s.marks == nil {
		return
	}
	if err := s.marks.Mark(ctx, key, s.now()); err != nil {
		s.logger.Warn("failed to record run", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *ForecastService) storeID() (string, error) {
	id := s.session.StoreID()
	if id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

func (s *ForecastService) begin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *ForecastService) end(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}
