package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu            sync.Mutex
	generateCalls int
	pageCalls     int
	transferCalls int
	uploads       int
	generateErr   error
	page          string
	block         chan struct{}
	entered       chan struct{}
}

func (f *fakeBackend) GeneratePredictions(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.generateCalls++
	block, entered, err := f.block, f.entered, f.generateErr
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return []byte("generated"), nil
}

func (f *fakeBackend) GetPredictions(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	return []byte(f.page), nil
}

func (f *fakeBackend) GetTransferSuggestions(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls++
	return []byte("transfers"), nil
}

func (f *fakeBackend) UploadInventory(ctx context.Context, filename string, r io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return nil
}

func (f *fakeBackend) UploadSales(ctx context.Context, filename string, r io.Reader) error {
	return f.UploadInventory(ctx, filename, r)
}

type fixedSession string

func (s fixedSession) StoreID() string { return string(s) }

func newService(t *testing.T, b *fakeBackend, sess Session, debounce time.Duration) *ForecastService {
	t.Helper()
	t.Setenv("FLAG_PREDICTION_CACHE", "true")
	s := NewForecastService(b, sess, ForecastOptions{CacheTTL: time.Minute, Debounce: debounce})
	t.Cleanup(s.Close)
	return s
}

func TestGenerateRequiresSession(t *testing.T) {
	s := newService(t, &fakeBackend{}, fixedSession(""), 0)
	if _, err := s.Generate(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestGenerateDebounced(t *testing.T) {
	b := &fakeBackend{}
	s := newService(t, b, fixedSession("S1"), time.Hour)

	if _, err := s.Generate(context.Background()); err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	if _, err := s.Generate(context.Background()); !errors.Is(err, ErrDebounced) {
		t.Fatalf("expected ErrDebounced, got %v", err)
	}
	if b.generateCalls != 1 {
		t.Fatalf("expected one backend call, got %d", b.generateCalls)
	}
}

func TestGenerateFailureDoesNotDebounce(t *testing.T) {
	b := &fakeBackend{generateErr: errors.New("boom")}
	s := newService(t, b, fixedSession("S1"), time.Hour)

	if _, err := s.Generate(context.Background()); err == nil {
		t.Fatalf("expected backend error")
	}
	b.mu.Lock()
	b.generateErr = nil
	b.mu.Unlock()
	if _, err := s.Generate(context.Background()); err != nil {
		t.Fatalf("retry after failure must be allowed: %v", err)
	}
}

func TestGenerateRejectsConcurrentCall(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := newService(t, b, fixedSession("S1"), 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background())
		done <- err
	}()
	<-b.entered

	if _, err := s.Generate(context.Background()); !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("expected ErrGenerationInProgress, got %v", err)
	}

	close(b.block)
	if err := <-done; err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	b.mu.Lock()
	b.entered = nil
	b.mu.Unlock()
	if _, err := s.Generate(context.Background()); err != nil {
		t.Fatalf("generate after completion failed: %v", err)
	}
}

func TestPredictionsCachedAndInvalidated(t *testing.T) {
	b := &fakeBackend{page: "<html>v1</html>"}
	s := newService(t, b, fixedSession("S1"), 0)

	for i := 0; i < 3; i++ {
		body, err := s.Predictions(context.Background())
		if err != nil || string(body) != "<html>v1</html>" {
			t.Fatalf("unexpected result %q, %v", body, err)
		}
	}
	if b.pageCalls != 1 {
		t.Fatalf("expected cached reads, got %d backend calls", b.pageCalls)
	}

	if _, err := s.Generate(context.Background()); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	b.page = "<html>v2</html>"
	body, _ := s.Predictions(context.Background())
	if string(body) != "<html>v2</html>" {
		t.Fatalf("expected fresh page after generate, got %q", body)
	}

	if err := s.UploadSales(context.Background(), "sales.csv", strings.NewReader("")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	_, _ = s.Predictions(context.Background())
	if b.pageCalls != 3 {
		t.Fatalf("expected upload to invalidate the cache, got %d backend calls", b.pageCalls)
	}
}

func TestPredictionsCacheFlagOff(t *testing.T) {
	b := &fakeBackend{page: "x"}
	t.Setenv("FLAG_PREDICTION_CACHE", "false")
	s := NewForecastService(b, fixedSession("S1"), ForecastOptions{CacheTTL: time.Minute})
	defer s.Close()

	_, _ = s.Predictions(context.Background())
	_, _ = s.Predictions(context.Background())
	if b.pageCalls != 2 {
		t.Fatalf("expected no caching with flag off, got %d calls", b.pageCalls)
	}
}

func TestParsedPredictions(t *testing.T) {
	b := &fakeBackend{page: `[{"item_id":"A1","predicted_quantity":"12","current_stock":10}]`}
	s := newService(t, b, fixedSession("S1"), 0)

	preds, raw, err := s.ParsedPredictions(context.Background())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(preds) != 1 || preds[0].ItemID != "A1" || len(raw) == 0 {
		t.Fatalf("unexpected predictions %+v", preds)
	}

	b2 := &fakeBackend{page: "<html>table</html>"}
	s2 := newService(t, b2, fixedSession("S1"), 0)
	preds, raw, err = s2.ParsedPredictions(context.Background())
	if err != nil || len(preds) != 0 || string(raw) != "<html>table</html>" {
		t.Fatalf("expected raw html passthrough, got %v %q %v", preds, raw, err)
	}
}

func TestTransferSuggestionsDebouncedButCached(t *testing.T) {
	b := &fakeBackend{}
	s := newService(t, b, fixedSession("S1"), time.Hour)

	for i := 0; i < 2; i++ {
		body, err := s.TransferSuggestions(context.Background())
		if err != nil || string(body) != "transfers" {
			t.Fatalf("unexpected result %q, %v", body, err)
		}
	}
	if b.transferCalls != 1 {
		t.Fatalf("expected one backend call, got %d", b.transferCalls)
	}

	if err := s.UploadInventory(context.Background(), "inv.csv", strings.NewReader("")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if _, err := s.TransferSuggestions(context.Background()); !errors.Is(err, ErrDebounced) {
		t.Fatalf("expected ErrDebounced after cache drop, got %v", err)
	}
}

type fakeMarks struct {
	mu      sync.Mutex
	at      map[string]time.Time
	readErr error
}

func (m *fakeMarks) LastMark(_ context.Context, name string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return time.Time{}, m.readErr
	}
	return m.at[name], nil
}

func (m *fakeMarks) Mark(_ context.Context, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.at == nil {
		m.at = map[string]time.Time{}
	}
	m.at[name] = at
	return nil
}

func newMarkedService(t *testing.T, b *fakeBackend, marks MarkStore, debounce time.Duration) *ForecastService {
	t.Helper()
	s := NewForecastService(b, fixedSession("S1"), ForecastOptions{Debounce: debounce, Marks: marks})
	t.Cleanup(s.Close)
	return s
}

func TestGenerateDebouncedAcrossServices(t *testing.T) {
	marks := &fakeMarks{}
	b := &fakeBackend{}

	// two services stand in for two CLI runs sharing one persistence layer
	if _, err := newMarkedService(t, b, marks, time.Hour).Generate(context.Background()); err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	if _, err := newMarkedService(t, b, marks, time.Hour).Generate(context.Background()); !errors.Is(err, ErrDebounced) {
		t.Fatalf("expected ErrDebounced from the second service, got %v", err)
	}
	if b.generateCalls != 1 {
		t.Fatalf("expected one backend call, got %d", b.generateCalls)
	}
}

func TestGenerateAllowedAfterSharedWindow(t *testing.T) {
	marks := &fakeMarks{}
	b := &fakeBackend{}
	_ = marks.Mark(context.Background(), "generate:S1", time.Now().Add(-2*time.Minute))

	if _, err := newMarkedService(t, b, marks, time.Minute).Generate(context.Background()); err != nil {
		t.Fatalf("generate after window must pass: %v", err)
	}
	if last, _ := marks.LastMark(context.Background(), "generate:S1"); time.Since(last) > time.Minute {
		t.Fatalf("expected the mark to be refreshed, got %v", last)
	}
}

func TestGenerateFailureLeavesNoMark(t *testing.T) {
	marks := &fakeMarks{}
	b := &fakeBackend{generateErr: errors.New("boom")}
	if _, err := newMarkedService(t, b, marks, time.Hour).Generate(context.Background()); err == nil {
		t.Fatalf("expected backend error")
	}
	if last, _ := marks.LastMark(context.Background(), "generate:S1"); !last.IsZero() {
		t.Fatalf("failed run must not be marked, got %v", last)
	}
}

func TestUnreadableMarksDoNotBlock(t *testing.T) {
	marks := &fakeMarks{readErr: errors.New("disk gone")}
	b := &fakeBackend{}
	if _, err := newMarkedService(t, b, marks, time.Hour).Generate(context.Background()); err != nil {
		t.Fatalf("unreadable marks must not block generation: %v", err)
	}
}
