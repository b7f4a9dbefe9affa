package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
	"github.com/obiwankenobi699/HoneyPot/internal/session"
	"github.com/obiwankenobi699/HoneyPot/internal/tracker"
)

func confirmedSession(t *testing.T, store *session.MemoryStore) *models.Session {
	t.Helper()
	ctx := context.Background()
	if _, _, err := store.GetOrCreate(ctx, "s1", "Ramesh"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	intel := models.NewIntelligence()
	intel.Add(models.KindUPIID, "scammer@paytm")
	intel.Add(models.KindPhoneNumber, "9876543210")
	msg := models.Message{Sender: models.SenderUser, Text: "pay to scammer@paytm", Timestamp: models.TimestampFromInt(1700000000000)}

	sess, err := store.Update(ctx, "s1", msg, intel, func(s *models.Session) error {
		s.Phase = models.PhaseConfirmed
		s.ScamConfirmed = true
		s.ScamConfidence = 0.8
		s.ScamTypes.Add("upi_fraud")
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return sess
}

func TestDispatcher_FiresOnceAndAdvances(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(zap.NewNop())
	d := New(store, tracker.New(nil, 0), nil, zap.NewNop())
	sess := confirmedSession(t, store)

	payload, updated, err := d.MaybeDispatch(ctx, sess)
	if err != nil {
		t.Fatalf("MaybeDispatch failed: %v", err)
	}
	if payload == nil {
		t.Fatal("expected payload for confirmed session")
	}
	if !payload.ScamDetected || payload.SessionID != "s1" || payload.TotalMessagesExchanged != 1 {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if got := payload.ExtractedIntelligence.UPIIDs; len(got) != 1 || got[0] != "scammer@paytm" {
		t.Errorf("upiIds = %v", got)
	}
	if !strings.Contains(payload.AgentNotes, "upi_fraud") {
		t.Errorf("notes missing scam type: %q", payload.AgentNotes)
	}
	if updated.Phase != models.PhaseReported || !updated.CallbackSent {
		t.Errorf("session not reported: phase=%s sent=%v", updated.Phase, updated.CallbackSent)
	}

	again, _, err := d.MaybeDispatch(ctx, sess)
	if err != nil {
		t.Fatalf("second MaybeDispatch failed: %v", err)
	}
	if again != nil {
		t.Error("callback dispatched twice")
	}
}

func TestDispatcher_NotConfirmed(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(zap.NewNop())
	d := New(store, tracker.New(nil, 0), nil, zap.NewNop())

	sess, _, err := store.GetOrCreate(ctx, "s2", "Ramesh")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	payload, _, err := d.MaybeDispatch(ctx, sess)
	if err != nil || payload != nil {
		t.Fatalf("expected no payload, got %+v err=%v", payload, err)
	}
}

func TestDispatcher_ConcurrentExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(zap.NewNop())
	d := New(store, tracker.New(nil, 0), nil, zap.NewNop())
	sess := confirmedSession(t, store)

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _, err := d.MaybeDispatch(ctx, sess.Clone())
			if err != nil {
				t.Errorf("MaybeDispatch failed: %v", err)
				return
			}
			if payload != nil {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := fired.Load(); got != 1 {
		t.Errorf("payload produced %d times, want 1", got)
	}
}

func TestCallbackClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		var p models.CallbackPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCallbackClient(CallbackConfig{URL: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond}, zap.NewNop())
	attempts, err := c.Send(context.Background(), &models.CallbackPayload{SessionID: "s1", ScamDetected: true})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestCallbackClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewCallbackClient(CallbackConfig{URL: srv.URL, MaxRetries: 5, RetryDelay: time.Millisecond}, zap.NewNop())
	attempts, err := c.Send(context.Background(), &models.CallbackPayload{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if attempts != 1 || calls.Load() != 1 {
		t.Errorf("attempts = %d, calls = %d, want 1", attempts, calls.Load())
	}
}

type fakeDeliverer struct {
	mu   sync.Mutex
	sent []models.CallbackPayload
	fail bool
}

func (f *fakeDeliverer) Send(_ context.Context, p *models.CallbackPayload) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *p)
	if f.fail {
		return 3, errors.New("endpoint down")
	}
	return 1, nil
}

type fakeLog struct {
	mu   sync.Mutex
	recs []models.DeliveryRecord
}

func (f *fakeLog) RecordDelivery(_ context.Context, rec models.DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeLog) NotifyReported(ctx context.Context, rec models.DeliveryRecord) error {
	return f.RecordDelivery(ctx, rec)
}

type fakeEnricher struct{ err error }

func (f fakeEnricher) EnrichNotes(_ context.Context, s *models.Session, draft string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "enriched: " + s.ID, nil
}

func TestSender_DeliversEnrichesAndRecords(t *testing.T) {
	deliverer := &fakeDeliverer{}
	log := &fakeLog{}
	sink := &fakeLog{}
	s := NewSender(deliverer, zap.NewNop(),
		WithEnricher(fakeEnricher{}),
		WithDeliveryLog(log),
		WithSinks(sink),
		WithWorkers(1))
	s.Start(context.Background())

	sess := models.NewSession("s1", "Ramesh", time.Now())
	if err := s.Enqueue(Job{Payload: &models.CallbackPayload{SessionID: "s1", AgentNotes: "draft"}, Session: sess}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(deliverer.sent) != 1 || deliverer.sent[0].AgentNotes != "enriched: s1" {
		t.Fatalf("unexpected deliveries: %+v", deliverer.sent)
	}
	if len(log.recs) != 1 || log.recs[0].Status != models.DeliveryDelivered || log.recs[0].ID == "" {
		t.Fatalf("unexpected log: %+v", log.recs)
	}
	if len(sink.recs) != 1 {
		t.Errorf("sink notified %d times", len(sink.recs))
	}

	if err := s.Enqueue(Job{Payload: &models.CallbackPayload{SessionID: "s2"}}); !errors.Is(err, ErrSenderStopped) {
		t.Errorf("Enqueue after Stop = %v, want ErrSenderStopped", err)
	}
}

func TestSender_FailedDeliveryKeepsTemplateNotes(t *testing.T) {
	deliverer := &fakeDeliverer{fail: true}
	log := &fakeLog{}
	s := NewSender(deliverer, zap.NewNop(), WithEnricher(fakeEnricher{err: errors.New("quota")}), WithDeliveryLog(log))
	s.Start(context.Background())

	err := s.Enqueue(Job{Payload: &models.CallbackPayload{SessionID: "s1", AgentNotes: "draft"}, Session: models.NewSession("s1", "", time.Now())})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if deliverer.sent[0].AgentNotes != "draft" {
		t.Errorf("notes = %q, want draft", deliverer.sent[0].AgentNotes)
	}
	rec := log.recs[0]
	if rec.Status != models.DeliveryFailed || rec.Attempts != 3 || rec.Error == "" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestTemplateNotes(t *testing.T) {
	s := models.NewSession("s1", "Ramesh", time.Now())
	s.MessageCount = 4
	s.Intelligence.Add(models.KindUPIID, "a@upi")
	s.Intelligence.Add(models.KindSuspiciousKeyword, "urgent")

	notes := TemplateNotes{}.Notes(s)
	for _, want := range []string{"unclassified", "Ramesh", "4 messages", "1 UPI IDs", "urgent"} {
		if !strings.Contains(notes, want) {
			t.Errorf("notes %q missing %q", notes, want)
		}
	}
}

func TestSender_QueueFullFallsBackToDeliver(t *testing.T) {
	deliverer := &fakeDeliverer{}
	log := &fakeLog{}
	s := NewSender(deliverer, zap.NewNop(), WithQueueSize(1), WithDeliveryLog(log))

	// No workers yet, so the single slot stays taken.
	if err := s.Enqueue(Job{Payload: &models.CallbackPayload{SessionID: "s1"}}); err != nil {
		t.Fatalf("first Enqueue failed: %v", err)
	}
	second := Job{Payload: &models.CallbackPayload{SessionID: "s2"}}
	if err := s.Enqueue(second); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Enqueue = %v, want ErrQueueFull", err)
	}

	rec := s.Deliver(context.Background(), second)
	if rec.Status != models.DeliveryDelivered || rec.SessionID != "s2" || rec.Attempts != 1 {
		t.Errorf("inline record = %+v", rec)
	}

	s.Start(context.Background())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(log.recs) != 2 || len(deliverer.sent) != 2 {
		t.Errorf("records = %d, sent = %d, want 2 each", len(log.recs), len(deliverer.sent))
	}
}

type fakePending struct {
	sessions []*models.Session
}

func (f fakePending) PendingCallbacks(context.Context) ([]*models.Session, error) {
	return f.sessions, nil
}

func TestSender_RedrivesPendingCallbacks(t *testing.T) {
	sess := models.NewSession("s1", "Ramesh", time.Now())
	sess.Phase = models.PhaseReported
	sess.ScamConfirmed = true
	sess.CallbackSent = true
	sess.MessageCount = 6
	sess.Intelligence.Add(models.KindUPIID, "scammer@paytm")

	deliverer := &fakeDeliverer{}
	log := &fakeLog{}
	s := NewSender(deliverer, zap.NewNop(),
		WithRedrive(fakePending{sessions: []*models.Session{sess}}, nil),
		WithDeliveryLog(log),
		WithWorkers(1))
	s.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for {
		log.mu.Lock()
		n := len(log.recs)
		log.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pending callback was not re-sent")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got := deliverer.sent[0]
	if got.SessionID != "s1" || got.TotalMessagesExchanged != 6 || !got.ScamDetected {
		t.Errorf("unexpected payload: %+v", got)
	}
	if got.AgentNotes != (TemplateNotes{}).Notes(sess) {
		t.Errorf("notes = %q, want template notes", got.AgentNotes)
	}
}

func TestSender_RedriveNeedsDeliverer(t *testing.T) {
	log := &fakeLog{}
	s := NewSender(nil, zap.NewNop(),
		WithRedrive(fakePending{sessions: []*models.Session{models.NewSession("s1", "", time.Now())}}, nil),
		WithDeliveryLog(log))
	s.Start(context.Background())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(log.recs) != 0 {
		t.Errorf("disabled callbacks were re-sent as %+v", log.recs)
	}
}
