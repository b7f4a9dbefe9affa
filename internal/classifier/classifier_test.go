package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestKeywordClassifier(t *testing.T) {
	k := NewKeywordClassifier()

	v, err := k.Classify(context.Background(), "URGENT: your bank account blocked, share OTP and click here to verify KYC")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !v.IsScam {
		t.Errorf("expected scam verdict, got %+v", v)
	}
	if v.Confidence <= 0.4 || v.Confidence > 0.95 {
		t.Errorf("unexpected confidence %v", v.Confidence)
	}

	v, err = k.Classify(context.Background(), "Hi, how are you doing today?")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if v.IsScam || len(v.ScamTypes) != 0 {
		t.Errorf("expected benign verdict, got %+v", v)
	}
}

func TestMLClient_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/classify/single" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ClassifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(ClassifyResponse{Category: "financial_fraud", Confidence: 1.7, IsAttack: true})
	}))
	defer srv.Close()

	c := NewMLClient(srv.URL, time.Second, zap.NewNop())
	v, err := c.Classify(context.Background(), "pay now")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !v.IsScam || v.Confidence != 1 {
		t.Errorf("unexpected verdict %+v", v)
	}
	if len(v.ScamTypes) != 1 || v.ScamTypes[0] != "financial_fraud" {
		t.Errorf("scam types = %v", v.ScamTypes)
	}
}

func TestFallback_UsesSecondaryOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFallback(NewMLClient(srv.URL, time.Second, zap.NewNop()), NewKeywordClassifier(), zap.NewNop())
	v, err := f.Classify(context.Background(), "You have won a lottery prize, pay processing fee immediately")
	if err != nil {
		t.Fatalf("fallback returned error: %v", err)
	}
	if !v.IsScam {
		t.Errorf("expected keyword fallback to flag scam, got %+v", v)
	}
}
