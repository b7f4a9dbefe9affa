package tracker

import (
	"math"
	"testing"
	"time"

	"github.com/obiwankenobi699/HoneyPot/internal/classifier"
	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

func newSession() *models.Session {
	return models.NewSession("s1", "Ramesh", time.Now())
}

func TestTracker_PhaseWalkthrough(t *testing.T) {
	tr := New(nil, 0)
	s := newSession()
	none := classifier.Verdict{}

	s.MessageCount = 1
	tr.Apply(s, none)
	if s.Phase != models.PhaseInitiated {
		t.Fatalf("after 1 message phase = %s", s.Phase)
	}

	s.MessageCount = 2
	tr.Apply(s, none)
	if s.Phase != models.PhaseEngaging {
		t.Fatalf("after 2 messages phase = %s", s.Phase)
	}

	s.MessageCount = 3
	s.Intelligence.Add(models.KindUPIID, "scam@upi")
	tr.Apply(s, none)
	if s.Phase != models.PhaseExtracting {
		t.Fatalf("after upi phase = %s (confidence %v)", s.Phase, s.ScamConfidence)
	}
	if s.ScamConfirmed {
		t.Fatal("scam confirmed too early")
	}

	s.MessageCount = 5
	for _, kw := range []string{"urgent", "otp", "blocked", "kyc"} {
		s.Intelligence.Add(models.KindSuspiciousKeyword, kw)
	}
	tr.Apply(s, none)
	if s.ScamConfidence < tr.Threshold() {
		t.Fatalf("confidence %v did not cross threshold", s.ScamConfidence)
	}
	if s.Phase != models.PhaseConfirmed || !s.ScamConfirmed {
		t.Fatalf("expected confirmed, got %s confirmed=%v", s.Phase, s.ScamConfirmed)
	}

	s.CallbackSent = true
	tr.Advance(s)
	if s.Phase != models.PhaseReported {
		t.Fatalf("expected reported, got %s", s.Phase)
	}
	if tr.ShouldContinue(s) {
		t.Error("reported session should not continue")
	}
}

func TestTracker_TwoHighValueKindsConfirm(t *testing.T) {
	tr := New(NewWeightedPolicy(Weights{}), 0.99)
	s := newSession()
	s.MessageCount = 2
	s.Intelligence.Add(models.KindBankAccount, "123456789012")
	s.Intelligence.Add(models.KindPhoneNumber, "9876543210")

	tr.Apply(s, classifier.Verdict{})
	if s.Phase != models.PhaseConfirmed {
		t.Errorf("two high-value kinds should confirm, got %s (confidence %v)", s.Phase, s.ScamConfidence)
	}
}

func TestTracker_AdvanceCascadesInOneCall(t *testing.T) {
	tr := New(nil, 0)
	s := newSession()
	s.MessageCount = 2
	s.Intelligence.Add(models.KindUPIID, "x@ybl")
	s.Intelligence.Add(models.KindPhoneNumber, "9876543210")

	tr.Advance(s)
	if s.Phase != models.PhaseConfirmed || !s.ScamConfirmed {
		t.Fatalf("phase = %s confirmed = %v, want confirmed in one call", s.Phase, s.ScamConfirmed)
	}

	// Nothing changed, so a second call is a no-op.
	tr.Advance(s)
	if s.Phase != models.PhaseConfirmed {
		t.Fatalf("phase = %s, want confirmed until the callback flip", s.Phase)
	}

	s.CallbackSent = true
	tr.Advance(s)
	if s.Phase != models.PhaseReported {
		t.Errorf("phase = %s, want reported", s.Phase)
	}
}

func TestTracker_SingleMessageCannotSkipEngaging(t *testing.T) {
	tr := New(nil, 0)
	s := newSession()
	s.MessageCount = 1
	s.Intelligence.Add(models.KindBankAccount, "123456789012")
	s.Intelligence.Add(models.KindUPIID, "x@ybl")

	tr.Apply(s, classifier.Verdict{IsScam: true, Confidence: 1})
	if s.Phase != models.PhaseInitiated {
		t.Errorf("phase = %s, want initiated", s.Phase)
	}
}

func TestTracker_ConfidenceNeverDecreases(t *testing.T) {
	tr := New(nil, 0)
	s := newSession()
	s.MessageCount = 2

	tr.Apply(s, classifier.Verdict{IsScam: true, Confidence: 0.9, ScamTypes: []string{"lottery"}})
	high := s.ScamConfidence

	tr.Apply(s, classifier.Verdict{})
	if s.ScamConfidence < high {
		t.Errorf("confidence dropped from %v to %v", high, s.ScamConfidence)
	}
	if !s.ScamTypes.Has("lottery") {
		t.Error("scam type not recorded")
	}
}

func TestWeightedPolicy_Caps(t *testing.T) {
	p := NewWeightedPolicy(DefaultWeights())
	s := newSession()
	s.MessageCount = 50
	for _, kw := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		s.Intelligence.Add(models.KindSuspiciousKeyword, kw)
	}
	if got := p.Score(s, classifier.Verdict{}); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("capped keyword+engagement score = %v, want 0.6", got)
	}

	s.Intelligence.Add(models.KindBankAccount, "123456789")
	s.Intelligence.Add(models.KindUPIID, "a@upi")
	s.Intelligence.Add(models.KindPhoneNumber, "9876543210")
	if got := p.Score(s, classifier.Verdict{IsScam: true, Confidence: 1}); got != 1 {
		t.Errorf("score should cap at 1, got %v", got)
	}
}

func TestTracker_PhaseNeverRegresses(t *testing.T) {
	tr := New(nil, 0)
	s := newSession()
	s.Phase = models.PhaseExtracting
	s.MessageCount = 0
	s.Intelligence = models.NewIntelligence()

	tr.Apply(s, classifier.Verdict{})
	if s.Phase < models.PhaseExtracting {
		t.Errorf("phase regressed to %s", s.Phase)
	}
}
