// Package tracker advances a session's phase and scam confidence as evidence arrives.
package tracker

import (
	"github.com/obiwankenobi699/HoneyPot/internal/classifier"
	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// DefaultConfirmThreshold is the confidence at which a scam counts as confirmed.
const DefaultConfirmThreshold = 0.75

// Policy turns a session snapshot and the latest classifier verdict into a
// confidence score in [0, 1].
type Policy interface {
	Score(s *models.Session, v classifier.Verdict) float64
}

// Weights parameterize WeightedPolicy.
type Weights struct {
	PerKeyword       float64 `yaml:"per_keyword"`
	KeywordCap       float64 `yaml:"keyword_cap"`
	PerHighValueKind float64 `yaml:"per_high_value_kind"`
	PhishingLink     float64 `yaml:"phishing_link"`
	EngagementFloor  int     `yaml:"engagement_floor"`
	PerExtraMessage  float64 `yaml:"per_extra_message"`
	EngagementCap    float64 `yaml:"engagement_cap"`
	ClassifierWeight float64 `yaml:"classifier_weight"`
}

// DefaultWeights returns the stock scoring policy.
func DefaultWeights() Weights {
	return Weights{
		PerKeyword:       0.1,
		KeywordCap:       0.4,
		PerHighValueKind: 0.3,
		PhishingLink:     0.15,
		EngagementFloor:  3,
		PerExtraMessage:  0.05,
		EngagementCap:    0.2,
		ClassifierWeight: 0.5,
	}
}

// WeightedPolicy adds keyword density, high-value artifacts, persistence of
// the scammer and the classifier's opinion.
type WeightedPolicy struct {
	W Weights
}

// NewWeightedPolicy creates a policy with w.
func NewWeightedPolicy(w Weights) *WeightedPolicy {
	return &WeightedPolicy{W: w}
}

func (p *WeightedPolicy) Score(s *models.Session, v classifier.Verdict) float64 {
	w := p.W

	keywords := w.PerKeyword * float64(len(s.Intelligence.Values(models.KindSuspiciousKeyword)))
	if keywords > w.KeywordCap {
		keywords = w.KeywordCap
	}

	score := keywords
	score += w.PerHighValueKind * float64(s.Intelligence.HighValueKindCount())
	if len(s.Intelligence.Values(models.KindPhishingLink)) > 0 {
		score += w.PhishingLink
	}

	if extra := s.MessageCount - w.EngagementFloor; extra > 0 {
		engagement := w.PerExtraMessage * float64(extra)
		if engagement > w.EngagementCap {
			engagement = w.EngagementCap
		}
		score += engagement
	}

	if v.IsScam {
		score += w.ClassifierWeight * v.Confidence
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Tracker is the phase state machine.
type Tracker struct {
	policy    Policy
	threshold float64
}

// New creates a tracker. A non-positive threshold selects the default.
func New(policy Policy, threshold float64) *Tracker {
	if policy == nil {
		policy = NewWeightedPolicy(DefaultWeights())
	}
	if threshold <= 0 {
		threshold = DefaultConfirmThreshold
	}
	return &Tracker{policy: policy, threshold: threshold}
}

// Threshold returns the confirmation threshold.
func (t *Tracker) Threshold() float64 { return t.threshold }

// Apply recomputes confidence and advances the phase of s in place. Confidence
// and phase only ever move forward.
func (t *Tracker) Apply(s *models.Session, v classifier.Verdict) {
	if score := t.policy.Score(s, v); score > s.ScamConfidence {
		s.ScamConfidence = score
	}
	if v.IsScam {
		for _, st := range v.ScamTypes {
			s.ScamTypes.Add(st)
		}
	}
	t.Advance(s)
}

// Advance moves s through every transition whose condition holds, in phase
// order. Each rule only fires from its own source phase, but one call keeps
// going while the next rule also holds: a single message that brings the
// session to two messages with two high-value kinds moves it from initiated
// straight to confirmed. It stops at the first rule that does not hold, so
// reported still waits for the callback flip.
func (t *Tracker) Advance(s *models.Session) {
	for {
		next, ok := t.next(s)
		if !ok {
			return
		}
		s.Phase = next
		if next >= models.PhaseConfirmed {
			s.ScamConfirmed = true
		}
	}
}

func (t *Tracker) next(s *models.Session) (models.Phase, bool) {
	switch s.Phase {
	case models.PhaseInitiated:
		if s.MessageCount >= 2 {
			return models.PhaseEngaging, true
		}
	case models.PhaseEngaging:
		if !s.Intelligence.Empty() {
			return models.PhaseExtracting, true
		}
	case models.PhaseExtracting:
		if s.ScamConfidence >= t.threshold || s.Intelligence.HighValueKindCount() >= 2 {
			return models.PhaseConfirmed, true
		}
	case models.PhaseConfirmed:
		if s.CallbackSent {
			return models.PhaseReported, true
		}
	}
	return s.Phase, false
}

// ShouldContinue reports whether the persona should keep the scammer talking.
// Reported sessions are done.
func (t *Tracker) ShouldContinue(s *models.Session) bool {
	return s.Phase.Less(models.PhaseReported)
}
