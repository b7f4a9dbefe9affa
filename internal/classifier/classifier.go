// Package classifier decides whether a message looks like a scam attempt.
package classifier

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Verdict is the output of any classifier.
type Verdict struct {
	IsScam     bool     `json:"is_scam"`
	Confidence float64  `json:"confidence"`
	ScamTypes  []string `json:"scam_types"`
}

// Classifier is the pluggable scam classifier contract.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Scam type tags.
const (
	TypeBankFraud     = "bank_fraud"
	TypeUPIFraud      = "upi_fraud"
	TypePhishing      = "phishing"
	TypeLottery       = "lottery"
	TypeImpersonation = "impersonation"
	TypeKYCFraud      = "kyc_fraud"
	TypeJobFraud      = "job_fraud"
)

var scamSignals = map[string][]string{
	TypeBankFraud:     {"account blocked", "account will be", "bank account", "debit card", "credit card", "cvv", "atm pin", "net banking"},
	TypeUPIFraud:      {"upi", "upi pin", "collect request", "scan the qr", "qr code", "send money"},
	TypePhishing:      {"click here", "click the link", "login", "verify now", "update your", "http"},
	TypeLottery:       {"lottery", "you have won", "prize", "winner", "lucky draw", "cashback", "reward"},
	TypeImpersonation: {"police", "cbi", "customs", "income tax", "rbi", "court", "arrest", "legal action"},
	TypeKYCFraud:      {"kyc", "pan card", "aadhaar", "aadhar", "re-verify", "suspended"},
	TypeJobFraud:      {"work from home", "part time job", "daily income", "registration fee", "processing fee", "task"},
}

var urgencySignals = []string{"urgent", "immediately", "within 24 hours", "today only", "last chance", "otp", "expire"}

// KeywordClassifier is a heuristic classifier that needs no external service.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a keyword based classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify scores text by the number of scam categories and urgency cues it hits.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (Verdict, error) {
	lower := strings.ToLower(text)

	var types []string
	for scamType, signals := range scamSignals {
		for _, s := range signals {
			if strings.Contains(lower, s) {
				types = append(types, scamType)
				break
			}
		}
	}
	sort.Strings(types)

	urgency := 0
	for _, s := range urgencySignals {
		if strings.Contains(lower, s) {
			urgency++
		}
	}

	confidence := 0.25*float64(len(types)) + 0.15*float64(urgency)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return Verdict{
		IsScam:     len(types) > 0 && confidence >= 0.4,
		Confidence: confidence,
		ScamTypes:  types,
	}, nil
}

// Fallback tries the primary classifier and falls back to the secondary on error.
type Fallback struct {
	primary   Classifier
	secondary Classifier
	logger    *zap.Logger
}

// NewFallback chains two classifiers.
func NewFallback(primary, secondary Classifier, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Classify(ctx context.Context, text string) (Verdict, error) {
	v, err := f.primary.Classify(ctx, text)
	if err == nil {
		return v, nil
	}
	f.logger.Warn("Primary classifier failed, using fallback", zap.Error(err))
	return f.secondary.Classify(ctx, text)
}
