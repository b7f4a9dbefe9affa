package models

import (
	"fmt"
	"time"
)

// Phase is the ordered lifecycle stage of a honeypot session.
type Phase int

const (
	PhaseInitiated Phase = iota
	PhaseEngaging
	PhaseExtracting
	PhaseConfirmed
	PhaseReported
)

var phaseNames = map[Phase]string{
	PhaseInitiated:  "initiated",
	PhaseEngaging:   "engaging",
	PhaseExtracting: "extracting",
	PhaseConfirmed:  "confirmed",
	PhaseReported:   "reported",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Less reports whether p comes before other in the lifecycle.
func (p Phase) Less(other Phase) bool { return p < other }

// ParsePhase is the inverse of String.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return PhaseInitiated, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Session is the accumulated state of one conversation with a suspected scammer.
type Session struct {
	ID             string       `json:"session_id"`
	PersonaName    string       `json:"persona_name"`
	ScamConfirmed  bool         `json:"scam_confirmed"`
	ScamConfidence float64      `json:"scam_confidence"`
	ScamTypes      Set          `json:"scam_types"`
	MessageCount   int          `json:"message_count"`
	Intelligence   Intelligence `json:"intelligence_extracted"`
	Phase          Phase        `json:"phase"`
	CallbackSent   bool         `json:"callback_sent"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActive     time.Time    `json:"last_active"`
	History        []Message    `json:"history,omitempty"`
}

// NewSession returns a session in the initiated phase with fresh containers.
func NewSession(id, persona string, now time.Time) *Session {
	return &Session{
		ID:           id,
		PersonaName:  persona,
		ScamTypes:    make(Set),
		Intelligence: NewIntelligence(),
		Phase:        PhaseInitiated,
		CreatedAt:    now,
		LastActive:   now,
	}
}

// Clone returns a deep copy that shares no containers with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.ScamTypes = NewSet(s.ScamTypes.Sorted()...)
	out.Intelligence = s.Intelligence.Clone()
	out.History = append([]Message(nil), s.History...)
	return &out
}

// Touch moves LastActive forward to t. It never moves backwards.
func (s *Session) Touch(t time.Time) {
	if t.After(s.LastActive) {
		s.LastActive = t
	}
}

// EngagementDuration is the time between session creation and last activity.
func (s *Session) EngagementDuration() time.Duration {
	if s.LastActive.Before(s.CreatedAt) {
		return 0
	}
	return s.LastActive.Sub(s.CreatedAt)
}

// ScamTypeList returns the scam type tags in a stable order.
func (s *Session) ScamTypeList() []string {
	return s.ScamTypes.Sorted()
}
