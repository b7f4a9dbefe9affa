// Package persona picks the victim persona for a session and scripts its replies.
package persona

import (
	"hash/fnv"
	"strings"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// DefaultNames is used when no personas are configured.
var DefaultNames = []string{
	"Ramesh Kumar",
	"Sunita Sharma",
	"Arjun Mehta",
	"Lakshmi Iyer",
	"Mohammed Farooq",
}

// Picker assigns a persona name to each session id.
type Picker struct {
	names []string
}

// NewPicker creates a picker over names, dropping blanks.
func NewPicker(names []string) *Picker {
	var clean []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			clean = append(clean, n)
		}
	}
	if len(clean) == 0 {
		clean = DefaultNames
	}
	return &Picker{names: clean}
}

// Pick returns the same name for the same session id on every call and every process.
func (p *Picker) Pick(sessionID string) string {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return p.names[h.Sum32()%uint32(len(p.names))]
}

// Responder produces the persona's next message for a session.
type Responder interface {
	Reply(s *models.Session) string
}

// ScriptedResponder picks a canned reply suited to the session phase. While
// extracting, it asks for whichever payment detail the scammer has not given yet.
type ScriptedResponder struct{}

var (
	initiatedReplies = []string{
		"Hello? Who is this? I did not understand the message.",
		"Sorry, which bank are you calling from?",
	}
	engagingReplies = []string{
		"Oh no, is my account really in trouble? What should I do?",
		"I am very worried now. Please tell me the steps slowly, I am not good with phones.",
		"My son usually handles these things. Can you explain again?",
	}
	askFor = map[models.ArtifactKind]string{
		models.KindUPIID:        "Which UPI ID should I send the money to? Please type it clearly.",
		models.KindBankAccount:  "My UPI is not working. Can you give the bank account number and IFSC instead?",
		models.KindPhoneNumber:  "Can I call you back? What is your number, sir?",
		models.KindPhishingLink: "Is there a website link where I can do it myself?",
	}
	askOrder = []models.ArtifactKind{
		models.KindUPIID,
		models.KindBankAccount,
		models.KindPhoneNumber,
		models.KindPhishingLink,
	}
	stallReplies = []string{
		"The payment app is showing an error. Let me try again in a few minutes.",
		"I am going to the bank branch now, please wait.",
		"My phone battery is low, I will message you soon.",
	}
)

func (ScriptedResponder) Reply(s *models.Session) string {
	switch s.Phase {
	case models.PhaseInitiated:
		return pick(initiatedReplies, s.MessageCount)
	case models.PhaseEngaging:
		return pick(engagingReplies, s.MessageCount)
	case models.PhaseExtracting:
		for _, kind := range askOrder {
			if len(s.Intelligence.Values(kind)) == 0 {
				return askFor[kind]
			}
		}
		return pick(stallReplies, s.MessageCount)
	default:
		return pick(stallReplies, s.MessageCount)
	}
}

func pick(replies []string, n int) string {
	if n < 0 {
		n = 0
	}
	return replies[n%len(replies)]
}
