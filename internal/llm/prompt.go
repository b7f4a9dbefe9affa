package llm

import (
	"fmt"
	"strings"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// SystemInstruction frames the model as the analyst writing the report.
const SystemInstruction = `You are a fraud analyst reviewing a conversation between a scammer and a honeypot persona.
Write a concise report (at most 4 sentences, plain text, no markdown) describing the scam tactic,
the pressure techniques used and what payment or contact details the scammer revealed.
Do not invent details that are not present in the conversation or the extracted data.`

// maxPromptMessages bounds how much history is sent to the model.
const maxPromptMessages = 30

// BuildPrompt renders the session for the notes model.
func BuildPrompt(s *models.Session, draft string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Session: %s\nMessages exchanged: %d\n", s.ID, s.MessageCount)
	if types := s.ScamTypeList(); len(types) > 0 {
		fmt.Fprintf(&b, "Classifier scam types: %s\n", strings.Join(types, ", "))
	}

	intel := s.Intelligence.Project()
	writeList(&b, "UPI IDs", intel.UPIIDs)
	writeList(&b, "Phone numbers", intel.PhoneNumbers)
	writeList(&b, "Bank accounts", intel.BankAccounts)
	writeList(&b, "Phishing links", intel.PhishingLinks)
	writeList(&b, "Suspicious keywords", intel.SuspiciousKeywords)

	history := s.History
	if len(history) > maxPromptMessages {
		history = history[len(history)-maxPromptMessages:]
	}
	b.WriteString("\nConversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s\n", m.Sender, m.Text)
	}

	fmt.Fprintf(&b, "\nDraft notes:\n%s\n", draft)
	return b.String()
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
}
