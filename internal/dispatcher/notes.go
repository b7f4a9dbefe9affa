package dispatcher

import (
	"fmt"
	"strings"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// NotesWriter produces the free-text agentNotes summary for a session.
type NotesWriter interface {
	Notes(s *models.Session) string
}

// TemplateNotes writes a deterministic summary from the session state.
type TemplateNotes struct{}

func (TemplateNotes) Notes(s *models.Session) string {
	var parts []string

	if types := s.ScamTypeList(); len(types) > 0 {
		parts = append(parts, "Scam type: "+strings.Join(types, ", "))
	} else {
		parts = append(parts, "Scam type: unclassified")
	}

	parts = append(parts, fmt.Sprintf("Persona %s engaged the scammer for %d messages (confidence %.2f)",
		s.PersonaName, s.MessageCount, s.ScamConfidence))

	counts := []struct {
		label string
		kind  models.ArtifactKind
	}{
		{"UPI IDs", models.KindUPIID},
		{"phone numbers", models.KindPhoneNumber},
		{"bank accounts", models.KindBankAccount},
		{"IFSC codes", models.KindIFSCCode},
		{"phishing links", models.KindPhishingLink},
	}
	var found []string
	for _, c := range counts {
		if n := len(s.Intelligence.Values(c.kind)); n > 0 {
			found = append(found, fmt.Sprintf("%d %s", n, c.label))
		}
	}
	if len(found) > 0 {
		parts = append(parts, "Extracted "+strings.Join(found, ", "))
	}

	if kws := s.Intelligence.Values(models.KindSuspiciousKeyword).Sorted(); len(kws) > 0 {
		parts = append(parts, "Pressure tactics: "+strings.Join(kws, ", "))
	}

	return strings.Join(parts, ". ") + "."
}
