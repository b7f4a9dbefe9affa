package models

import (
	"strconv"
	"strings"
)

// Metadata describes where an inbound message came from.
type Metadata struct {
	Channel  string `json:"channel"`
	Language string `json:"language"`
	Locale   string `json:"locale"`
}

// DefaultMetadata returns the values assumed when a request carries no metadata.
func DefaultMetadata() Metadata {
	return Metadata{Channel: "SMS", Language: "English", Locale: "IN"}
}

// withDefaults fills empty fields.
func (m Metadata) withDefaults() Metadata {
	def := DefaultMetadata()
	if m.Channel == "" {
		m.Channel = def.Channel
	}
	if m.Language == "" {
		m.Language = def.Language
	}
	if m.Locale == "" {
		m.Locale = def.Locale
	}
	return m
}

// MessageRequest is the inbound envelope of the honeypot endpoint.
type MessageRequest struct {
	SessionID           string    `json:"sessionId"`
	Message             Message   `json:"message"`
	ConversationHistory []Message `json:"conversationHistory"`
	Metadata            *Metadata `json:"metadata,omitempty"`
}

// Validate checks required fields and normalizes optional ones in place.
// A request that fails validation must not touch any session state.
func (r *MessageRequest) Validate() error {
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.SessionID == "" {
		return &ValidationError{Field: "sessionId", Reason: "is required"}
	}
	if err := r.Message.Validate("message"); err != nil {
		return err
	}
	if strings.TrimSpace(r.Message.Text) == "" {
		return &ValidationError{Field: "message.text", Reason: "is required"}
	}
	for i, m := range r.ConversationHistory {
		if err := m.Validate("conversationHistory[" + strconv.Itoa(i) + "]"); err != nil {
			return err
		}
	}
	if r.ConversationHistory == nil {
		r.ConversationHistory = []Message{}
	}
	meta := DefaultMetadata()
	if r.Metadata != nil {
		meta = r.Metadata.withDefaults()
	}
	r.Metadata = &meta
	return nil
}

// EngagementMetrics summarizes how long the scammer has been kept busy.
type EngagementMetrics struct {
	EngagementDurationSeconds int `json:"engagementDurationSeconds"`
	TotalMessagesExchanged    int `json:"totalMessagesExchanged"`
}

// MessageResponse is the reply envelope of the honeypot endpoint.
type MessageResponse struct {
	Status                string                 `json:"status"`
	Reply                 string                 `json:"reply"`
	ScamDetected          bool                   `json:"scamDetected"`
	EngagementMetrics     *EngagementMetrics     `json:"engagementMetrics,omitempty"`
	ExtractedIntelligence *ExtractedIntelligence `json:"extractedIntelligence,omitempty"`
	AgentNotes            string                 `json:"agentNotes,omitempty"`
}

// DetailedMessageResponse exposes tracker internals for testing and debugging.
type DetailedMessageResponse struct {
	SessionID             string                `json:"sessionId"`
	Reply                 string                `json:"reply"`
	ScamDetected          bool                  `json:"scamDetected"`
	ScamIntents           []string              `json:"scamIntents"`
	Confidence            float64               `json:"confidence"`
	ShouldContinue        bool                  `json:"shouldContinue"`
	ExtractedIntelligence ExtractedIntelligence `json:"extractedIntelligence"`
	ConversationPhase     string                `json:"conversationPhase"`
	MessageCount          int                   `json:"messageCount"`
}

// CallbackPayload is reported once per confirmed scam session.
type CallbackPayload struct {
	SessionID              string                `json:"sessionId"`
	ScamDetected           bool                  `json:"scamDetected"`
	TotalMessagesExchanged int                   `json:"totalMessagesExchanged"`
	ExtractedIntelligence  ExtractedIntelligence `json:"extractedIntelligence"`
	AgentNotes             string                `json:"agentNotes"`
}
