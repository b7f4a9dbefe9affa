// Package notify alerts operators when a scam session is reported.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// Config for the Telegram sink
type Config struct {
	Enabled  bool
	BotToken string
	ChatID   int64
}

// messageSender is the subset of the bot API used here.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts a summary of every reported session to an operator chat.
type TelegramSink struct {
	api    messageSender
	chatID int64
	logger *zap.Logger
}

// NewTelegramSink creates the sink. It returns nil, nil when disabled.
func NewTelegramSink(cfg Config, logger *zap.Logger) (*TelegramSink, error) {
	if !cfg.Enabled || cfg.BotToken == "" {
		logger.Info("Telegram notifications are disabled (telegram.enabled=false or token is empty)")
		return nil, nil
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat_id is required")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &TelegramSink{api: botAPI, chatID: cfg.ChatID, logger: logger}, nil
}

// NotifyReported sends the delivery summary to the operator chat.
func (t *TelegramSink) NotifyReported(ctx context.Context, rec models.DeliveryRecord) error {
	if t == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatReport(rec))
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	t.logger.Debug("Operator notified", zap.String("session_id", rec.SessionID), zap.Int64("chat_id", t.chatID))
	return nil
}

// FormatReport renders a delivery record as a plain-text operator alert.
func FormatReport(rec models.DeliveryRecord) string {
	var b strings.Builder
	p := rec.Payload

	icon := "✅"
	if rec.Status != models.DeliveryDelivered {
		icon = "⚠️"
	}
	fmt.Fprintf(&b, "%s Scam session reported\n", icon)
	fmt.Fprintf(&b, "Session: %s\n", rec.SessionID)
	fmt.Fprintf(&b, "Messages: %d\n", p.TotalMessagesExchanged)
	fmt.Fprintf(&b, "Callback: %s", rec.Status)
	if rec.Attempts > 0 {
		fmt.Fprintf(&b, " (%d attempts)", rec.Attempts)
	}
	b.WriteString("\n")

	lines := []struct {
		label  string
		values []string
	}{
		{"UPI", p.ExtractedIntelligence.UPIIDs},
		{"Phones", p.ExtractedIntelligence.PhoneNumbers},
		{"Accounts", p.ExtractedIntelligence.BankAccounts},
		{"Links", p.ExtractedIntelligence.PhishingLinks},
	}
	for _, l := range lines {
		if len(l.values) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", l.label, strings.Join(l.values, ", "))
		}
	}

	if p.AgentNotes != "" {
		fmt.Fprintf(&b, "\n%s", p.AgentNotes)
	}
	return strings.TrimRight(b.String(), "\n")
}
