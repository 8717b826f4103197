// Package telegram forwards operator-facing alerts to a Telegram chat, so
// dispatchers see new pending requests even without the operator app open.
package telegram

import (
	"fmt"
	"log"
	"strings"

	"roadassist/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AlertBot posts pending-request summaries into the operator chat. It is
// outbound only; it never reads updates.
type AlertBot struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewAlertBot(token string, chatID int64) (*AlertBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("operator alert bot authorized as %s", bot.Self.UserName)
	return &AlertBot{api: bot, chatID: chatID}, nil
}

// PendingRequestAlert implements assist.Alerter.
func (b *AlertBot) PendingRequestAlert(summary models.AssistSummary) error {
	var sb strings.Builder
	sb.WriteString("🚨 New assistance request\n")
	writeLine(&sb, "Client", summary.ClientName)
	writeLine(&sb, "Place", summary.PlaceName)
	writeLine(&sb, "Address", summary.Address)
	writeLine(&sb, "Vehicle", summary.Vehicle)
	writeLine(&sb, "At", summary.CreatedAt)

	msg := tgbotapi.NewMessage(b.chatID, sb.String())
	_, err := b.api.Send(msg)
	return err
}

func writeLine(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, value)
}
