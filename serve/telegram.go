package serve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/banklens/banklens"
)

// Notifier sends Telegram messages when statements finish parsing and
// answers a /status command with service stats.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	store  Store
}

// NewNotifier creates a Notifier connected to the given token. chatID is the
// chat completion messages are sent to; zero disables push notifications
// (commands still work).
func NewNotifier(token string, chatID int64, store Store) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = false
	return &Notifier{
		bot:    bot,
		chatID: chatID,
		store:  store,
	}, nil
}

// NotifyStatement sends a completion or failure summary for a statement.
func (n *Notifier) NotifyStatement(rec StatementRecord) {
	if n.chatID == 0 {
		return
	}

	var msg string
	switch rec.Status {
	case banklens.StatusCompleted:
		msg = fmt.Sprintf("Statement %s parsed: %d transactions for %s",
			rec.ID, rec.TxCount, rec.HolderName)
		if len(rec.Warnings) > 0 {
			msg += fmt.Sprintf(" (%d warnings)", len(rec.Warnings))
		}
	case banklens.StatusFailed:
		msg = fmt.Sprintf("Statement %s failed: %s", rec.ID, rec.Error)
	default:
		return
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, msg)); err != nil {
		slog.Warn("telegram: failed to send message", "error", err)
	}
}

// Start runs the long-polling loop until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := n.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			n.handle(update)
		case <-ctx.Done():
			n.bot.StopReceivingUpdates()
			return
		}
	}
}

// handle processes a single Telegram update.
func (n *Notifier) handle(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	chatID := update.Message.Chat.ID

	switch {
	case strings.HasPrefix(text, "/status"):
		stats, err := n.store.Stats()
		if err != nil {
			n.reply(chatID, "Error: "+err.Error())
			return
		}
		n.reply(chatID, fmt.Sprintf(
			"Statements: %d total, %d completed, %d failed, %d queued\nTransactions: %d",
			stats.TotalStatements,
			stats.ByStatus[banklens.StatusCompleted],
			stats.ByStatus[banklens.StatusFailed],
			stats.ByStatus[banklens.StatusQueued],
			stats.TotalTransactions,
		))
	case strings.HasPrefix(text, "/recent"):
		recs, err := n.store.ListStatements(5)
		if err != nil {
			n.reply(chatID, "Error: "+err.Error())
			return
		}
		if len(recs) == 0 {
			n.reply(chatID, "No statements yet.")
			return
		}
		var b strings.Builder
		for _, rec := range recs {
			fmt.Fprintf(&b, "%s  %s  %d txns\n", rec.ID, rec.Status, rec.TxCount)
		}
		n.reply(chatID, b.String())
	}
}

func (n *Notifier) reply(chatID int64, text string) {
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Warn("telegram: failed to send message", "error", err)
	}
}
