package notify

import (
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"stw/internal/models"
	"stw/internal/providers"
	"stw/internal/services"
)

type NotifierInterface interface {
	TicketCompleted(t *models.Ticket)
	TicketDeleted(t *models.Ticket)
	ExpiringSoon(tickets []*models.Ticket)
}

// TelegramNotifier sends best-effort, fire-and-forget messages. Errors are
// logged and never surfaced to the user-facing flow. The bot instance is
// built lazily from current settings and rebuilt when the token changes.
type TelegramNotifier struct {
	service services.WalletServiceInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface

	mu       sync.Mutex
	bot      *tele.Bot
	botToken string
}

func NewTelegramNotifier(service services.WalletServiceInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) NotifierInterface {
	return &TelegramNotifier{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

func (tn *TelegramNotifier) TicketCompleted(t *models.Ticket) {
	tn.send("completed", fmt.Sprintf("✅ Ticket completed: %s", displayName(t)))
}

func (tn *TelegramNotifier) TicketDeleted(t *models.Ticket) {
	tn.send("deleted", fmt.Sprintf("🗑 Ticket deleted: %s", displayName(t)))
}

func (tn *TelegramNotifier) ExpiringSoon(tickets []*models.Ticket) {
	if len(tickets) == 0 {
		return
	}
	msg := fmt.Sprintf("⏰ %d ticket(s) expiring soon:", len(tickets))
	for _, t := range tickets {
		msg += fmt.Sprintf("\n• %s (%s)", displayName(t), t.Expiry)
	}
	tn.send("expiring", msg)
}

func displayName(t *models.Ticket) string {
	if t.ProductName != "" {
		return t.ProductName
	}
	return t.ID
}

func (tn *TelegramNotifier) send(kind, text string) {
	settings := tn.service.GetSettings().Telegram
	if !settings.Enabled || settings.BotToken == "" || settings.ChatID == 0 {
		return
	}

	go func() {
		bot, err := tn.botFor(settings.BotToken)
		if err != nil {
			tn.logger.Warnf(providers.TypeApp, "Telegram bot unavailable: %s", err)
			return
		}
		if _, err := bot.Send(tele.ChatID(settings.ChatID), text); err != nil {
			tn.logger.Warnf(providers.TypeApp, "Telegram notification failed: %s", err)
			return
		}
		tn.metrics.IncNotificationsTotal(kind)
		tn.logger.Debugf(providers.TypeApp, "Telegram notification sent: %s", kind)
	}()
}

func (tn *TelegramNotifier) botFor(token string) (*tele.Bot, error) {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	if tn.bot != nil && tn.botToken == token {
		return tn.bot, nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	tn.bot = bot
	tn.botToken = token
	return bot, nil
}
