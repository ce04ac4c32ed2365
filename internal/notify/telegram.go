package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/tenderarb/internal/models"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a short summary of the top ranked deals to a chat.
type Telegram struct {
	bot            botSender
	chatID         int64
	topN           int
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(botToken, chatID string, topN, maxRetries int, retryDelayBase time.Duration) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	return newTelegram(bot, chatIDInt, topN, maxRetries, retryDelayBase), nil
}

func newTelegram(bot botSender, chatID int64, topN, maxRetries int, retryDelayBase time.Duration) *Telegram {
	if topN <= 0 {
		topN = 5
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Telegram{
		bot:            bot,
		chatID:         chatID,
		topN:           topN,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends the summary, retrying with linear back-off.
func (t *Telegram) Notify(ctx context.Context, result *models.RunResult, _ string) error {
	return t.send(ctx, formatMessage(result, t.topN))
}

// SendError reports a failed scheduled run.
func (t *Telegram) SendError(ctx context.Context, runErr error) error {
	return t.send(ctx, "⚠️ *Tender offer run failed*\n\n"+escapeMarkdownV2(runErr.Error()))
}

// SendRecovery reports that runs succeed again after failures consecutive
// failed runs.
func (t *Telegram) SendRecovery(ctx context.Context, failures int) error {
	return t.send(ctx, fmt.Sprintf("✅ *Tender offer runs recovered* after %d failed run\\(s\\)", failures))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "MarkdownV2"
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", t.maxRetries, lastErr)
}

func formatMessage(result *models.RunResult, topN int) string {
	var b strings.Builder
	s := result.Summary

	fmt.Fprintf(&b, "📊 *Tender Offer Arbitrage* %s\n", escapeMarkdownV2(s.Today.String()))
	fmt.Fprintf(&b, "Ranked: %d · Skipped: %d · Excluded: %d\n\n", len(result.Deals), len(s.Skipped), len(s.Excluded))

	if len(result.Deals) == 0 {
		b.WriteString("No deals qualified in this run\\.\n")
		return b.String()
	}

	for i, d := range result.Deals {
		if i == topN {
			fmt.Fprintf(&b, "\\.\\.\\. and %d more in the full report\n", len(result.Deals)-topN)
			break
		}

		title := "*" + escapeMarkdownV2(d.Ticker) + "*"
		if d.FilingURL != "" {
			title = fmt.Sprintf("[%s](%s)", escapeMarkdownV2(d.Ticker), d.FilingURL)
		}
		fmt.Fprintf(&b, "%d\\. %s \\[%s\\] %s\n", d.Rank, title, d.Rating, escapeMarkdownV2(string(d.OfferType)))

		if d.Economics == nil {
			b.WriteString("\n")
			continue
		}

		stale := ""
		if d.PriceStale {
			stale = " ⚠️ stale"
		}
		fmt.Fprintf(&b, "   Offer %s · Price %s%s · Spread *%s*\n",
			escapeMarkdownV2(fmt.Sprintf("$%.2f", d.OfferPrice)),
			escapeMarkdownV2(fmt.Sprintf("$%.2f", d.CurrentPrice)),
			stale,
			escapeMarkdownV2(fmt.Sprintf("%.2f%%", d.SpreadPct)))

		annual := "n/a"
		if d.AnnualizedReturn != nil {
			annual = fmt.Sprintf("%.2f%%", *d.AnnualizedReturn)
		}
		oddLot := "no"
		if d.OddLotPriority {
			oddLot = "yes"
		}
		fmt.Fprintf(&b, "   Expiry %s \\(%dd\\) · Annualized %s · Odd\\-lot %s\n\n",
			escapeMarkdownV2(d.ExpiryDate.String()), d.DaysRemaining, escapeMarkdownV2(annual), oddLot)
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
