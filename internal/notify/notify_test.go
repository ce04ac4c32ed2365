package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/mail.v2"

	"github.com/rewired-gh/tenderarb/internal/models"
)

func testResult() *models.RunResult {
	annual := 48.67
	return &models.RunResult{
		Summary: models.RunSummary{
			RunID:       "run-1",
			Today:       models.NewDate(2026, time.February, 20),
			GeneratedAt: time.Date(2026, time.February, 20, 21, 0, 0, 0, time.UTC),
			Skipped:     []models.SkippedItem{{Stage: models.StageExtract, Ticker: "EEE", Reason: "no offer price found"}},
		},
		Deals: []models.Deal{
			{
				Key: "DCBO@2026-02-05", Ticker: "DCBO", OfferType: models.OfferIssuerFixed,
				OfferPrice: 52, CurrentPrice: 50, ExpiryDate: models.NewDate(2026, time.March, 22),
				OddLotPriority: true, FilingURL: "https://www.sec.gov/Archives/edgar/data/1/0001.htm",
				Economics: &models.Economics{SpreadAbs: 2, SpreadPct: 4, DaysRemaining: 30, AnnualizedReturn: &annual},
				Score:     1.25, Rating: models.RatingA, Rank: 1,
			},
			{
				Key: "LE@2026-02-09", Ticker: "LE", OfferType: models.OfferThirdParty,
				OfferPrice: 2.5, CurrentPrice: 2.45, ExpiryDate: models.NewDate(2026, time.March, 10),
				PriceStale: true,
				Economics:  &models.Economics{SpreadAbs: 0.05, SpreadPct: 2.04, DaysRemaining: 18},
				Score:      0.3, Rating: models.RatingC, Rank: 2,
			},
		},
	}
}

type fakeNotifier struct {
	name  string
	err   error
	calls int
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(context.Context, *models.RunResult, string) error {
	f.calls++
	return f.err
}

func TestAll_ContinuesAfterFailure(t *testing.T) {
	broken := &fakeNotifier{name: "broken", err: errors.New("smtp down")}
	ok := &fakeNotifier{name: "ok"}

	err := All(context.Background(), []Notifier{broken, ok}, testResult(), "# Report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: smtp down")
	assert.Equal(t, 1, ok.calls)
}

func TestAll_NoErrors(t *testing.T) {
	assert.NoError(t, All(context.Background(), []Notifier{&fakeNotifier{name: "ok"}}, testResult(), ""))
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"2026-02-20", "2026\\-02\\-20"},
		{"$52.00", "$52\\.00"},
		{"a_b*c", "a\\_b\\*c"},
		{"(x)!", "\\(x\\)\\!"},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeMarkdownV2(tt.in), tt.in)
	}
}

func TestFormatMessage(t *testing.T) {
	msg := formatMessage(testResult(), 5)

	assert.Contains(t, msg, "*Tender Offer Arbitrage* 2026\\-02\\-20")
	assert.Contains(t, msg, "Ranked: 2 · Skipped: 1 · Excluded: 0")
	assert.Contains(t, msg, "1\\. [DCBO](https://www.sec.gov/Archives/edgar/data/1/0001.htm) \\[A\\] ISSUER\\_FIXED")
	assert.Contains(t, msg, "Offer $52\\.00 · Price $50\\.00 · Spread *4\\.00%*")
	assert.Contains(t, msg, "Expiry 2026\\-03\\-22 \\(30d\\) · Annualized 48\\.67% · Odd\\-lot yes")
	assert.Contains(t, msg, "2\\. *LE* \\[C\\] THIRD\\_PARTY")
	assert.Contains(t, msg, "Price $2\\.45 ⚠️ stale")
	assert.Contains(t, msg, "Annualized n/a")
}

func TestFormatMessage_TopN(t *testing.T) {
	msg := formatMessage(testResult(), 1)
	assert.Contains(t, msg, "and 1 more in the full report")
	assert.NotContains(t, msg, "*LE*")
}

func TestFormatMessage_Empty(t *testing.T) {
	msg := formatMessage(&models.RunResult{}, 5)
	assert.Contains(t, msg, "No deals qualified in this run\\.")
}

type fakeBot struct {
	failures int
	sent     []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("too many requests")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegram_RetriesThenSends(t *testing.T) {
	bot := &fakeBot{failures: 2}
	tg := newTelegram(bot, 42, 5, 3, time.Millisecond)

	require.NoError(t, tg.Notify(context.Background(), testResult(), ""))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, "MarkdownV2", bot.sent[0].ParseMode)
}

func TestTelegram_GivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	tg := newTelegram(bot, 42, 5, 2, time.Millisecond)

	err := tg.Notify(context.Background(), testResult(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Empty(t, bot.sent)
}

func TestRenderHTML(t *testing.T) {
	html, err := renderHTML("# Report\n\n| Rank | Ticker |\n|---|---|\n| 1 | DCBO |\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Report</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>DCBO</td>")
}

func TestRenderHTML_StripsScripts(t *testing.T) {
	html, err := renderHTML("> odd lot <script>alert(1)</script> priority\n")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "priority")
}

func TestEmailSender_Notify(t *testing.T) {
	var sent *gomail.Message
	s := NewEmailSender(EmailConfig{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		FromEmail:  "arb@example.com",
		ToEmails:   []string{"desk@example.com"},
	})
	s.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	require.NoError(t, s.Notify(context.Background(), testResult(), "# Report\n\n| Rank |\n|---|\n| 1 |\n"))
	require.NotNil(t, sent)

	assert.Equal(t, []string{"Tender offer arbitrage 2026-02-20: 2 deals"}, sent.GetHeader("Subject"))
	assert.Equal(t, []string{"desk@example.com"}, sent.GetHeader("To"))

	var buf bytes.Buffer
	_, err := sent.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "report-2026-02-20.md")
}

func TestEmailSender_SendError(t *testing.T) {
	s := NewEmailSender(EmailConfig{ToEmails: []string{"desk@example.com"}})
	s.send = func(*gomail.Message) error { return errors.New("connection refused") }

	err := s.Notify(context.Background(), testResult(), "# Report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKafkaPublisher_OneMessagePerDeal(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	result := testResult()

	for _, d := range result.Deals {
		key := d.Key
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var event DealEvent
			if err := json.Unmarshal(val, &event); err != nil {
				return err
			}
			if event.RunID != "run-1" || event.Deal.Key != key {
				return fmt.Errorf("unexpected event %s/%s", event.RunID, event.Deal.Key)
			}
			return nil
		})
	}

	k := &KafkaPublisher{producer: producer, topic: "tender-deals"}
	require.NoError(t, k.Notify(context.Background(), result, ""))
	require.NoError(t, k.Close())
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))

	k := &KafkaPublisher{producer: producer, topic: "tender-deals"}
	err := k.Notify(context.Background(), testResult(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DCBO@2026-02-05")
	require.NoError(t, k.Close())
}

func TestTelegram_ErrorAndRecovery(t *testing.T) {
	bot := &fakeBot{}
	tg := newTelegram(bot, 7, 5, 1, time.Millisecond)

	require.NoError(t, tg.SendError(context.Background(), errors.New("edgar: status 503")))
	require.NoError(t, tg.SendRecovery(context.Background(), 2))
	require.Len(t, bot.sent, 2)

	assert.Contains(t, bot.sent[0].Text, "edgar: status 503")
	assert.Contains(t, bot.sent[1].Text, "after 2 failed run\\(s\\)")
}
