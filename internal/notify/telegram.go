// Package notify delivers listing alerts to Telegram.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/valpere/landwatch/internal/security"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// DefaultAPIURL is the Telegram Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Config configures the Telegram notifier.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	BotToken      string        `yaml:"bot_token"`
	ChatID        string        `yaml:"chat_id"`
	APIURL        string        `yaml:"api_url,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	ResendPending bool          `yaml:"resend_pending"`
}

// Notifier sends messages about listings and runs.
type Notifier interface {
	// Notify reports whether the listing message was delivered.
	Notify(ctx context.Context, l types.Listing) bool
	NotifySummary(ctx context.Context, s types.RunSummary, next time.Duration) error
	NotifyError(ctx context.Context, msg string) error
	Enabled() bool
}

// New returns a Telegram notifier, or a disabled one when cfg is not enabled.
func New(cfg Config, logger *slog.Logger) (Notifier, error) {
	if logger == nil {
		logger = utils.NewComponentLogger("notify")
	}
	if !cfg.Enabled {
		return Disabled{logger: logger}, nil
	}
	return NewTelegram(cfg, logger)
}

// Telegram posts HTML messages through the Bot API sendMessage method.
type Telegram struct {
	cfg     Config
	client  *http.Client
	printer *message.Printer
	now     func() time.Time
	logger  *slog.Logger
}

// NewTelegram validates credentials and builds the client.
func NewTelegram(cfg Config, logger *slog.Logger) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, utils.NewError(utils.ErrCodeConfiguration, "telegram bot token and chat id are required").Build()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = utils.NewComponentLogger("notify")
	}
	return &Telegram{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		printer: message.NewPrinter(language.Korean),
		now:     time.Now,
		logger:  logger,
	}, nil
}

func (t *Telegram) Enabled() bool { return true }

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Send posts text as an HTML message.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: t.cfg.ChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeNotifyFailed, "encode message")
	}
	endpoint := strings.TrimRight(t.cfg.APIURL, "/") + "/bot" + t.cfg.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeNotifyFailed, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return utils.WrapError(security.RedactError(err, t.cfg.BotToken), utils.ErrCodeNotifyFailed, "send message")
	}
	defer resp.Body.Close()

	var out apiResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		return utils.NewError(utils.ErrCodeNotifyFailed, "telegram rejected message").
			WithContext("status", resp.StatusCode).
			WithContext("description", out.Description).
			Build()
	}
	return nil
}

// Notify sends the listing message.
func (t *Telegram) Notify(ctx context.Context, l types.Listing) bool {
	if err := t.Send(ctx, t.FormatListing(l)); err != nil {
		t.logger.Error("listing notification failed", "id", l.ID, "error", err)
		return false
	}
	t.logger.Info("listing notified", "id", l.ID, "complex", l.ComplexName)
	return true
}

// NotifySummary sends the end-of-run report.
func (t *Telegram) NotifySummary(ctx context.Context, s types.RunSummary, next time.Duration) error {
	return t.Send(ctx, t.FormatSummary(s, next))
}

// NotifyError sends an error report.
func (t *Telegram) NotifyError(ctx context.Context, msg string) error {
	return t.Send(ctx, FormatError(msg))
}

// FormatListing renders a listing as an HTML message.
func (t *Telegram) FormatListing(l types.Listing) string {
	var b strings.Builder
	b.WriteString("🏠 <b>새 매물 발견!</b>\n\n")
	fmt.Fprintf(&b, "📌 <b>단지명</b>: %s\n", orUnknown(l.ComplexName))
	fmt.Fprintf(&b, "💰 <b>거래</b>: %s %s", l.TradeType.Label(), t.FormatPrice(l.Price))
	if l.RentPrice > 0 {
		fmt.Fprintf(&b, " / 월 %s", t.FormatPrice(l.RentPrice))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "📐 <b>면적</b>: %.1f㎡ (전용 %.1f㎡)\n", l.AreaGross, l.AreaNet)
	fmt.Fprintf(&b, "🏢 <b>층수</b>: %s\n", html.EscapeString(formatFloor(l.Floor, l.TotalFloors)))
	fmt.Fprintf(&b, "🧭 <b>방향</b>: %s\n", orUnknown(l.Direction))
	if l.ApprovalYear > 0 {
		age := t.now().Year() - l.ApprovalYear
		fmt.Fprintf(&b, "📅 <b>승인</b>: %d년 (%d년차)\n", l.ApprovalYear, age)
	} else {
		b.WriteString("📅 <b>승인</b>: 정보 없음\n")
	}
	b.WriteString(t.printer.Sprintf("🏘 <b>세대수</b>: %d세대", l.HouseholdCount))
	if l.RoomCount > 0 || l.BathroomCount > 0 {
		fmt.Fprintf(&b, "\n🛏 <b>구조</b>: 방 %d개, 욕실 %d개", l.RoomCount, l.BathroomCount)
	}
	if d := l.Description(); d != "" {
		fmt.Fprintf(&b, "\n🏷 %s", html.EscapeString(d))
	}
	if l.URL != "" {
		fmt.Fprintf(&b, "\n\n🔗 <a href=\"%s\">상세보기</a>", html.EscapeString(l.URL))
	}
	return b.String()
}

// FormatSummary renders the run report.
func (t *Telegram) FormatSummary(s types.RunSummary, next time.Duration) string {
	var b strings.Builder
	b.WriteString("📊 <b>크롤링 완료 보고</b>\n\n")
	b.WriteString(t.printer.Sprintf("🔍 <b>전체 매물</b>: %d개\n", s.Fetched))
	b.WriteString(t.printer.Sprintf("✅ <b>필터 통과</b>: %d개\n", s.Filtered))
	b.WriteString(t.printer.Sprintf("✨ <b>신규 매물</b>: %d개\n", s.New))
	b.WriteString(t.printer.Sprintf("📬 <b>알림 전송</b>: %d개\n", s.Notified))
	if s.Errors > 0 {
		b.WriteString(t.printer.Sprintf("⚠️ <b>오류</b>: %d건\n", s.Errors))
	}
	if s.StoredAll > 0 {
		b.WriteString(t.printer.Sprintf("💾 <b>DB 총 매물</b>: %d개\n", s.StoredAll))
	}
	fmt.Fprintf(&b, "⏱ 소요 시간: %s\n", s.Duration.Round(time.Second))
	if next > 0 {
		fmt.Fprintf(&b, "\n⏰ 다음 실행: %s 후", formatInterval(next))
	}
	return b.String()
}

// FormatError renders an error report.
func FormatError(msg string) string {
	return "⚠️ <b>오류 발생</b>\n\n" + html.EscapeString(msg) + "\n\n잠시 후 다시 시도됩니다."
}

// FormatPrice renders a price in 만원 units as "12억 5,000만원", "12억원" or
// "9,500만원".
func (t *Telegram) FormatPrice(manwon int64) string {
	return formatPrice(t.printer, manwon)
}

func formatPrice(p *message.Printer, manwon int64) string {
	eok, rest := manwon/10000, manwon%10000
	switch {
	case eok == 0:
		return p.Sprintf("%d만원", rest)
	case rest == 0:
		return p.Sprintf("%d억원", eok)
	default:
		return p.Sprintf("%d억 %d만원", eok, rest)
	}
}

func formatFloor(floor string, total int) string {
	switch {
	case floor == "":
		return "정보 없음"
	case strings.Contains(floor, "/") || total == 0:
		return floor
	default:
		return fmt.Sprintf("%s/%d층", floor, total)
	}
}

func formatInterval(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%d시간 %d분", h, m)
	case h > 0:
		return fmt.Sprintf("%d시간", h)
	default:
		return fmt.Sprintf("%d분", m)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "정보 없음"
	}
	return html.EscapeString(s)
}

// Disabled logs instead of sending.
type Disabled struct {
	logger *slog.Logger
}

func (d Disabled) Enabled() bool { return false }

func (d Disabled) Notify(_ context.Context, l types.Listing) bool {
	if d.logger != nil {
		d.logger.Info("notification skipped, telegram disabled", "id", l.ID)
	}
	return false
}

func (d Disabled) NotifySummary(context.Context, types.RunSummary, time.Duration) error { return nil }

func (d Disabled) NotifyError(context.Context, string) error { return nil }
