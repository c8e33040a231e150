package notifier

import (
	"fmt"
	"strings"
	"time"

	"helmsman/internal/pkg/text"
)

type EventType string

const (
	EventTradeOpened   EventType = "TRADE_OPENED"
	EventTradeClosed   EventType = "TRADE_CLOSED"
	EventTradeRejected EventType = "TRADE_REJECTED"
	EventExecutionErr  EventType = "EXECUTION_ALERT"
	EventStoreErr      EventType = "STORE_ALERT"
	EventReport        EventType = "REPORT"
)

const maxMessageLen = 3800

// Event 统一的推送载体，按类型渲染成 Telegram Markdown。
type Event struct {
	Type       EventType
	Symbol     string
	Action     string
	Price      float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	Confidence float64
	PnL        float64
	Reasoning  string
	Detail     string
	At         time.Time
}

var eventIcons = map[EventType]string{
	EventTradeOpened:   "🟢",
	EventTradeClosed:   "🔵",
	EventTradeRejected: "🟡",
	EventExecutionErr:  "🔴",
	EventStoreErr:      "🔴",
	EventReport:        "📊",
}

func (e Event) Render() string {
	var b strings.Builder
	icon := eventIcons[e.Type]
	b.WriteString(strings.TrimSpace(icon + " " + string(e.Type)))
	if e.Symbol != "" {
		b.WriteString(" " + e.Symbol)
	}
	b.WriteString("\n\n")

	var lines []string
	if e.Action != "" {
		lines = append(lines, "action: "+e.Action)
	}
	if e.Price > 0 {
		lines = append(lines, fmt.Sprintf("price: %.6g", e.Price))
	}
	if e.Quantity > 0 {
		lines = append(lines, fmt.Sprintf("quantity: %.8g", e.Quantity))
	}
	if e.StopLoss > 0 {
		lines = append(lines, fmt.Sprintf("stop: %.6g", e.StopLoss))
	}
	if e.TakeProfit > 0 {
		lines = append(lines, fmt.Sprintf("take: %.6g", e.TakeProfit))
	}
	if e.Confidence > 0 {
		lines = append(lines, fmt.Sprintf("confidence: %.2f", e.Confidence))
	}
	if e.Type == EventTradeClosed || e.Type == EventReport {
		lines = append(lines, fmt.Sprintf("pnl: %+.2f", e.PnL))
	}
	if len(lines) > 0 {
		b.WriteString("```\n")
		for _, line := range lines {
			b.WriteString("- " + sanitize(line) + "\n")
		}
		b.WriteString("```\n\n")
	}

	if r := strings.TrimSpace(e.Reasoning); r != "" {
		b.WriteString(sanitize(r) + "\n")
	}
	if d := strings.TrimSpace(e.Detail); d != "" {
		b.WriteString(sanitize(d) + "\n")
	}
	if !e.At.IsZero() {
		b.WriteString("时间：" + e.At.Format("2006-01-02 15:04:05 MST"))
	}

	return text.Truncate(strings.TrimSpace(b.String()), maxMessageLen)
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
