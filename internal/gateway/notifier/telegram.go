package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// 中文说明：
// Telegram 通知器：将成交/风控/系统告警推送至指定群或频道。
// 失败线性退避重试；被限流（429）时优先遵循服务端的 Retry-After。

const (
	telegramAPI     = "https://api.telegram.org/bot%s/sendMessage"
	telegramRetries = 3
	telegramTimeout = 15 * time.Second
)

type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	retries  int
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: telegramTimeout},
		retries:  telegramRetries,
	}
}

// SendText 发送 Markdown 文本消息，失败自动重试。
func (t *Telegram) SendText(text string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram 配置不完整")
	}
	body, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf(telegramAPI, t.botToken)
	var lastErr error
	for attempt := 1; attempt <= t.retries; attempt++ {
		wait, err := t.post(url, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if wait <= 0 {
			wait = time.Duration(attempt) * time.Second
		}
		time.Sleep(wait)
	}
	return lastErr
}

// post 返回失败时建议的等待时长（取自 Retry-After，可为 0）。
func (t *Telegram) post(url string, body []byte) (time.Duration, error) {
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 == 2 {
		return 0, nil
	}
	var wait time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	return wait, fmt.Errorf("telegram status=%d", resp.StatusCode)
}
