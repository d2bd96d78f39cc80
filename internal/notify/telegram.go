// internal/notify/telegram.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/solwatch/dlmm-sentinel/internal/monitor"
	"go.uber.org/zap"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	sendTimeout    = 10 * time.Second
	sendMaxTries   = 3
)

// Telegram talks to the Bot API over plain HTTP. It doubles as the monitor's
// alert notifier and as the transport for the command bot's long polling.
type Telegram struct {
	token      string
	apiBase    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Update is one entry of a getUpdates response.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      Chat   `json:"chat"`
	From      *From  `json:"from"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type From struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func NewTelegram(token string, logger *zap.Logger) *Telegram {
	return &Telegram{
		token:   token,
		apiBase: defaultAPIBase,
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
		logger: logger.Named("telegram"),
	}
}

// Deliver implements monitor.Notifier. An alert gets exactly one delivery
// attempt per cycle: a send that times out after the server accepted it
// would replay as a duplicate notification if retried, and the baseline
// update happens regardless of the outcome.
func (t *Telegram) Deliver(ctx context.Context, chatID int64, alert monitor.Alert) error {
	if err := t.call(ctx, "sendMessage", messagePayload(chatID, FormatAlert(alert)), nil); err != nil {
		return fmt.Errorf("failed to deliver alert to chat %d: %w", chatID, err)
	}
	return nil
}

// SendMessage posts an HTML-formatted chat reply, retrying transient
// failures. Only the command bot uses this; alerts go through Deliver.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := messagePayload(chatID, text)

	operation := func() (struct{}, error) {
		return struct{}{}, t.call(ctx, "sendMessage", payload, nil)
	}
	notify := func(err error, duration time.Duration) {
		t.logger.Debug("Retrying Telegram send",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
			zap.Duration("backoff", duration))
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(sendMaxTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

func messagePayload(chatID int64, text string) map[string]interface{} {
	return map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
}

// GetUpdates long-polls for incoming messages after the given offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message"},
	}

	// The request timeout must outlive the server-side long-poll window.
	client := &http.Client{Timeout: time.Duration(timeoutSec+10) * time.Second}

	var updates []Update
	if err := t.callWithClient(ctx, client, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (t *Telegram) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	return t.callWithClient(ctx, t.httpClient, method, payload, result)
}

func (t *Telegram) callWithClient(ctx context.Context, client *http.Client, method string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to encode %s payload: %w", method, err))
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create %s request: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		err := fmt.Errorf("%s rejected: %s", method, apiResp.Description)
		// 4xx responses are not retryable, the request itself is wrong.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	if result != nil {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}
