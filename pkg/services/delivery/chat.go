package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

// ChatChannel posts a message to an incoming-webhook URL, the recipient address.
type ChatChannel struct {
	client *http.Client
}

func NewChatChannel(timeout time.Duration) *ChatChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChatChannel{client: &http.Client{Timeout: timeout}}
}

type chatMessage struct {
	Text string `json:"text"`
}

func (c *ChatChannel) Send(ctx context.Context, to domain.Recipient, req Request) error {
	text := "*" + req.Subject() + "*\n" + req.Body()
	if !req.Options.IncludeLink && req.File.URL != "" {
		text += "\n" + req.File.URL
	}
	payload, err := json.Marshal(chatMessage{Text: text})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, to.Address, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
