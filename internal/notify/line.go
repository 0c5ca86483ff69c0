// Package notify holds the thin clients for the external broadcast and
// weather collaborators.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kadkongta/crowd-insight/pkg/config"
)

// LineClient broadcasts text messages through the LINE messaging channel
type LineClient struct {
	token  string
	url    string
	client *http.Client
}

// NewLineClient creates a LINE broadcast client
func NewLineClient(cfg *config.LineConfig) *LineClient {
	return &LineClient{
		token:  cfg.ChannelAccessToken,
		url:    cfg.BroadcastURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether a channel access token is present
func (c *LineClient) Configured() bool {
	return c.token != ""
}

type lineTextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type lineBroadcastRequest struct {
	Messages []lineTextMessage `json:"messages"`
}

// Broadcast pushes a text payload to the channel. Without a configured
// token the message is logged and dropped so the rest of the pipeline keeps
// working in development.
func (c *LineClient) Broadcast(ctx context.Context, text string) error {
	if !c.Configured() {
		fmt.Printf("LINE not configured, skipping broadcast:\n%s\n", text)
		return nil
	}

	payload, err := json.Marshal(lineBroadcastRequest{
		Messages: []lineTextMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode broadcast: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send broadcast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("LINE API returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
