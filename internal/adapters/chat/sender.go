package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// defaultSendTimeout bounds a single outbound post.
const defaultSendTimeout = 10 * time.Second

// HTTPSender posts messages through the platform's web API, independent of
// the streaming connection's lifecycle.
type HTTPSender struct {
	client *http.Client
	apiURL string
	token  string
}

// NewHTTPSender creates a sender for the given post-message endpoint.
func NewHTTPSender(apiURL, token string) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{Timeout: defaultSendTimeout},
		apiURL: apiURL,
		token:  token,
	}
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Send posts text to the channel. Best effort: callers log failures and
// carry on.
func (s *HTTPSender) Send(ctx context.Context, channelID, text string) error {
	body, err := json.Marshal(postMessageRequest{Channel: channelID, Text: text})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post message: unexpected status %d", resp.StatusCode)
	}
	return nil
}
