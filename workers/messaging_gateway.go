// workers/messaging_gateway.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"habit-challenge-system/utils"
)

// Reaction ack signals sent back to the origin chat. The gateway maps them
// to visible emoji reactions on the user's message.
const (
	ReactionSuccess = "success"
	ReactionFailure = "failure"
)

// MessagingGateway is the client for the WhatsApp provider's reaction API.
// Strictly best-effort: a reaction failure never rolls back a check-in.
type MessagingGateway struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewMessagingGateway() *MessagingGateway {
	baseURL := os.Getenv("MESSAGING_GATEWAY_URL")
	if baseURL == "" {
		log.Fatal("MESSAGING_GATEWAY_URL environment variable is required")
	}
	token := os.Getenv("MESSAGING_GATEWAY_TOKEN")
	if token == "" {
		log.Fatal("MESSAGING_GATEWAY_TOKEN environment variable is required")
	}
	return &MessagingGateway{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: utils.HTTPClient,
	}
}

// React asks the gateway to attach an ack reaction to the given provider
// message. Errors are logged by the caller and otherwise ignored.
func (g *MessagingGateway) React(ctx context.Context, messageID, signal string) error {
	payload, err := json.Marshal(map[string]string{
		"message_id": messageID,
		"signal":     signal,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.BaseURL+"/api/v1/reactions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create reaction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", g.Token)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaction request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// FetchMedia downloads a provider-hosted image with a bounded timeout and
// one retry. On failure the caller discards the image and failure-acks; no
// check-in row may exist for an image that was never stored.
func (g *MessagingGateway) FetchMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		}
		data, contentType, err := g.fetchOnce(ctx, mediaURL)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err
		log.Printf("[WA_INGEST] media fetch attempt %d failed: %v", attempt+1, err)
	}
	return nil, "", lastErr
}

func (g *MessagingGateway) fetchOnce(ctx context.Context, mediaURL string) ([]byte, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, "GET", mediaURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("X-Service-Token", g.Token)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media fetch returned %d", resp.StatusCode)
	}
	// 10MB cap; WhatsApp images are well under this.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}
