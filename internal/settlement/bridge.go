package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Bridge relays a settlement message and returns the bridge-side reference.
type Bridge interface {
	Relay(ctx context.Context, route Route, msg Message) (string, error)
}

// HTTPBridge talks to the bridge relayer service.
type HTTPBridge struct {
	log      *zap.Logger
	endpoint string
	client   *http.Client
}

func NewHTTPBridge(log *zap.Logger, endpoint string, timeout time.Duration) *HTTPBridge {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPBridge{
		log:      log.Named("settlement.bridge"),
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type relayRequest struct {
	Route   Route   `json:"route"`
	Message Message `json:"message"`
}

type relayResponse struct {
	Reference string `json:"reference"`
}

func (b *HTTPBridge) Relay(ctx context.Context, route Route, msg Message) (string, error) {
	if b.endpoint == "" {
		return "", fmt.Errorf("bridge endpoint not configured")
	}

	body, err := json.Marshal(relayRequest{Route: route, Message: msg})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/v1/relay", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("bridge relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("bridge relay: unexpected status %d", resp.StatusCode)
	}

	var out relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("bridge relay: decode response: %w", err)
	}
	if out.Reference == "" {
		return "", fmt.Errorf("bridge relay: empty reference")
	}
	return out.Reference, nil
}
