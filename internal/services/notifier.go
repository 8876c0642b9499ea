package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotifierClient talks to the external notification service. Delivery is
// fire-and-forget from the engine's perspective: failures are logged and
// never block settlement.
type NotifierClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifierClient(baseURL string, log *zap.Logger) *NotifierClient {
	return &NotifierClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type notifyRequest struct {
	RecipientID string         `json:"recipient_id"`
	Event       string         `json:"event"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Notify sends an event to a member. Errors are swallowed after logging.
func (c *NotifierClient) Notify(ctx context.Context, recipientID uuid.UUID, event string, payload map[string]any) {
	body, err := json.Marshal(notifyRequest{
		RecipientID: recipientID.String(),
		Event:       event,
		Payload:     payload,
	})
	if err != nil {
		c.log.Error("failed to marshal notification", zap.Error(err))
		return
	}

	url := fmt.Sprintf("%s/internal/notify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Error("failed to build notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("notifier unavailable",
			zap.String("event", event), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.log.Warn("notifier rejected event",
			zap.String("event", event), zap.Int("status", resp.StatusCode))
	}
}
