package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopengine/orderflow/internal/core/domain"
)

// HTTPPushSender posts push messages to a provider endpoint. The underlying
// client carries a hard timeout so a slow provider cannot block a dispatch
// worker indefinitely.
type HTTPPushSender struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPPushSender(endpoint, apiKey string, timeout time.Duration) *HTTPPushSender {
	return &HTTPPushSender{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type pushMessage struct {
	To    string                  `json:"to"`
	Title string                  `json:"title"`
	Data  domain.NotificationData `json:"data"`
}

func (s *HTTPPushSender) Send(ctx context.Context, pushToken, title string, data domain.NotificationData) error {
	body, err := json.Marshal(pushMessage{To: pushToken, Title: title, Data: data})
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "key="+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}

	return nil
}
