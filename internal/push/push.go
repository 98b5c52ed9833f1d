// Package push sends topic notifications through the push delivery service.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taehoonk/forecast-push-service/internal/observability"
)

// Pusher delivers a notification to every device subscribed to a topic.
type Pusher interface {
	SendToTopic(ctx context.Context, topic string, n Notification) error
}

var (
	ErrInvalidServerKey = errors.New("invalid server key")
	ErrPushRejected     = errors.New("push rejected")
)

// notificationTTL keeps an undelivered message alive for one day. The
// payload is only meaningful on the day it was evaluated.
const notificationTTL = 24 * 60 * 60

// Notification is the visible part of a topic message. Title may be empty;
// delivery platforms render a body-only notification in that case.
type Notification struct {
	Title string
	Body  string
}

// Client sends notifications over the push service's HTTP API.
type Client struct {
	serverKey   string
	apiURL      string
	packageName string
	client      *http.Client
}

// NewClient creates a push Client. packageName restricts delivery to the
// companion app and may be empty to disable the restriction.
func NewClient(serverKey, apiURL, packageName string, timeout time.Duration) (*Client, error) {
	if serverKey == "" {
		return nil, fmt.Errorf("%w: server key is required", ErrInvalidServerKey)
	}

	return &Client{
		serverKey:   serverKey,
		apiURL:      apiURL,
		packageName: packageName,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type pushRequest struct {
	To                    string           `json:"to"`
	Priority              string           `json:"priority"`
	TimeToLive            int              `json:"time_to_live"`
	RestrictedPackageName string           `json:"restricted_package_name,omitempty"`
	Notification          pushNotification `json:"notification"`
}

type pushNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// SendToTopic posts one notification to a topic at high priority with a
// 24 hour time to live. Delivery is fire and forget: a non-2xx response is
// an error but the caller must not requeue on it.
func (c *Client) SendToTopic(ctx context.Context, topic string, n Notification) error {
	payload := pushRequest{
		To:                    "/topics/" + topic,
		Priority:              "high",
		TimeToLive:            notificationTTL,
		RestrictedPackageName: c.packageName,
		Notification: pushNotification{
			Title: n.Title,
			Body:  n.Body,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.client.Do(req)
	if err != nil {
		observability.PushSendsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		observability.PushSendsTotal.WithLabelValues("success").Inc()
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		observability.PushSendsTotal.WithLabelValues("unauthorized").Inc()
		return fmt.Errorf("%w: HTTP %d", ErrInvalidServerKey, resp.StatusCode)
	default:
		observability.PushSendsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: HTTP %d", ErrPushRejected, resp.StatusCode)
	}
}
