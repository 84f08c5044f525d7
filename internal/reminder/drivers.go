package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Driver sends one rendered message to one recipient over a single
// channel. The delivery functions themselves are external collaborators;
// drivers are small HTTP clients for them.
type Driver interface {
	Send(ctx context.Context, recipient Profile, msg Message) error
	Channel() Channel
}

// DriverRegistry holds the available delivery drivers.
type DriverRegistry struct {
	drivers map[Channel]Driver
}

func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[Channel]Driver)}
}

func (r *DriverRegistry) Register(driver Driver) {
	r.drivers[driver.Channel()] = driver
}

func (r *DriverRegistry) Get(channel Channel) (Driver, error) {
	driver, ok := r.drivers[channel]
	if !ok {
		return nil, fmt.Errorf("no driver registered for channel: %s", channel)
	}
	return driver, nil
}

// deliveryClient is the shared HTTP plumbing for calling a delivery
// function with the service bearer token.
type deliveryClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// DriverOption configures a delivery driver.
type DriverOption func(*deliveryClient)

// WithHTTPClient sets a custom HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) DriverOption {
	return func(c *deliveryClient) {
		c.httpClient = hc
	}
}

func newDeliveryClient(baseURL, token string, opts ...DriverOption) *deliveryClient {
	c := &deliveryClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *deliveryClient) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call delivery function: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delivery function returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// WhatsAppDriver calls the send-whatsapp function. The recipient must
// have a phone number on their profile.
type WhatsAppDriver struct {
	client *deliveryClient
}

func NewWhatsAppDriver(baseURL, token string, opts ...DriverOption) *WhatsAppDriver {
	return &WhatsAppDriver{client: newDeliveryClient(baseURL, token, opts...)}
}

func (d *WhatsAppDriver) Channel() Channel {
	return ChannelWhatsApp
}

func (d *WhatsAppDriver) Send(ctx context.Context, recipient Profile, msg Message) error {
	if recipient.Phone == "" {
		return fmt.Errorf("recipient %s has no phone number", recipient.ID)
	}
	return d.client.post(ctx, map[string]string{
		"phone":   recipient.Phone,
		"message": msg.Title + "\n\n" + msg.Body,
	})
}

// PushDriver calls the send-push function, which resolves the user's push
// subscriptions itself.
type PushDriver struct {
	client *deliveryClient
}

func NewPushDriver(baseURL, token string, opts ...DriverOption) *PushDriver {
	return &PushDriver{client: newDeliveryClient(baseURL, token, opts...)}
}

func (d *PushDriver) Channel() Channel {
	return ChannelPush
}

func (d *PushDriver) Send(ctx context.Context, recipient Profile, msg Message) error {
	return d.client.post(ctx, map[string]string{
		"user_id": recipient.ID,
		"title":   msg.Title,
		"body":    msg.Body,
	})
}
