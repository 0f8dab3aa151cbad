// Package capabilities holds outbound integrations that announce task
// outcomes, e.g. a Slack channel or a plain JSON webhook.
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
)

// Capability is an integration that can deliver a notification.
type Capability interface {
	Name() string
	Notify(ctx context.Context, message string) error
}

// Registry holds loaded capabilities by name.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// FromEnv builds a registry from the environment. SLACK_WEBHOOK_URL enables
// Slack; AGENTTEAM_WEBHOOK_URL enables a generic JSON webhook. Returns nil
// when neither is set.
func FromEnv() *Registry {
	var reg *Registry
	if u := os.Getenv("SLACK_WEBHOOK_URL"); u != "" {
		reg = NewRegistry()
		reg.Register(SlackWebhook{WebhookURL: u})
	}
	if u := os.Getenv("AGENTTEAM_WEBHOOK_URL"); u != "" {
		if reg == nil {
			reg = NewRegistry()
		}
		reg.Register(Webhook{URL: u})
	}
	return reg
}

func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[c.Name()] = c
}

func (r *Registry) Get(name string) Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps[name]
}

func (r *Registry) Notify(ctx context.Context, name, message string) error {
	c := r.Get(name)
	if c == nil {
		return fmt.Errorf("capability %q not found", name)
	}
	return c.Notify(ctx, message)
}

// NotifyAll delivers the message to every registered capability. Failures are
// collected, not short-circuited; a nil receiver is a no-op.
func (r *Registry) NotifyAll(ctx context.Context, message string) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	caps := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		caps = append(caps, c)
	}
	r.mu.RUnlock()

	var errs []string
	for _, c := range caps {
		if err := c.Notify(ctx, message); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", c.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SlackWebhook sends messages to a Slack channel via incoming webhook URL.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // optional override
	Username   string // optional
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	payload := map[string]any{"text": message}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	return postJSON(ctx, s.WebhookURL, payload)
}

// Webhook POSTs {"text": message} to an arbitrary endpoint.
type Webhook struct {
	URL string
}

func (w Webhook) Name() string { return "webhook" }

func (w Webhook) Notify(ctx context.Context, message string) error {
	if w.URL == "" {
		return fmt.Errorf("webhook URL not set")
	}
	return postJSON(ctx, w.URL, map[string]any{"text": message})
}

func postJSON(ctx context.Context, url string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
