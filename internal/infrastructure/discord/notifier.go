// Package discord delivers messages to Discord channels over the REST API.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/metrics"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// DefaultBaseURL is the v10 REST root.
const DefaultBaseURL = "https://discord.com/api/v10"

// ErrUnauthorized means the bot token was rejected; waiting will not help.
var ErrUnauthorized = errors.New("discord: token rejected")

// RateLimitError is returned (wrapped in a DeliveryError) on HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
	Global     bool
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// APIError is a non-2xx answer other than 429.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discord: HTTP %d", e.Status)
	}
	return fmt.Sprintf("discord: HTTP %d: %s (code %d)", e.Status, e.Message, e.Code)
}

// Options configures a Notifier.
type Options struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	SendInterval time.Duration
	Client       *http.Client
}

// Notifier is a bot-token REST client. Readiness and resolved channels are cached.
type Notifier struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	backoffMin time.Duration
	backoffMax time.Duration

	mu       sync.Mutex
	ready    bool
	resolved map[string]struct{}
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier builds a notifier. A zero SendInterval disables outbound pacing.
func NewNotifier(opts Options, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.SendInterval > 0 {
		limit = rate.Every(opts.SendInterval)
	}

	return &Notifier{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		client:     client,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With("component", "discord"),
		backoffMin: time.Second,
		backoffMax: 30 * time.Second,
		resolved:   make(map[string]struct{}),
	}
}

// WaitReady blocks until the token authenticates, retrying with capped exponential backoff.
func (n *Notifier) WaitReady(ctx context.Context) error {
	n.mu.Lock()
	ready := n.ready
	n.mu.Unlock()
	if ready {
		return nil
	}

	backoff := n.backoffMin
	for {
		err := n.do(ctx, http.MethodGet, "/users/@me", nil)
		if err == nil {
			n.mu.Lock()
			n.ready = true
			n.mu.Unlock()
			n.logger.Info("discord ready")
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return ErrUnauthorized
		}

		n.logger.Warn("discord not ready", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, n.backoffMax)
	}
}

// ResolveChannel checks the bot can see the channel.
func (n *Notifier) ResolveChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return fmt.Errorf("channel id is empty")
	}

	n.mu.Lock()
	_, ok := n.resolved[channelID]
	n.mu.Unlock()
	if ok {
		return nil
	}

	if err := n.do(ctx, http.MethodGet, "/channels/"+channelID, nil); err != nil {
		return fmt.Errorf("resolve channel %s: %w", channelID, err)
	}

	n.mu.Lock()
	n.resolved[channelID] = struct{}{}
	n.mu.Unlock()
	return nil
}

// Send posts one message. Every failure is a *domain.DeliveryError.
func (n *Notifier) Send(ctx context.Context, channelID string, msg domain.Message) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return &domain.DeliveryError{Channel: channelID, Retryable: true, Err: err}
	}

	body, err := json.Marshal(toPayload(msg))
	if err != nil {
		return &domain.DeliveryError{Channel: channelID, Err: fmt.Errorf("marshal message: %w", err)}
	}

	err = n.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body)
	if err == nil {
		return nil
	}

	var (
		rl     *RateLimitError
		apiErr *APIError
	)
	retryable := true
	switch {
	case errors.As(err, &rl):
	case errors.As(err, &apiErr):
		retryable = apiErr.Status >= http.StatusInternalServerError
	}
	return &domain.DeliveryError{Channel: channelID, Retryable: retryable, Err: err}
}

func (n *Notifier) do(ctx context.Context, method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+n.token)
	req.Header.Set("User-Agent", "DiscordBot (mtg-spoilers-bot, 1.0)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("discord", "failure").Inc()
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.UpstreamRequests.WithLabelValues("discord", "success").Inc()
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	metrics.UpstreamRequests.WithLabelValues("discord", "failure").Inc()

	var payload apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &payload)

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			RetryAfter: time.Duration(payload.RetryAfter * float64(time.Second)),
			Global:     payload.Global,
		}
	}
	return &APIError{Status: resp.StatusCode, Code: payload.Code, Message: payload.Message}
}
