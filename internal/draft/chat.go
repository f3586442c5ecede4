package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	cfgpkg "github.com/rzbill/taskboard/internal/config"
	"github.com/rzbill/taskboard/pkg/log"
)

// Completer turns a prompt into raw completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// maxResponseBytes bounds how much of a completion response is read.
const maxResponseBytes = 1 << 20

// ChatCompleter calls an OpenAI-compatible chat completions endpoint.
type ChatCompleter struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64

	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  log.Logger
}

// NewChatCompleter builds a client from generator configuration. A nil
// httpClient gets one bounded by cfg.Timeout.
func NewChatCompleter(cfg cfgpkg.GeneratorConfig, httpClient *http.Client, logger log.Logger) *ChatCompleter {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = logger.WithComponent("draft")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	c := &ChatCompleter{
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      httpClient,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "draft-generator",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only service-side trouble counts against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !tripsBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				log.Str("breaker", name), log.Str("from", from.String()), log.Str("to", to.String()))
		},
	})
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the first
// choice's content. Failures are *GenerationError with Op "complete".
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &GenerationError{Op: "complete", Kind: KindCancelled, Err: err}
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &GenerationError{Op: "complete", Kind: KindUnavailable, Err: err}
		}
		return "", err
	}
	return out.(string), nil
}

func (c *ChatCompleter) do(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", &GenerationError{Op: "complete", Kind: KindResponse, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Op: "complete", Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		kind := KindTransport
		if ctx.Err() != nil {
			kind = KindCancelled
		}
		return "", &GenerationError{Op: "complete", Kind: kind, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &GenerationError{Op: "complete", Kind: KindTransport, Err: err}
	}
	c.logger.Debug("completion response",
		log.Int("status", resp.StatusCode), log.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := KindStatus
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = KindAuth
		}
		return "", &GenerationError{Op: "complete", Kind: kind, Status: resp.StatusCode, Err: errors.New(apiMessage(raw))}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", &GenerationError{Op: "complete", Kind: KindResponse, Err: fmt.Errorf("decode body: %w", err)}
	}
	if len(cr.Choices) == 0 {
		return "", &GenerationError{Op: "complete", Kind: KindResponse, Err: errors.New("no choices in response")}
	}
	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	if content == "" {
		return "", &GenerationError{Op: "complete", Kind: KindResponse, Err: errors.New("empty completion")}
	}
	return content, nil
}

func apiMessage(raw []byte) string {
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
		return ae.Error.Message
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "empty error body"
	}
	return s
}

// tripsBreaker reports whether err reflects an unhealthy service rather than
// a bad request or a caller that gave up.
func tripsBreaker(err error) bool {
	var ge *GenerationError
	if !errors.As(err, &ge) {
		return true
	}
	switch ge.Kind {
	case KindTransport:
		return true
	case KindStatus:
		return ge.Status >= 500 || ge.Status == http.StatusTooManyRequests
	default:
		return false
	}
}
