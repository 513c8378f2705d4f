// Package httpcap provides the HTTP-backed capability provider: each Invoke
// posts the bounded input to a remote capability service and decodes its
// structured output.
package httpcap

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

	"github.com/brainstormhq/conductor/pkg/models"
	"github.com/brainstormhq/conductor/pkg/protocol"
)

const defaultTimeoutSeconds = 30

// ErrHostRequired is returned when the configuration lacks a host.
var ErrHostRequired = errors.New("missing or invalid 'host' in configuration")

// Provider performs capability invocations against a remote HTTP endpoint
// with optional headers and retry behavior.
type Provider struct {
	Protocol string
	Host     string
	Path     string
	Headers  map[string]string
	Retry    RetryConfig

	client *http.Client
}

// RetryConfig defines retry behavior for failed invocations.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// invocation is the wire request sent to the capability service.
type invocation struct {
	Action string                `json:"action"`
	Input  *models.ProviderInput `json:"input"`
}

// NewProvider builds a provider from its configuration block.
func NewProvider(config map[string]any) (*Provider, error) {
	host, ok := config["host"].(string)
	if !ok || host == "" {
		return nil, ErrHostRequired
	}

	path, _ := config["path"].(string)
	if path == "" {
		path = "/"
	}

	proto, _ := config["protocol"].(string)
	if proto == "" {
		proto = "http"
	}

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for key, value := range headersMap {
				if strVal, ok := value.(string); ok {
					headers[key] = strVal
				}
			}
		}
	}

	timeout := defaultTimeoutSeconds * time.Second
	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	retry := RetryConfig{Attempts: 1}
	if retryConfig, exists := config["retry"]; exists {
		retry = parseRetryConfig(retryConfig)
	}

	return &Provider{
		Protocol: proto,
		Host:     host,
		Path:     path,
		Headers:  headers,
		Retry:    retry,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func parseRetryConfig(retryConfig any) RetryConfig {
	retry := RetryConfig{Attempts: 1}

	retryMap, ok := retryConfig.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok && attempts >= 1 {
		retry.Attempts = int(attempts)
	}

	if delayMs, ok := retryMap["delay_ms"].(float64); ok && delayMs >= 0 {
		retry.Delay = time.Duration(delayMs) * time.Millisecond
	}

	return retry
}

// Invoke posts {action, input} to the capability endpoint and decodes the
// provider output. Non-2xx responses and transport errors are retried per
// the configured policy, then surfaced as a provider failure.
func (p *Provider) Invoke(ctx context.Context, action string, input *models.ProviderInput) (*protocol.ProviderOutput, error) {
	payload, err := json.Marshal(invocation{Action: action, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invocation: %w", err)
	}

	url := fmt.Sprintf("%s://%s%s", p.Protocol, p.Host, p.Path)

	var lastErr error

	for attempt := 1; attempt <= p.Retry.Attempts; attempt++ {
		if attempt > 1 && p.Retry.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.Retry.Delay):
			}
		}

		output, err := p.post(ctx, url, payload)
		if err == nil {
			return output, nil
		}

		lastErr = err
	}

	return nil, fmt.Errorf("capability call failed after %d attempt(s): %w", p.Retry.Attempts, lastErr)
}

func (p *Provider) post(ctx context.Context, url string, payload []byte) (*protocol.ProviderOutput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range p.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("capability returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var output protocol.ProviderOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to decode capability output: %w", err)
	}

	return &output, nil
}
