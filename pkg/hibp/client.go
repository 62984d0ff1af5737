// Package hibp queries the Pwned Passwords range API. Only the first five hex characters of a
// SHA-1 digest ever leave the process.
package hibp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://api.pwnedpasswords.com"
	PrefixLength   = 5
	maxBodyBytes   = 4 << 20
)

var (
	ErrInvalidPrefix = errors.New("range prefix must be 5 hex characters")
	ErrMalformed     = errors.New("malformed range response")
)

// Config configures the range client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Breaker trips after this many consecutive failures and stays open for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client fetches suffix lists for a digest prefix.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cb        *gobreaker.CircuitBreaker
}

func NewClient(config Config, httpClient *http.Client) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "risk-api"
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = 5
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = 30 * time.Second
	}
	// copy so a shared caller client keeps its own timeout
	hc := &http.Client{}
	if httpClient != nil {
		*hc = *httpClient
	}
	hc.Timeout = config.Timeout

	failures := config.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "hibp-range",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Cancelled requests are the caller's choice, not a service failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		userAgent: config.UserAgent,
		http:      hc,
		cb:        cb,
	}
}

// Range returns suffix -> occurrence count for every digest sharing prefix.
// Suffixes are upper-case; padding rows with a zero count are dropped.
func (c *Client) Range(ctx context.Context, prefix string) (map[string]int, error) {
	prefix = strings.ToUpper(prefix)
	if !isHexPrefix(prefix) {
		return nil, ErrInvalidPrefix
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, prefix)
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]int), nil
}

// State reports the breaker state. /health/ready shows it as breach_breaker.
func (c *Client) State() string {
	return c.cb.State().String()
}

func (c *Client) fetch(ctx context.Context, prefix string) (map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build range request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("range request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("range request returned status %d", resp.StatusCode)
	}

	return ParseRange(io.LimitReader(resp.Body, maxBodyBytes))
}

// ParseRange decodes a newline-delimited SUFFIX:COUNT body.
func ParseRange(r io.Reader) (map[string]int, error) {
	out := make(map[string]int)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		suffix, rawCount, ok := strings.Cut(line, ":")
		if !ok || suffix == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		count, err := strconv.Atoi(strings.TrimSpace(rawCount))
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		if count == 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(suffix))] = count
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read range response: %w", err)
	}
	return out, nil
}

func isHexPrefix(s string) bool {
	if len(s) != PrefixLength {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}
