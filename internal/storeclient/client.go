// Package storeclient talks to the remote lesson store over HTTP.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"lessonshop/internal/domain"
	"lessonshop/internal/requestid"
)

const maxErrorBody = 4 << 10

// Config configures a Client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
	Logger          zerolog.Logger
}

// Client implements the storefront's Store against a remote store.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

// StatusError is a non-2xx response from the store.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps 404 and 412 onto the domain errors.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusPreconditionFailed:
		return domain.ErrVersionConflict
	}
	return nil
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store base url %q", cfg.BaseURL)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "lesson-store",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// the store answering 4xx is healthy; only transport errors and 5xx count
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &Client{base: base, timeout: cfg.RequestTimeout, http: hc, breaker: breaker, logger: logger}, nil
}

// BaseURL is the normalized store origin.
func (c *Client) BaseURL() string { return c.base }

// ListLessons fetches the full lesson collection.
func (c *Client) ListLessons(ctx context.Context) ([]domain.Lesson, error) {
	body, err := c.do(ctx, http.MethodGet, "/lessons", nil, nil)
	if err != nil {
		return nil, err
	}
	var lessons []domain.Lesson
	if err := json.Unmarshal(body, &lessons); err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	return lessons, nil
}

// CreateOrder posts req and returns the order the store created.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodPost, "/orders", req, nil)
	if err != nil {
		return nil, err
	}
	var order domain.Order
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &order); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
	}
	return &order, nil
}

// UpdateSpaces sets a lesson's spaces. A non-zero version is sent as If-Match.
func (c *Client) UpdateSpaces(ctx context.Context, lessonID string, spaces int, version int64) (*domain.Lesson, error) {
	var header http.Header
	if version > 0 {
		header = http.Header{}
		header.Set("If-Match", strconv.Quote(strconv.FormatInt(version, 10)))
	}
	body, err := c.do(ctx, http.MethodPut, "/lessons/"+url.PathEscape(lessonID), domain.SpacesUpdate{Spaces: spaces}, header)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &domain.Lesson{ID: lessonID, Spaces: spaces}, nil
	}
	var lesson domain.Lesson
	if err := json.Unmarshal(body, &lesson); err != nil {
		return nil, fmt.Errorf("decode lesson: %w", err)
	}
	return &lesson, nil
}

// ImageURL resolves a lesson icon path against the store origin.
func (c *Client) ImageURL(path string) string {
	return ImageURL(c.base, path)
}

// ImageURL joins base and path. Absolute http(s) URLs pass through and an
// empty path stays empty.
func ImageURL(base, path string) string {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return ""
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	}
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

func (c *Client) do(ctx context.Context, method, path string, payload any, header http.Header) ([]byte, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if id := requestid.From(ctx); id != "" {
			req.Header.Set(requestid.Header, id)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		}
		return io.ReadAll(resp.Body)
	})
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestid.From(ctx)).
		Dur("took", time.Since(start)).
		Err(err).
		Msg("store request")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return body, nil
}
