package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/metrics"
)

var (
	ErrCircuitOpen    = errors.New("circuit open")
	ErrHostNotAllowed = errors.New("host not allowed")
)

// StatusError is returned when the upstream keeps answering with a 5xx or 429.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// Client wraps http.Client with retry, jittered backoff, a host allowlist and
// a circuit breaker. 4xx responses are handed back to the caller untouched.
type Client struct {
	hc   *http.Client
	opt  Options
	name string
	cb   *gobreaker.CircuitBreaker
}

type Options struct {
	Timeout            time.Duration
	Retry              int
	BackoffMin         time.Duration
	BackoffMax         time.Duration
	HostAllowlist      []string
	MaxConsecutiveFail int
	CircuitOpen        time.Duration
}

// NewFromConfig builds a named client. The name labels breaker metrics and logs.
func NewFromConfig(name string, cfg *config.HTTPClientConfig) *Client {
	opt := Options{
		Timeout:            20 * time.Second,
		Retry:              1,
		BackoffMin:         100 * time.Millisecond,
		BackoffMax:         800 * time.Millisecond,
		MaxConsecutiveFail: 5,
		CircuitOpen:        5 * time.Second,
	}
	if cfg != nil {
		if cfg.TimeoutMs > 0 {
			opt.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		if cfg.Retry > 0 {
			opt.Retry = cfg.Retry
		}
		if cfg.BackoffMinMs > 0 {
			opt.BackoffMin = time.Duration(cfg.BackoffMinMs) * time.Millisecond
		}
		if cfg.BackoffMaxMs > 0 {
			opt.BackoffMax = time.Duration(cfg.BackoffMaxMs) * time.Millisecond
		}
		if cfg.MaxConsecutiveFailures > 0 {
			opt.MaxConsecutiveFail = cfg.MaxConsecutiveFailures
		}
		if cfg.CircuitOpenSeconds > 0 {
			opt.CircuitOpen = time.Duration(cfg.CircuitOpenSeconds) * time.Second
		}
		opt.HostAllowlist = cfg.HostAllowlist
	}
	return New(name, opt)
}

// New builds a client from explicit options.
func New(name string, opt Options) *Client {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		DialContext:     (&net.Dialer{Timeout: opt.Timeout}).DialContext,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:    100,
		IdleConnTimeout: 30 * time.Second,
	}
	c := &Client{
		hc:   &http.Client{Timeout: opt.Timeout, Transport: transport},
		opt:  opt,
		name: name,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opt.CircuitOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return opt.MaxConsecutiveFail > 0 && counts.ConsecutiveFailures >= uint32(opt.MaxConsecutiveFail)
		},
		IsSuccessful: func(err error) bool {
			var a *abandonedError
			return err == nil || errors.As(err, &a)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("httpx: circuit %s %s -> %s", name, from, to)
			metrics.SetCircuitState(name, stateValue(to))
		},
	})
	return c
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// HTTPClient exposes a plain *http.Client sharing this client's resilience,
// for SDKs that accept an http.Client.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.opt.Timeout, Transport: roundTripper{c}}
}

type roundTripper struct{ c *Client }

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.c.Do(req)
	var se *StatusError
	if errors.As(err, &se) {
		// SDKs read status and body themselves.
		return &http.Response{
			StatusCode: se.Code,
			Status:     fmt.Sprintf("%d %s", se.Code, http.StatusText(se.Code)),
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(se.Body)),
			Request:    req,
		}, nil
	}
	return resp, err
}

func (c *Client) allowed(u *url.URL) bool {
	if len(c.opt.HostAllowlist) == 0 {
		return true
	}
	host := u.Hostname()
	for _, h := range c.opt.HostAllowlist {
		if matchHost(h, host) {
			return true
		}
	}
	return false
}

func matchHost(pattern, host string) bool {
	if pattern == "*" {
		return true
	}
	if strings.EqualFold(pattern, host) {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suf := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(host, "."+suf) || host == suf
	}
	return false
}

// Do sends req. Request bodies must be replayable (GetBody set) to be retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if !c.allowed(req.URL) {
		logger.Warnf("httpx: blocked outbound host: %s", req.URL.Host)
		return nil, ErrHostNotAllowed
	}
	out, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.doWithRetry(req)
		if err != nil && req.Context().Err() != nil {
			return nil, &abandonedError{err: err}
		}
		return resp, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}
	var a *abandonedError
	if errors.As(err, &a) {
		return nil, a.err
	}
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

// abandonedError marks a request the caller gave up on. The breaker counts
// it as a success since it says nothing about the upstream's health.
type abandonedError struct{ err error }

func (e *abandonedError) Error() string { return e.err.Error() }
func (e *abandonedError) Unwrap() error { return e.err }

func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempt := 0
	jitter := c.opt.BackoffMax - c.opt.BackoffMin
	if jitter <= 0 {
		jitter = time.Millisecond
	}
	var resp *http.Response
	err := retry.Do(
		func() error {
			attempt++
			r, err := c.hc.Do(replay(req))
			if err != nil {
				logger.Warnf("httpx: %s request failed (try %d/%d): %v", c.name, attempt, c.opt.Retry+1, err)
				return err
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
				_ = r.Body.Close()
				logger.Warnf("httpx: %s status %d (try %d/%d)", c.name, r.StatusCode, attempt, c.opt.Retry+1)
				return &StatusError{Code: r.StatusCode, Body: string(body)}
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.opt.Retry+1)),
		retry.Delay(c.opt.BackoffMin),
		retry.MaxDelay(c.opt.BackoffMax),
		retry.MaxJitter(jitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func replay(req *http.Request) *http.Request {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			r.Body = body
		}
	}
	return r
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}
