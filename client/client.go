// Package client wraps the HTTP operations the downloader needs:
// metadata probes, ranged GETs and checksum sidecar fetches.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/adamwoolhether/fetch/client/throttle"
)

// Client wraps the std-lib *http.Client
// It sets a default *http.Client and *http.Transport, which
// can be customized via optional funcs.
type Client struct {
	c      *http.Client
	logger *slog.Logger
}

// Meta describes a remote resource as reported by a HEAD request.
type Meta struct {
	// Size is the advertised content length, 0 if unknown.
	Size          int64
	AcceptsRanges bool
	ETag          string
}

func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		client.c = opts.client
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Probe issues a HEAD request for rawURL.
func (c *Client) Probe(ctx context.Context, rawURL string) (Meta, error) {
	req, err := newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return Meta{}, fmt.Errorf("instantiating request: %w", err)
	}

	var meta Meta
	err = c.exec(req, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}

		meta = Meta{
			Size:          max(resp.ContentLength, 0),
			AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
			ETag:          resp.Header.Get("ETag"),
		}
		return nil
	})
	if err != nil {
		return Meta{}, err
	}

	return meta, nil
}

// Get requests rawURL starting at byte start. When start is greater than
// zero a Range header is sent, bounded by total when it is known.
// The caller owns the returned body.
//
// A 200 reply is accepted for a ranged request, servers are free to
// ignore Range; callers must check the status code.
func (c *Client) Get(ctx context.Context, rawURL string, start, total int64) (*http.Response, error) {
	req, err := newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	if start > 0 {
		req.Header.Set("Range", RangeHeader(start, total))
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exec http do: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusPartialContent && start > 0:
	default:
		err := statusError(resp)
		c.close(resp)
		return nil, err
	}

	return resp, nil
}

// Checksum fetches the checksum sidecar at rawURL and returns the first
// whitespace-delimited token of its first line. Transient failures are
// retried; status errors other than 5xx are not.
func (c *Client) Checksum(ctx context.Context, rawURL string) (string, error) {
	var sum string

	fetch := func() error {
		req, err := newRequest(ctx, http.MethodGet, rawURL)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("instantiating request: %w", err))
		}

		return c.exec(req, func(resp *http.Response) error {
			if resp.StatusCode != http.StatusOK {
				err := statusError(resp)
				if resp.StatusCode < http.StatusInternalServerError {
					return retry.Unrecoverable(err)
				}
				return err
			}

			token, err := parseSidecar(io.LimitReader(resp.Body, maxErrBodySize))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			sum = token
			return nil
		})
	}

	err := retry.Do(fetch,
		retry.Context(ctx),
		retry.Attempts(sidecarAttempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying checksum sidecar", "url", rawURL, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("fetching checksum sidecar: %w", err)
	}

	return sum, nil
}

// SidecarURL returns the conventional location of rawURL's md5 sidecar.
func SidecarURL(rawURL string) string {
	return rawURL + ".md5"
}

// RangeHeader formats a byte-range header value starting at start.
// An unknown total leaves the range open ended.
func RangeHeader(start, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, total-1)
}

// ContentRangeTotal returns the complete length from a Content-Range
// header such as "bytes 100-199/1000" or "bytes */1000", 0 if unknown.
func ContentRangeTotal(resp *http.Response) int64 {
	cr := resp.Header.Get("Content-Range")
	_, total, ok := strings.Cut(cr, "/")
	if !ok || total == "*" {
		return 0
	}

	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

// newRequest builds a bodiless request carrying the trace context of ctx.
func newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// exec runs the request and injected function, always draining and
// closing the body afterwards.
func (c *Client) exec(req *http.Request, fn execFn) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("exec http do: %w", err)
	}
	defer c.close(resp)

	return fn(resp)
}

func (c *Client) close(resp *http.Response) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrBodySize)); err != nil {
		c.logger.Debug("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

func statusError(resp *http.Response) error {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}

	statusErr := &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Body:       string(b),
		Err:        ErrUnexpectedStatusCode,
	}

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		statusErr.Total = ContentRangeTotal(resp)
	}

	return statusErr
}

func parseSidecar(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("reading sidecar: %w", err)
		}
		return "", ErrEmptySidecar
	}

	fields := strings.Fields(sc.Text())
	if len(fields) == 0 {
		return "", ErrEmptySidecar
	}

	return fields[0], nil
}

// IsStatus reports whether err carries an unexpected status of code.
func IsStatus(err error, code int) bool {
	var statusErr *UnexpectedStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
