package download

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/fetch/client"
)

// Option defines optional settings for a Downloader.
//
// WithClient sets the HTTP client used by the internal method.
//
// WithToolbox shares a Toolbox between Downloaders. A Downloader does
// not close a Toolbox it was given.
//
// WithRateLimit caps the internal method at bytesPerSec.
type Option func(*options) error

type options struct {
	client    *client.Client
	logger    *slog.Logger
	tracer    trace.Tracer
	toolbox   *Toolbox
	rateLimit int
}

func WithClient(c *client.Client) Option {
	return func(opts *options) error {
		if c == nil {
			return errors.New("client must not be nil")
		}

		opts.client = c
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}

		opts.logger = logger
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}

		opts.tracer = tracer
		return nil
	}
}

func WithToolbox(tb *Toolbox) Option {
	return func(opts *options) error {
		if tb == nil {
			return errors.New("toolbox must not be nil")
		}

		opts.toolbox = tb
		return nil
	}
}

func WithRateLimit(bytesPerSec int) Option {
	return func(opts *options) error {
		if bytesPerSec <= 0 {
			return errors.New("rate limit must be greater than zero")
		}

		opts.rateLimit = bytesPerSec
		return nil
	}
}
