// Package cliutil builds the logger, downloader and request defaults the
// fetch commands share, from flags and configuration bound to viper.
package cliutil

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/fetch/client"
	"github.com/adamwoolhether/fetch/download"
)

// Logger returns a slog.Logger writing through charmbracelet/log at the
// configured level.
func Logger(w io.Writer) (*slog.Logger, error) {
	raw := viper.GetString("log-level")
	if raw == "" {
		raw = "info"
	}

	level, err := log.ParseLevel(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	return slog.New(handler), nil
}

// NewDownloader builds a Downloader from the configured user agent,
// request throttle and rate limit.
func NewDownloader(logger *slog.Logger) (*download.Downloader, error) {
	clientOpts := []client.Option{client.WithLogger(logger)}

	if ua := viper.GetString("user-agent"); ua != "" {
		clientOpts = append(clientOpts, client.WithUserAgent(ua))
	}

	if rps := viper.GetInt("throttle-rps"); rps > 0 {
		clientOpts = append(clientOpts, client.WithThrottle(rps, rps))
	}

	c, err := client.Build(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("building http client: %w", err)
	}

	opts := []download.Option{
		download.WithClient(c),
		download.WithLogger(logger),
	}

	limit, err := RateLimit()
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		opts = append(opts, download.WithRateLimit(limit))
	}

	return download.New(opts...)
}

// RateLimit parses the configured rate limit, a byte size such as
// "512KiB" or "2MB" per second. Empty or "0" disables it.
func RateLimit() (int, error) {
	raw := viper.GetString("rate-limit")
	if raw == "" || raw == "0" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing rate limit %q: %w", raw, err)
	}

	return int(n), nil
}

// Defaults returns a Request carrying the configured per-download
// settings.
func Defaults() (download.Request, error) {
	method, err := download.ParseMethod(viper.GetString("method"))
	if err != nil {
		return download.Request{}, err
	}

	return download.Request{
		Timeout:          viper.GetDuration("timeout"),
		AllowContinue:    viper.GetBool("continue"),
		UseTmp:           viper.GetBool("tmp"),
		CallbackInterval: viper.GetDuration("interval"),
		Method:           method,
	}, nil
}
