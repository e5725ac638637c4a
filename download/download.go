package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/fetch/client"
	"github.com/adamwoolhether/fetch/client/throttle"
)

// Downloader fetches resources to local files. It is safe for
// concurrent use; each Download call owns its own transfer state.
type Downloader struct {
	client      *client.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	toolbox     *Toolbox
	ownsToolbox bool
	strategies  map[Method]strategy
}

// New constructs a Downloader.
func New(optFns ...Option) (*Downloader, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	d := &Downloader{
		client:  opts.client,
		logger:  opts.logger,
		tracer:  opts.tracer,
		toolbox: opts.toolbox,
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	if d.tracer == nil {
		d.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	if d.client == nil {
		c, err := client.Build(client.WithLogger(d.logger))
		if err != nil {
			return nil, fmt.Errorf("building client: %w", err)
		}
		d.client = c
	}

	if d.toolbox == nil {
		d.toolbox = NewToolbox(ToolboxConfig{Logger: d.logger})
		d.ownsToolbox = true
	}

	var bandwidth *throttle.Bandwidth
	if opts.rateLimit > 0 {
		bw, err := throttle.NewBandwidth(opts.rateLimit)
		if err != nil {
			return nil, fmt.Errorf("configuring rate limit: %w", err)
		}
		bandwidth = bw
	}

	d.strategies = map[Method]strategy{}
	for _, s := range []strategy{
		&internalStrategy{client: d.client, bandwidth: bandwidth},
		&externalStrategy{toolbox: d.toolbox, bootstrap: true},
		&externalStrategy{toolbox: d.toolbox, bootstrap: false},
	} {
		d.strategies[s.method()] = s
	}

	return d, nil
}

// Close releases the temporary directories of a Toolbox created by New.
func (d *Downloader) Close() error {
	if !d.ownsToolbox {
		return nil
	}
	return d.toolbox.Close()
}

// Download fetches req.URL to req.Dest.
//
// With AllowContinue an existing local file is resumed from its size,
// left alone when it already matches the remote size, and restarted
// when it is larger. With UseTmp or a checksum the data is written to
// Dest+".part" and renamed to Dest only after the transfer (and the
// checksum, if any) succeeds. A checksum mismatch leaves the part file
// in place.
func (d *Downloader) Download(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	id := uuid.NewString()

	ctx, span := d.tracer.Start(ctx, "download", trace.WithAttributes(
		attribute.String("download.id", id),
		attribute.String("download.url", req.URL),
		attribute.String("download.method", req.Method.String()),
	))
	defer span.End()

	err := d.download(ctx, id, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (d *Downloader) download(ctx context.Context, id string, req Request) error {
	logger := d.logger.With("id", id, "url", req.URL)

	sum, err := d.checksum(ctx, req)
	if err != nil {
		return err
	}

	t := &transfer{
		id:      id,
		req:     req,
		work:    workingPath(req.Dest, req.UseTmp || sum != nil),
		tracker: newTracker(req.URL, req.Callback, req.CallbackInterval),
		logger:  logger,
	}

	if req.AllowContinue {
		moved, err := adoptDest(req.Dest, t.work)
		if err != nil {
			return err
		}
		if moved {
			logger.Debug("moved destination to part file", "path", t.work)
		}
	}

	if err := d.chain(ctx, t); err != nil {
		return err
	}

	if sum != nil {
		if err := sum.verify(t.work); err != nil {
			logger.Debug("checksum mismatch, keeping part file", "path", t.work, "error", err)
			return err
		}
	}

	if err := publish(t.work, req.Dest); err != nil {
		return err
	}

	logger.Debug("download complete", "dest", req.Dest)

	return nil
}

// checksum returns the expected digest, fetching the sidecar when asked.
func (d *Downloader) checksum(ctx context.Context, req Request) (*checksum, error) {
	raw := req.Checksum
	if raw == "" && req.ChecksumSidecar {
		token, err := d.client.Checksum(ctx, client.SidecarURL(req.URL))
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			return nil, err
		}
		raw = token
	}

	if raw == "" {
		return nil, nil
	}

	sum, err := parseChecksum(raw)
	if err != nil {
		return nil, err
	}

	return &sum, nil
}

// chain runs the methods planned for the request until one succeeds.
func (d *Downloader) chain(ctx context.Context, t *transfer) error {
	var attempts []Attempt

	for _, m := range plan(t.req.Method) {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}

		actx, span := d.tracer.Start(ctx, "download.attempt", trace.WithAttributes(
			attribute.String("download.method", m.String()),
		))
		err := d.strategies[m].fetch(actx, t)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err == nil {
			return nil
		}

		if errors.Is(err, ErrDownloadCancelled) {
			return err
		}
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}

		t.logger.Debug("download method failed", "method", m, "error", err)
		attempts = append(attempts, Attempt{Method: m, Err: err})
	}

	if len(attempts) == 1 {
		return attempts[0].Err
	}

	return &FallbackError{Attempts: attempts}
}

// Download fetches req with a Downloader built from optFns and closes
// it before returning.
func Download(ctx context.Context, req Request, optFns ...Option) (err error) {
	d, err := New(optFns...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, d.Close())
	}()

	return d.Download(ctx, req)
}
