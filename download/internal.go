package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/fetch/client"
	"github.com/adamwoolhether/fetch/client/throttle"
)

const blockSize = 4 << 10 // 4KB

type state int

const (
	stateConnecting state = iota
	stateStreaming
	stateStalledReconnecting
	stateCompleted
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateStreaming:
		return "streaming"
	case stateStalledReconnecting:
		return "stalled-reconnecting"
	case stateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// internalStrategy streams the resource over HTTP, reconnecting with a
// range request whenever the connection stalls.
type internalStrategy struct {
	client    *client.Client
	bandwidth *throttle.Bandwidth
}

func (s *internalStrategy) method() Method { return MethodInternal }

func (s *internalStrategy) fetch(ctx context.Context, t *transfer) error {
	start, total, done, err := s.resume(ctx, t)
	if err != nil {
		return err
	}

	if done {
		t.logger.Debug("local file already complete", "path", t.work, "size", start)
		t.tracker.start(start, total)
		t.tracker.finish(start)
		return nil
	}

	f, err := os.OpenFile(t.work, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			t.logger.Error("defer closing output file", "error", err)
		}
	}()

	sess := &session{
		internalStrategy: s,
		t:                t,
		file:             f,
		total:            total,
	}
	if err := sess.seek(start); err != nil {
		return err
	}

	if err := sess.run(ctx); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	return nil
}

// resume decides where the transfer starts. done reports that the local
// file already holds the whole resource.
func (s *internalStrategy) resume(ctx context.Context, t *transfer) (start, total int64, done bool, err error) {
	if !t.req.AllowContinue {
		return 0, 0, false, nil
	}

	local, err := localSize(t.work)
	if err != nil || local == 0 {
		return 0, 0, false, err
	}

	pctx, cancel := context.WithTimeout(ctx, t.req.Timeout)
	defer cancel()

	meta, err := s.client.Probe(pctx, t.req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, false, cancelled(ctx.Err())
		}
		if client.IsStatus(err, http.StatusMethodNotAllowed) || client.IsStatus(err, http.StatusNotImplemented) {
			t.logger.Debug("HEAD not supported, resuming blind", "offset", local)
			return local, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("probing %s: %w", t.req.URL, err)
	}

	switch {
	case meta.Size == 0:
		return local, 0, false, nil
	case local == meta.Size:
		return local, meta.Size, true, nil
	case local > meta.Size:
		t.logger.Debug("local file larger than remote, restarting", "local", local, "remote", meta.Size)
		return 0, meta.Size, false, nil
	default:
		t.logger.Debug("resuming partial file", "offset", local, "remote", meta.Size)
		return local, meta.Size, false, nil
	}
}

// session is the state of one internal transfer.
type session struct {
	*internalStrategy
	t      *transfer
	file   *os.File
	pos    int64
	total  int64
	stalls int

	wd   *watchdog
	body io.ReadCloser
}

func (s *session) run(ctx context.Context) error {
	s.t.tracker.start(s.pos, s.total)

	st := stateConnecting
	for {
		s.t.logger.Debug("transfer state", "state", st, "position", s.pos, "total", s.total)

		var err error
		switch st {
		case stateConnecting, stateStalledReconnecting:
			st, err = s.connect(ctx)
		case stateStreaming:
			st, err = s.stream(ctx)
		case stateCompleted:
			if s.total > 0 && s.pos != s.total {
				return &Error{
					Err:    ErrContentLengthMismatch,
					Detail: fmt.Sprintf("expected %d bytes, got %d", s.total, s.pos),
				}
			}
			s.t.tracker.finish(s.pos)
			return nil
		}

		if err != nil {
			return err
		}
	}
}

func (s *session) connect(ctx context.Context) (state, error) {
	cctx, wd := newWatchdog(ctx, s.t.req.Timeout)

	resp, err := s.client.Get(cctx, s.t.req.URL, s.pos, s.total)
	if err != nil {
		wd.stop()

		if ctx.Err() != nil {
			return 0, cancelled(ctx.Err())
		}
		if wd.stalled() {
			return 0, fmt.Errorf("connecting to %s: no response within %s: %w", s.t.req.URL, s.t.req.Timeout, os.ErrDeadlineExceeded)
		}

		var statusErr *client.UnexpectedStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusRequestedRangeNotSatisfiable && s.pos > 0 {
			if statusErr.Total == 0 || statusErr.Total == s.pos {
				s.total = s.pos
				return stateCompleted, nil
			}
		}

		return 0, fmt.Errorf("requesting %s: %w", s.t.req.URL, err)
	}

	if resp.StatusCode == http.StatusOK && s.pos > 0 {
		s.t.logger.Debug("server ignored range request, restarting", "offset", s.pos)
		if err := s.seek(0); err != nil {
			resp.Body.Close()
			wd.stop()
			return 0, err
		}
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if total := client.ContentRangeTotal(resp); total > 0 {
			s.total = total
		} else if resp.ContentLength >= 0 && s.total == 0 {
			s.total = s.pos + resp.ContentLength
		}
	default:
		if resp.ContentLength >= 0 {
			s.total = resp.ContentLength
		}
	}
	s.t.tracker.total = s.total

	s.wd = wd
	s.body = resp.Body

	return stateStreaming, nil
}

func (s *session) stream(ctx context.Context) (next state, err error) {
	// pending is the position after a full block, held back until the
	// next read shows whether it ended the stream.
	pending := int64(-1)

	defer func() {
		s.body.Close()
		s.wd.stop()

		switch {
		case pending < 0:
		case next == stateCompleted && err == nil:
			s.t.tracker.blocks++
		default:
			s.t.tracker.block(pending)
		}
	}()

	body := s.wd.reader(s.body)
	buf := make([]byte, blockSize)
	var delivered int64

	for {
		n, err := io.ReadFull(body, buf)
		end := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)

		if n > 0 {
			if pending >= 0 {
				s.t.tracker.block(pending)
				pending = -1
			}

			if _, err := s.file.Write(buf[:n]); err != nil {
				return 0, fmt.Errorf("writing output file: %w", err)
			}
			s.pos += int64(n)
			delivered += int64(n)

			// The block that ends the stream is reported by the final call.
			switch {
			case end:
				s.t.tracker.blocks++
			case err == nil:
				pending = s.pos
			default:
				s.t.tracker.block(s.pos)
			}

			if err == nil && s.bandwidth != nil {
				s.wd.pause()
				if err := s.bandwidth.Wait(ctx, n); err != nil {
					if ctx.Err() != nil {
						return 0, cancelled(ctx.Err())
					}
					return 0, fmt.Errorf("limiting bandwidth: %w", err)
				}
				s.wd.kick()
			}
		}

		switch {
		case err == nil:
			continue

		case end:
			if s.total > 0 && s.pos < s.total {
				return s.dropped(ctx, delivered, err)
			}
			return stateCompleted, nil

		case ctx.Err() != nil:
			return 0, cancelled(ctx.Err())

		case s.wd.stalled():
			s.stalls++
			s.t.logger.Debug("transfer stalled, reconnecting", "position", s.pos, "stalls", s.stalls)
			trace.SpanFromContext(ctx).AddEvent("stall", trace.WithAttributes(
				attribute.Int64("download.position", s.pos),
				attribute.Int("download.stalls", s.stalls),
			))
			return stateStalledReconnecting, nil

		default:
			return s.dropped(ctx, delivered, err)
		}
	}
}

// dropped handles a connection that ended before the whole resource
// arrived. A connection that delivered nothing is not retried.
func (s *session) dropped(ctx context.Context, delivered int64, cause error) (state, error) {
	if delivered == 0 {
		if s.total > 0 {
			return 0, &Error{
				Err:    ErrContentLengthMismatch,
				Detail: fmt.Sprintf("expected %d bytes, got %d: %v", s.total, s.pos, cause),
			}
		}
		return 0, fmt.Errorf("reading response body: %w", cause)
	}

	s.t.logger.Debug("connection dropped, reconnecting", "position", s.pos, "error", cause)
	trace.SpanFromContext(ctx).AddEvent("reconnect", trace.WithAttributes(
		attribute.Int64("download.position", s.pos),
	))

	return stateStalledReconnecting, nil
}

// seek truncates the output file to pos and positions writes there.
func (s *session) seek(pos int64) error {
	if err := s.file.Truncate(pos); err != nil {
		return fmt.Errorf("truncating output file: %w", err)
	}
	if _, err := s.file.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seeking output file: %w", err)
	}
	s.pos = pos
	return nil
}
