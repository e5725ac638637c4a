package download

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/dustin/go-humanize"
)

// tracker throttles progress callbacks for one download. It is owned by
// a single goroutine at a time.
type tracker struct {
	cb       Callback
	interval time.Duration
	label    string

	total  int64
	blocks int64
	calls  int64
	speed  float64

	lastTime time.Time
	lastPos  int64
}

func newTracker(rawURL string, cb Callback, interval time.Duration) *tracker {
	return &tracker{
		cb:       cb,
		interval: interval,
		label:    label(rawURL),
	}
}

// start resets the speed baseline at pos.
func (t *tracker) start(pos, total int64) {
	t.total = total
	t.lastTime = time.Now()
	t.lastPos = pos
}

// block counts one block read and reports pos if the interval elapsed.
func (t *tracker) block(pos int64) {
	t.blocks++
	t.report(pos, false)
}

// finish always reports pos.
func (t *tracker) finish(pos int64) {
	t.report(pos, true)
}

func (t *tracker) report(pos int64, final bool) {
	if t.cb == nil {
		return
	}

	now := time.Now()
	elapsed := now.Sub(t.lastTime)
	if !final && elapsed < t.interval {
		return
	}

	if elapsed > 0 {
		t.speed = max(float64(pos-t.lastPos)/elapsed.Seconds(), 0)
	}
	t.lastTime = now
	t.lastPos = pos
	t.calls++

	t.cb(Progress{
		Label:    t.label,
		Position: pos,
		Total:    t.total,
		Speed:    t.speed,
		Blocks:   t.blocks,
		Calls:    t.calls,
	})
}

func label(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return path.Base(u.Path)
}

// LogCallback returns a Callback that logs each progress update.
func LogCallback(logger *slog.Logger) Callback {
	return func(p Progress) {
		attrs := []any{
			"file", p.Label,
			"transferred", humanize.IBytes(uint64(p.Position)),
			"speed", humanize.IBytes(uint64(p.Speed)) + "/s",
		}
		if p.Total > 0 {
			attrs = append(attrs,
				"progress", fmt.Sprintf("%.1f%%", float64(p.Position)/float64(p.Total)*100),
				"total", humanize.IBytes(uint64(p.Total)),
			)
		}
		logger.Info("downloading", attrs...)
	}
}
