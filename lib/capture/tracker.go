package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"libbydl/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("libbydl.lib.capture")

// CdnHost identifies responses that carry actual audio bytes. The
// player first requests a url embedding "PartNN.mp3" which redirects
// to this host.
const CdnHost = "audioclips.cdn.overdrive.com"

var partRegex = regexp.MustCompile(`(?i)part(\d+)\.mp3`)

// PartNumber extracts the audio part number embedded in a trigger
// url, or 0 if the url is not a trigger.
func PartNumber(url string) int {
	groups := partRegex.FindStringSubmatch(url)
	if len(groups) < 2 {
		return 0
	}
	n, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0
	}
	return n
}

// Part is one captured audio part.
type Part struct {
	Number     int
	Url        string
	Path       string
	Size       int64
	CapturedAt time.Time
}

// Recorder persists captured parts. Implemented by partstore.Store.
type Recorder interface {
	RecordPart(ctx context.Context, part Part) error
}

// Tracker correlates trigger urls with the CDN responses that follow
// them and writes each part to disk once.
//
// Correlation is last write wins: the most recent trigger url's part
// number is attributed to the next matching CDN response. The player
// fetches parts sequentially so this holds in practice; a part
// misattributed by an overlap is caught by the missing-part pass.
type Tracker struct {
	mu       sync.Mutex
	current  int
	saved    map[int]Part
	failed   map[int]string
	maxPart  int
	inflight int

	dir      string
	recorder Recorder
}

type TrackerOptions struct {
	// Dir receives the Part_NN.mp3 files.
	Dir string
	// Recorder may be nil, parts are then tracked in memory only.
	Recorder Recorder
}

func NewTracker(opts TrackerOptions) *Tracker {
	return &Tracker{
		saved:    map[int]Part{},
		failed:   map[int]string{},
		dir:      opts.Dir,
		recorder: opts.Recorder,
	}
}

// Seed marks parts as already captured, used to resume a previous
// run from the store.
func (t *Tracker) Seed(parts []Part) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range parts {
		t.saved[p.Number] = p
		if p.Number > t.maxPart {
			t.maxPart = p.Number
		}
	}
}

// ObserveRequest inspects an outgoing request url. It reports whether
// the url was a trigger url.
func (t *Tracker) ObserveRequest(ctx context.Context, url string) bool {
	n := PartNumber(url)
	if n == 0 {
		return false
	}

	t.mu.Lock()
	t.current = n
	if n > t.maxPart {
		t.maxPart = n
	}
	t.mu.Unlock()

	slog.DebugContext(ctx, "observed trigger request", "part", n, "url", url)
	return true
}

// IsAudioUrl reports whether a response url is served from the audio
// CDN.
func (t *Tracker) IsAudioUrl(url string) bool {
	return strings.Contains(url, CdnHost)
}

// BeginFetch notes a body fetch in flight so WaitIdle can tell when
// the listener has caught up.
func (t *Tracker) BeginFetch() {
	t.mu.Lock()
	t.inflight++
	t.mu.Unlock()
}

func (t *Tracker) EndFetch() {
	t.mu.Lock()
	t.inflight--
	t.mu.Unlock()
}

// WaitIdle blocks until no body fetches are in flight or the context
// expires.
func (t *Tracker) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond * 100)
	defer ticker.Stop()
	for {
		t.mu.Lock()
		idle := t.inflight == 0
		t.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SaveBody attributes a CDN response body to the current part number
// and writes it to disk. Already-captured parts are skipped. A part
// is only saved when the response was a 200 with a non-empty body;
// anything else records the url for the direct refetch fallback.
func (t *Tracker) SaveBody(ctx context.Context, url string, status int64, body []byte) (bool, error) {
	ctx, span := tracer.Start(ctx, "tracker:SaveBody")
	defer span.End()

	t.mu.Lock()
	part := t.current
	_, alreadySaved := t.saved[part]
	t.mu.Unlock()

	span.SetAttributes(
		attribute.Int("part", part),
		attribute.Int64("status", status),
		attribute.Int("size", len(body)),
	)

	if part == 0 {
		slog.WarnContext(ctx, "cdn response before any trigger request, dropping", "url", url)
		return false, nil
	}
	if alreadySaved {
		slog.DebugContext(ctx, "part already captured, skipping", "part", part)
		return false, nil
	}

	if status != 200 || len(body) == 0 {
		t.mu.Lock()
		t.failed[part] = url
		t.mu.Unlock()

		slog.WarnContext(
			ctx, "unusable cdn response",
			"part", part,
			"status", status,
			"size", len(body),
		)
		if status == 403 {
			slog.WarnContext(ctx, "access denied, the session or token may have lapsed", "part", part)
		}
		span.SetStatus(codes.Error, "unusable cdn response")
		return false, nil
	}

	name := fmt.Sprintf("Part_%02d.mp3", part)
	path := filepath.Join(t.dir, name)
	err := os.WriteFile(path, body, 0644)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write part file")
		return false, err
	}

	saved := Part{
		Number:     part,
		Url:        url,
		Path:       path,
		Size:       int64(len(body)),
		CapturedAt: time.Now(),
	}

	t.mu.Lock()
	t.saved[part] = saved
	delete(t.failed, part)
	t.mu.Unlock()

	slog.InfoContext(ctx, "captured part", "part", part, "file", name, "size", len(body))
	span.AddEvent("saved", trace.WithAttributes(attribute.String("path", path)))

	if t.recorder != nil {
		err := t.recorder.RecordPart(ctx, saved)
		if err != nil {
			slog.WarnContext(ctx, "failed to record part", "part", part, "err", err)
		}
	}
	return true, nil
}

// MarkSaved inserts a part captured outside the listener, e.g. by the
// direct refetch fallback.
func (t *Tracker) MarkSaved(ctx context.Context, part Part) {
	t.mu.Lock()
	t.saved[part.Number] = part
	delete(t.failed, part.Number)
	if part.Number > t.maxPart {
		t.maxPart = part.Number
	}
	t.mu.Unlock()

	if t.recorder != nil {
		err := t.recorder.RecordPart(ctx, part)
		if err != nil {
			slog.WarnContext(ctx, "failed to record part", "part", part.Number, "err", err)
		}
	}
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.saved)
}

func (t *Tracker) MaxPart() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxPart
}

func (t *Tracker) Has(part int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.saved[part]
	return ok
}

// Missing lists the gaps in 1..MaxPart.
func (t *Tracker) Missing() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var missing []int
	for i := 1; i <= t.maxPart; i++ {
		_, ok := t.saved[i]
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// FailedUrls maps part numbers whose capture failed to the CDN url
// that served them, for the direct refetch fallback.
func (t *Tracker) FailedUrls() map[int]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[int]string, len(t.failed))
	for part, url := range t.failed {
		_, ok := t.saved[part]
		if ok {
			continue
		}
		out[part] = url
	}
	return out
}

// Saved returns the captured parts ordered by part number.
func (t *Tracker) Saved() []Part {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Part, 0, len(t.saved))
	for i := 1; i <= t.maxPart; i++ {
		p, ok := t.saved[i]
		if ok {
			out = append(out, p)
		}
	}
	return out
}
