package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"libbydl/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) (*Tracker, string, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/capture")
	dir := t.TempDir()
	tracker := NewTracker(TrackerOptions{Dir: dir})
	return tracker, dir, cleanup
}

func TestPartNumber(t *testing.T) {
	require.Equal(t, 3, PartNumber("https://example.com/media/Part03.mp3?token=abc"))
	require.Equal(t, 12, PartNumber("https://example.com/{AAAA}Part12.mp3"))
	require.Equal(t, 7, PartNumber("https://example.com/PART07.MP3"))
	require.Equal(t, 0, PartNumber("https://example.com/cover.jpg"))
	require.Equal(t, 0, PartNumber("https://audioclips.cdn.overdrive.com/opaque-id"))
}

func TestIsAudioUrl(t *testing.T) {
	tracker, _, cleanup := setup(t)
	defer cleanup()

	require.True(t, tracker.IsAudioUrl("https://audioclips.cdn.overdrive.com/xyz"))
	require.False(t, tracker.IsAudioUrl("https://libbyapp.com/shelf"))
}

func TestSaveBody(t *testing.T) {
	tracker, dir, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	// a cdn response before any trigger is dropped
	saved, err := tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/a", 200, []byte("audio"))
	require.NoError(t, err)
	require.False(t, saved)
	require.Equal(t, 0, tracker.Count())

	require.True(t, tracker.ObserveRequest(ctx, "https://example.com/Part01.mp3"))
	saved, err = tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/a", 200, []byte("audio-1"))
	require.NoError(t, err)
	require.True(t, saved)
	require.Equal(t, 1, tracker.Count())
	require.True(t, tracker.Has(1))

	contents, err := os.ReadFile(filepath.Join(dir, "Part_01.mp3"))
	require.NoError(t, err)
	require.Equal(t, []byte("audio-1"), contents)

	// a repeated response for a captured part is skipped
	saved, err = tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/a", 200, []byte("other"))
	require.NoError(t, err)
	require.False(t, saved)
}

func TestLastTriggerWins(t *testing.T) {
	tracker, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	tracker.ObserveRequest(ctx, "https://example.com/Part01.mp3")
	tracker.ObserveRequest(ctx, "https://example.com/Part02.mp3")

	saved, err := tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/a", 200, []byte("audio"))
	require.NoError(t, err)
	require.True(t, saved)
	require.True(t, tracker.Has(2))
	require.False(t, tracker.Has(1))
}

func TestFailedResponses(t *testing.T) {
	tracker, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	tracker.ObserveRequest(ctx, "https://example.com/Part01.mp3")
	saved, err := tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/denied", 403, []byte("forbidden"))
	require.NoError(t, err)
	require.False(t, saved)

	tracker.ObserveRequest(ctx, "https://example.com/Part02.mp3")
	saved, err = tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/empty", 200, nil)
	require.NoError(t, err)
	require.False(t, saved)

	require.Equal(t, map[int]string{
		1: "https://audioclips.cdn.overdrive.com/denied",
		2: "https://audioclips.cdn.overdrive.com/empty",
	}, tracker.FailedUrls())

	// a later successful capture clears the failure
	tracker.ObserveRequest(ctx, "https://example.com/Part01.mp3")
	saved, err = tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/retry", 200, []byte("audio"))
	require.NoError(t, err)
	require.True(t, saved)
	require.NotContains(t, tracker.FailedUrls(), 1)
}

func TestMissing(t *testing.T) {
	tracker, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	for _, n := range []int{1, 2, 5} {
		tracker.ObserveRequest(ctx, fmt.Sprintf("https://example.com/Part%02d.mp3", n))
		_, err := tracker.SaveBody(
			ctx,
			fmt.Sprintf("https://audioclips.cdn.overdrive.com/%d", n),
			200,
			[]byte("audio"),
		)
		require.NoError(t, err)
	}

	require.Equal(t, 5, tracker.MaxPart())
	require.Equal(t, []int{3, 4}, tracker.Missing())

	// observing a trigger alone extends the known range
	tracker.ObserveRequest(ctx, "https://example.com/Part07.mp3")
	require.Equal(t, []int{3, 4, 6, 7}, tracker.Missing())
}

func TestSeedAndSaved(t *testing.T) {
	tracker, _, cleanup := setup(t)
	defer cleanup()

	tracker.Seed([]Part{
		{Number: 2, Path: "/tmp/Part_02.mp3", Size: 10, CapturedAt: time.Now()},
		{Number: 1, Path: "/tmp/Part_01.mp3", Size: 20, CapturedAt: time.Now()},
	})

	require.Equal(t, 2, tracker.Count())
	require.Empty(t, tracker.Missing())

	saved := tracker.Saved()
	require.Len(t, saved, 2)
	require.Equal(t, 1, saved[0].Number)
	require.Equal(t, 2, saved[1].Number)
}

func TestWaitIdle(t *testing.T) {
	tracker, _, cleanup := setup(t)
	defer cleanup()

	tracker.BeginFetch()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()
	require.Error(t, tracker.WaitIdle(ctx))

	go func() {
		time.Sleep(time.Millisecond * 150)
		tracker.EndFetch()
	}()

	ctx, cancel = context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	require.NoError(t, tracker.WaitIdle(ctx))
}

type recordedPart struct {
	part Part
}

type memoryRecorder struct {
	parts []recordedPart
}

func (r *memoryRecorder) RecordPart(ctx context.Context, part Part) error {
	r.parts = append(r.parts, recordedPart{part: part})
	return nil
}

func TestRecorder(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/capture")
	defer cleanup()

	recorder := &memoryRecorder{}
	tracker := NewTracker(TrackerOptions{Dir: t.TempDir(), Recorder: recorder})
	ctx := context.Background()

	tracker.ObserveRequest(ctx, "https://example.com/Part01.mp3")
	_, err := tracker.SaveBody(ctx, "https://audioclips.cdn.overdrive.com/a", 200, []byte("audio"))
	require.NoError(t, err)

	tracker.MarkSaved(ctx, Part{Number: 2, Path: "/tmp/Part_02.mp3", Size: 5, CapturedAt: time.Now()})

	require.Len(t, recorder.parts, 2)
	require.Equal(t, 1, recorder.parts[0].part.Number)
	require.Equal(t, 2, recorder.parts[1].part.Number)
}
