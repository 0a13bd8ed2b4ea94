package libby

import (
	"context"
	"log/slog"

	"libbydl/lib/capture"

	"go.opentelemetry.io/otel/attribute"
)

// DiscoverForward repeatedly advances the player by chapter so it
// keeps requesting further parts. It stops when the next-chapter
// button disappears (end of book), when no new part has shown up for
// maxNoNewPartIterations clicks, or at the hard click limit.
func (c *Client) DiscoverForward(ctx context.Context, tracker *capture.Tracker) error {
	ctx, span := tracer.Start(ctx, "client:DiscoverForward")
	defer span.End()

	noNewParts := 0
	for i := 0; i < maxForwardClicks; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		before := tracker.Count()
		slog.InfoContext(
			ctx, "forward pass iteration",
			"iteration", i+1,
			"parts", before,
		)

		err := c.session.WaitVisible(selNextChapter, shortClickTimeout)
		if err != nil {
			slog.InfoContext(ctx, "no next chapter button, assuming end of book")
			break
		}
		err = c.session.Click(selNextChapter, shortClickTimeout)
		if err != nil {
			slog.WarnContext(ctx, "failed to click next chapter", "err", err)
			break
		}

		// give the player time to fire its requests, then let the
		// capture listener finish pulling bodies
		sleep(ctx, partLoadWait)
		err = tracker.WaitIdle(ctx)
		if err != nil {
			return err
		}

		if tracker.Count() == before {
			noNewParts++
			slog.InfoContext(
				ctx, "no new parts this iteration",
				"streak", noNewParts,
				"limit", maxNoNewPartIterations,
			)
			if noNewParts >= maxNoNewPartIterations {
				slog.InfoContext(ctx, "stopping forward pass, no new parts for several iterations")
				break
			}
		} else {
			noNewParts = 0
		}
	}

	span.SetAttributes(
		attribute.Int("parts", tracker.Count()),
		attribute.Int("max_part", tracker.MaxPart()),
	)
	slog.InfoContext(
		ctx, "forward pass complete",
		"parts", tracker.Count(),
		"max_part", tracker.MaxPart(),
	)
	return nil
}

// RecoverMissing tries to re-trigger each gap in the captured part
// range by seeking backwards and letting the player re-buffer. Best
// effort: parts still missing afterwards are reported via
// tracker.Missing().
func (c *Client) RecoverMissing(ctx context.Context, tracker *capture.Tracker) error {
	ctx, span := tracer.Start(ctx, "client:RecoverMissing")
	defer span.End()

	missing := tracker.Missing()
	if len(missing) == 0 {
		slog.InfoContext(ctx, "no missing parts")
		return nil
	}
	slog.InfoContext(ctx, "attempting to recover missing parts", "missing", missing)

	for _, part := range missing {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		recovered := false
		for attempt := 1; attempt <= recoveryAttempts; attempt++ {
			slog.InfoContext(
				ctx, "recovery attempt",
				"part", part,
				"attempt", attempt,
			)

			for j := 0; j < recoverySeekBackClicks; j++ {
				err := c.session.Click(selPrevChapter, seekClickTimeout)
				if err != nil {
					slog.DebugContext(ctx, "reached beginning of audiobook while seeking backwards")
					break
				}
				sleep(ctx, seekBackWait)
			}

			sleep(ctx, recoveryWait)
			err := tracker.WaitIdle(ctx)
			if err != nil {
				return err
			}

			if tracker.Has(part) {
				slog.InfoContext(ctx, "recovered missing part", "part", part)
				recovered = true
				break
			}
		}
		if !recovered {
			slog.WarnContext(
				ctx, "failed to recover part",
				"part", part,
				"attempts", recoveryAttempts,
			)
		}
	}

	span.SetAttributes(attribute.Int("still_missing", len(tracker.Missing())))
	return nil
}
