package libby

import (
	"context"
	"fmt"
	"log/slog"

	"libbydl/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ParseShelfTitles pulls the audiobook tile titles out of the shelf
// page markup, in tile order.
func ParseShelfTitles(doc *goquery.Document) []string {
	var out []string
	doc.Find(selTitleTiles).Each(func(_ int, sel *goquery.Selection) {
		title := htmlutil.CleanText(sel.Find(selTileTitle).First().Text())
		out = append(out, title)
	})
	return out
}

// MatchTitle finds the tile whose title is most similar to the
// wanted one. Returns -1 when nothing clears the floor.
func MatchTitle(wanted string, titles []string) int {
	best := -1
	bestSimilarity := 0.0
	for i, title := range titles {
		similarity := matchr.JaroWinkler(wanted, title, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = i
		}
	}
	// a floor keeps a wildly wrong --title from silently opening
	// some other book
	if bestSimilarity < 0.5 {
		return -1
	}
	return best
}

// OpenShelf navigates to the user's shelf and returns the audiobook
// titles on it.
func (c *Client) OpenShelf(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:OpenShelf")
	defer span.End()

	slog.InfoContext(ctx, "opening shelf")
	err := c.session.Click(selShelfButton, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open shelf")
		return nil, fmt.Errorf("click shelf button: %w", err)
	}
	sleep(ctx, settleShort)
	c.screenshot(ctx, "on_shelf_page")

	err = c.session.WaitVisible(selTitleTiles, resultsWaitTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "shelf tiles did not appear")
		return nil, fmt.Errorf("shelf tiles did not appear: %w", err)
	}

	doc, err := c.html(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to read shelf page")
		return nil, err
	}

	titles := ParseShelfTitles(doc)
	span.SetAttributes(attribute.Int("titles", len(titles)))
	if len(titles) == 0 {
		return nil, fmt.Errorf("no audiobooks found on your shelf")
	}
	return titles, nil
}

// OpenAudiobook opens the player for the idx-th shelf tile
// (0-based). The first part starts loading as soon as the player
// page settles.
func (c *Client) OpenAudiobook(ctx context.Context, idx int, title string) error {
	ctx, span := tracer.Start(ctx, "client:OpenAudiobook")
	defer span.End()
	span.SetAttributes(attribute.String("title", title))

	slog.InfoContext(ctx, "opening audiobook", "title", title)
	err := c.session.Click(fmt.Sprintf(selNthOpenAudiobook, idx+1), clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open audiobook")
		return fmt.Errorf("open audiobook %q: %w", title, err)
	}
	sleep(ctx, settleMedium)
	c.screenshot(ctx, "after_open_audiobook")

	// let the player fetch its initial parts
	sleep(ctx, playerLoadWait)
	c.screenshot(ctx, "after_player_load")
	return nil
}
