package libby

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"libbydl/lib/browser"
	"libbydl/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const baseUrl = "https://libbyapp.com/"

// Prompter resolves choices the automation cannot make on its own.
type Prompter interface {
	// Choose presents options and returns the selected index.
	Choose(label string, options []string) (int, error)
}

type Client struct {
	session *browser.Session
	prompt  Prompter

	shotDir string
	shotNo  int
}

type ClientOptions struct {
	Session *browser.Session
	Prompt  Prompter
	// ScreenshotDir receives a numbered screenshot after every UI
	// milestone. Empty disables screenshots.
	ScreenshotDir string
}

func NewClient(opts ClientOptions) *Client {
	return &Client{
		session: opts.Session,
		prompt:  opts.Prompt,
		shotDir: opts.ScreenshotDir,
	}
}

func (c *Client) screenshot(ctx context.Context, name string) {
	if c.shotDir == "" {
		return
	}
	c.shotNo++
	path := filepath.Join(c.shotDir, fmt.Sprintf("%02d_%s.png", c.shotNo, name))
	err := c.session.Screenshot(path, htmlTimeout)
	if err != nil {
		slog.WarnContext(ctx, "failed to take screenshot", "name", name, "err", err)
	}
}

func (c *Client) html(ctx context.Context) (*goquery.Document, error) {
	html, err := c.session.OuterHTML(htmlTimeout)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewBufferString(html))
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

type Credentials struct {
	CardNumber string
	Pin        string
	Library    string
}

type LoginOptions struct {
	Credentials
	// Remembered selections from an earlier run; nil prompts.
	LibraryResultIndex *int
	CardUsageIndex     *int
}

// LoginResult reports the selections actually used so they can be
// persisted in config.
type LoginResult struct {
	LibraryResultIndex int
	CardUsageIndex     int
}

// Login drives the full sign-in sequence: landing page, library
// search and selection, card-usage selection, card number, pin.
func (c *Client) Login(ctx context.Context, opts LoginOptions) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	result := LoginResult{}

	slog.InfoContext(ctx, "navigating to libby", "url", baseUrl)
	err := c.session.Navigate(baseUrl, navigateTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open landing page")
		return result, fmt.Errorf("open landing page: %w", err)
	}
	c.screenshot(ctx, "initial_load")

	slog.InfoContext(ctx, "confirming library card")
	err = c.session.Click(selYesCardButton, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to click card confirmation")
		return result, fmt.Errorf(`click "Yes, I Have A Library Card": %w`, err)
	}
	sleep(ctx, settleShort)
	c.screenshot(ctx, "after_yes_card")

	err = c.session.Click(selSearchLibraryButton, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to click library search")
		return result, fmt.Errorf(`click "Search For A Library": %w`, err)
	}
	sleep(ctx, settleShort)
	c.screenshot(ctx, "after_search_library")

	slog.InfoContext(ctx, "searching for library", "library", opts.Library)
	err = c.session.Fill(selLibrarySearchInput, opts.Library, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fill library search")
		return result, fmt.Errorf("fill library search input: %w", err)
	}
	sleep(ctx, settleMedium)
	c.screenshot(ctx, "after_library_search_input")

	libraryIdx, err := c.selectLibrary(ctx, opts.LibraryResultIndex)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to select library")
		return result, err
	}
	result.LibraryResultIndex = libraryIdx
	sleep(ctx, settleMedium)
	c.screenshot(ctx, "after_select_library")

	err = c.session.Click(selSignInWithCard, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to click card sign-in")
		return result, fmt.Errorf(`click "Sign In With My Card": %w`, err)
	}
	sleep(ctx, settleShort)
	c.screenshot(ctx, "after_sign_in_with_card")

	usageIdx, err := c.selectCardUsage(ctx, opts.CardUsageIndex)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to select card usage option")
		return result, err
	}
	result.CardUsageIndex = usageIdx
	sleep(ctx, settleMedium)
	c.screenshot(ctx, "after_select_card_usage")

	slog.InfoContext(ctx, "entering card number")
	err = c.session.Fill(selCardNumberInput, opts.CardNumber, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fill card number")
		return result, fmt.Errorf("fill card number: %w", err)
	}
	sleep(ctx, settleMedium)
	c.screenshot(ctx, "after_card_number_input")

	err = c.session.Click(selNextButton, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to click next")
		return result, fmt.Errorf(`click "Next": %w`, err)
	}
	sleep(ctx, settleShort)
	c.screenshot(ctx, "after_card_number_next")

	slog.InfoContext(ctx, "entering pin")
	err = c.session.Fill(selPinInput, opts.Pin, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fill pin")
		return result, fmt.Errorf("fill pin: %w", err)
	}
	sleep(ctx, settleMedium)
	c.screenshot(ctx, "after_pin_input")

	err = c.session.Click(selSignInButton, clickTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "failed to click sign in")
		return result, fmt.Errorf(`click "Sign In": %w`, err)
	}
	sleep(ctx, settleShort)
	c.screenshot(ctx, "after_final_sign_in")

	// a confirmation "Next" sometimes shows up after login
	err = c.session.Click(selNextButton, shortClickTimeout)
	if err == nil {
		sleep(ctx, settleShort)
		c.screenshot(ctx, "after_post_login_next")
	} else {
		slog.DebugContext(ctx, "no post-login confirmation, proceeding")
	}

	c.screenshot(ctx, "after_login_complete")
	slog.InfoContext(ctx, "login sequence complete")
	return result, nil
}

type LibraryResult struct {
	System string
	Branch string
}

func (r LibraryResult) String() string {
	if r.System != "" && r.Branch != "" {
		return fmt.Sprintf("%s (%s)", r.System, r.Branch)
	}
	if r.Branch != "" {
		return r.Branch
	}
	return r.System
}

// ParseLibraryResults pulls the library search results out of the
// page markup.
func ParseLibraryResults(doc *goquery.Document) []LibraryResult {
	var out []LibraryResult
	doc.Find(selLibraryResult).Each(func(_ int, sel *goquery.Selection) {
		r := LibraryResult{
			System: htmlutil.CleanText(sel.Find(selLibrarySystemName).First().Text()),
			Branch: htmlutil.CleanText(sel.Find(selLibraryBranchName).First().Text()),
		}
		if r.String() != "" {
			out = append(out, r)
		}
	})
	return out
}

func (c *Client) selectLibrary(ctx context.Context, remembered *int) (int, error) {
	ctx, span := tracer.Start(ctx, "client:selectLibrary")
	defer span.End()

	err := c.session.WaitVisible(selLibraryResult, resultsWaitTimeout)
	if err != nil {
		return 0, fmt.Errorf("library search results did not appear: %w", err)
	}

	doc, err := c.html(ctx)
	if err != nil {
		return 0, err
	}
	results := ParseLibraryResults(doc)
	if len(results) == 0 {
		return 0, fmt.Errorf("no libraries matched the search term")
	}
	span.SetAttributes(attribute.Int("results", len(results)))

	idx := -1
	if remembered != nil && *remembered >= 0 && *remembered < len(results) {
		idx = *remembered
		slog.InfoContext(ctx, "using saved library selection", "library", results[idx].String())
	} else {
		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.String()
		}
		idx, err = c.prompt.Choose("Select your library", names)
		if err != nil {
			return 0, err
		}
	}

	err = c.session.Click(fmt.Sprintf(selNthLibraryResult, idx+1), clickTimeout)
	if err != nil {
		return 0, fmt.Errorf("click library result %d: %w", idx, err)
	}
	return idx, nil
}

// ParseCardUsageOptions pulls the "where do you use your library
// card?" choices out of the page markup.
func ParseCardUsageOptions(doc *goquery.Document) []string {
	var out []string
	doc.Find(selCardUsageButtons).Each(func(_ int, sel *goquery.Selection) {
		text := htmlutil.CleanText(sel.Text())
		if text != "" {
			out = append(out, text)
		}
	})
	return out
}

func (c *Client) selectCardUsage(ctx context.Context, remembered *int) (int, error) {
	ctx, span := tracer.Start(ctx, "client:selectCardUsage")
	defer span.End()

	err := c.session.WaitVisible(selCardUsageButtons, optionsWaitTimeout)
	if err != nil {
		return 0, fmt.Errorf("card usage options did not appear: %w", err)
	}

	doc, err := c.html(ctx)
	if err != nil {
		return 0, err
	}
	options := ParseCardUsageOptions(doc)
	if len(options) == 0 {
		return 0, fmt.Errorf("no card usage options found on the page")
	}
	span.SetAttributes(attribute.Int("options", len(options)))

	idx := -1
	if remembered != nil && *remembered >= 0 && *remembered < len(options) {
		idx = *remembered
		slog.InfoContext(ctx, "using saved card usage option", "option", options[idx])
	} else {
		idx, err = c.prompt.Choose("Where do you use your library card?", options)
		if err != nil {
			return 0, err
		}
	}

	err = c.session.Click(fmt.Sprintf(selNthCardUsage, idx+1), clickTimeout)
	if err != nil {
		return 0, fmt.Errorf("click card usage option %d: %w", idx, err)
	}
	return idx, nil
}
