package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	Headless bool
	// ProfileDir keeps browser state between runs so the site does
	// not have to be re-authenticated every time. Empty means a
	// throwaway profile.
	ProfileDir string
	// ExecPath points at a specific Chrome/Chromium binary.
	ExecPath  string
	UserAgent string
}

// Session is a driven Chrome instance.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func NewSession(ctx context.Context, opts Options) (*Session, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(ua),
	)
	if !opts.Headless {
		// undo the three opts in chromedp.Headless() which is
		// included in DefaultExecAllocatorOptions
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug("chromedp", "msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
	}))

	// prime the browser process
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancel()
		allocCancel()
		return nil, err
	}
	err = chromedp.Run(browserCtx, network.Enable())
	if err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	return &Session{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// Context returns the chromedp target context, usable with
// chromedp.Run directly.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (s *Session) Navigate(url string, timeout time.Duration) error {
	return s.run(timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// queryOpt picks the selector strategy: selectors starting with "/"
// or "(" are xpath, everything else is a css query.
func queryOpt(sel string) chromedp.QueryOption {
	if strings.HasPrefix(sel, "/") || strings.HasPrefix(sel, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (s *Session) Click(sel string, timeout time.Duration) error {
	return s.run(timeout, chromedp.Click(sel, queryOpt(sel)))
}

func (s *Session) Fill(sel, value string, timeout time.Duration) error {
	return s.run(timeout,
		chromedp.WaitVisible(sel, queryOpt(sel)),
		chromedp.Clear(sel, queryOpt(sel)),
		chromedp.SendKeys(sel, value, queryOpt(sel)),
	)
}

func (s *Session) WaitVisible(sel string, timeout time.Duration) error {
	return s.run(timeout, chromedp.WaitVisible(sel, queryOpt(sel)))
}

func (s *Session) OuterHTML(timeout time.Duration) (string, error) {
	var html string
	err := s.run(timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Screenshot(path string, timeout time.Duration) error {
	var buf []byte
	err := s.run(timeout, chromedp.CaptureScreenshot(&buf))
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// Cookies exports the browser's cookie jar for use with a plain http
// client.
func (s *Session) Cookies(timeout time.Duration) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	err := s.run(timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
				Secure: c.Secure,
			})
		}
		return nil
	}))
	return cookies, err
}
