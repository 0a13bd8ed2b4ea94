package browser

import (
	"context"
	"log/slog"
	"sync"

	"libbydl/lib/capture"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

type pendingResponse struct {
	url    string
	status int64
}

// CaptureAudio attaches a network listener that feeds the tracker.
// Trigger requests set the current part number; once a CDN response
// finishes loading, its body is pulled through the devtools protocol
// and handed to the tracker. Runs until the session closes.
func (s *Session) CaptureAudio(tracker *capture.Tracker) {
	var mu sync.Mutex
	pending := map[network.RequestID]pendingResponse{}

	chromedp.ListenTarget(s.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			tracker.ObserveRequest(s.ctx, e.Request.URL)

		case *network.EventResponseReceived:
			if !tracker.IsAudioUrl(e.Response.URL) {
				return
			}
			mu.Lock()
			pending[e.RequestID] = pendingResponse{
				url:    e.Response.URL,
				status: e.Response.Status,
			}
			mu.Unlock()

		case *network.EventLoadingFinished:
			mu.Lock()
			res, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if !ok {
				return
			}

			// the body has to be fetched outside the listener
			// callback, chromedp would deadlock otherwise
			tracker.BeginFetch()
			go s.fetchBody(tracker, e.RequestID, res)

		case *network.EventLoadingFailed:
			mu.Lock()
			res, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if ok {
				slog.Warn("cdn response failed to load", "url", res.url, "err", e.ErrorText)
			}
		}
	})
}

func (s *Session) fetchBody(tracker *capture.Tracker, id network.RequestID, res pendingResponse) {
	defer tracker.EndFetch()

	var body []byte
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if err != nil {
		slog.Warn("failed to read cdn response body", "url", res.url, "err", err)
		// an empty body records the url so the direct refetch
		// fallback can still try it
		body = nil
	}

	_, err = tracker.SaveBody(s.ctx, res.url, res.status, body)
	if err != nil {
		slog.Warn("failed to save part", "url", res.url, "err", err)
	}
}
