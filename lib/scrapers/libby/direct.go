package libby

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"libbydl/lib/capture"
	"libbydl/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DirectClient re-downloads parts over plain HTTP using the
// authenticated browser session's cookies. Used when a part's CDN
// response was observed but its body could not be captured.
type DirectClient struct {
	http *resty.Client
}

func NewDirectClient(cookies []*http.Cookie, userAgent string) (*DirectClient, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	if userAgent != "" {
		client.SetHeader("user-agent", userAgent)
	}
	client.SetTimeout(time.Second * 30)

	cdnUrl, err := url.Parse("https://" + capture.CdnHost)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(cdnUrl, cookies)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &DirectClient{http: client}, nil
}

// FetchPart downloads one part straight from its recorded CDN url.
func (c *DirectClient) FetchPart(ctx context.Context, partUrl string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "direct:FetchPart")
	defer span.End()
	span.SetAttributes(attribute.String("url", partUrl))

	res, err := c.http.R().
		SetContext(ctx).
		Get(partUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch part")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, fmt.Errorf("fetch part: status %d", res.StatusCode())
	}
	body := res.Body()
	if len(body) == 0 {
		span.SetStatus(codes.Error, "empty body")
		return nil, fmt.Errorf("fetch part: empty response body")
	}
	return body, nil
}
