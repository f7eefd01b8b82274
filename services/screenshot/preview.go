package screenshot

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	MethodMicrolink   = "microlink"
	MethodOpenGraph   = "opengraph"
	MethodPlaceholder = "placeholder"
)

// Preview is the result of a website preview lookup. It never carries an
// error towards the caller: failures come back with Success=false and a
// fallback image.
type Preview struct {
	URL           string `json:"url,omitempty"`
	Success       bool   `json:"success"`
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
	Method        string `json:"method,omitempty"`
	Error         string `json:"error,omitempty"`
	FallbackURL   string `json:"fallbackUrl,omitempty"`
}

type Previewer struct {
	http        *resty.Client
	placeholder string
}

// NewPreviewer uses microlink at baseURL. placeholder is an image service
// base URL; the site's domain is appended as ?text=.
func NewPreviewer(baseURL, placeholder string, timeout time.Duration) *Previewer {
	return &Previewer{
		http:        resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(timeout),
		placeholder: placeholder,
	}
}

type microlinkResponse struct {
	Status string `json:"status"`
	Data   struct {
		Screenshot *struct {
			URL string `json:"url"`
		} `json:"screenshot"`
		Image *struct {
			URL string `json:"url"`
		} `json:"image"`
		Logo *struct {
			URL string `json:"url"`
		} `json:"logo"`
	} `json:"data"`
}

func (p *Previewer) lookup(ctx context.Context, params map[string]string) (*microlinkResponse, error) {
	var r microlinkResponse
	_, err := p.http.R().SetContext(ctx).SetQueryParams(params).SetResult(&r).Get("/")
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Previewer) placeholderFor(text string) string {
	return p.placeholder + "?text=" + url.QueryEscape(text)
}

// Preview tries a live screenshot, then the site's OpenGraph image or logo,
// then a placeholder labelled with the domain.
func (p *Previewer) Preview(ctx context.Context, site string) Preview {
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return Preview{Success: false, Error: "Failed to generate preview", FallbackURL: p.placeholderFor("Preview Unavailable")}
	}

	if r, err := p.lookup(ctx, map[string]string{"url": site, "screenshot": "true", "meta": "false"}); err == nil &&
		r.Status == "success" && r.Data.Screenshot != nil && r.Data.Screenshot.URL != "" {
		return Preview{Success: true, ScreenshotURL: r.Data.Screenshot.URL, Method: MethodMicrolink}
	} else if err != nil {
		zap.L().Debug("microlink screenshot failed", zap.String("url", site), zap.Error(err))
	}

	if r, err := p.lookup(ctx, map[string]string{"url": site}); err == nil && r.Status == "success" {
		if r.Data.Image != nil && r.Data.Image.URL != "" {
			return Preview{Success: true, ScreenshotURL: r.Data.Image.URL, Method: MethodOpenGraph}
		}
		if r.Data.Logo != nil && r.Data.Logo.URL != "" {
			return Preview{Success: true, ScreenshotURL: r.Data.Logo.URL, Method: MethodOpenGraph}
		}
	}

	return Preview{Success: true, ScreenshotURL: p.placeholderFor(u.Hostname()), Method: MethodPlaceholder}
}

// ScreenshotOnly returns just the microlink screenshot URL, or Success=false.
func (p *Previewer) ScreenshotOnly(ctx context.Context, site string) Preview {
	r, err := p.lookup(ctx, map[string]string{"url": site, "screenshot": "true", "meta": "false"})
	if err != nil {
		return Preview{URL: site, Success: false}
	}
	out := Preview{URL: site, Success: true}
	if r.Data.Screenshot != nil {
		out.ScreenshotURL = r.Data.Screenshot.URL
	}
	return out
}
