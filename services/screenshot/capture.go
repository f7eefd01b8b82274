package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Capturer renders a page to PNG bytes.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// RodCapturer drives a lazily launched headless Chrome.
type RodCapturer struct {
	bin           string
	width, height int
	timeout       time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

func NewRodCapturer(bin string, width, height int, timeout time.Duration) *RodCapturer {
	return &RodCapturer{bin: bin, width: width, height: height, timeout: timeout}
}

func (r *RodCapturer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true)
	if r.bin != "" {
		l = l.Bin(r.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	r.browser = b
	return b, nil
}

func (r *RodCapturer) Capture(ctx context.Context, url string) ([]byte, error) {
	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	p := page.Context(ctx).Timeout(r.timeout)
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             r.width,
		Height:            r.height,
		DeviceScaleFactor: 1,
	}).Call(p); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}
	return p.Screenshot(false, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
}

func (r *RodCapturer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Store captures pages and writes them under dir, served at urlPrefix.
type Store struct {
	capturer  Capturer
	dir       string
	urlPrefix string
}

func NewStore(c Capturer, dir, urlPrefix string) *Store {
	return &Store{capturer: c, dir: dir, urlPrefix: urlPrefix}
}

// Save captures site and returns the public URL of the stored PNG.
func (s *Store) Save(ctx context.Context, site, table string, id uint) (string, error) {
	png, err := s.capturer.Capture(ctx, site)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	name := fmt.Sprintf("%s-%d.png", unsafeName.ReplaceAllString(table, "_"), id)
	if err := os.WriteFile(filepath.Join(s.dir, name), png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return s.urlPrefix + "/" + name, nil
}
