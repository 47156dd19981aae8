// Package browser renders pages in headless Chrome for screenshots.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"WebResearcher/internal/config"
	"WebResearcher/internal/ports"
)

// Capturer takes viewport screenshots with a lazily started browser that is
// shared by all captures. Every capture runs in its own incognito context.
type Capturer struct {
	cfg    config.BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

var _ ports.ScreenshotCapturer = (*Capturer)(nil)

// NewCapturer builds a capturer; the browser starts on first use.
func NewCapturer(cfg config.BrowserConfig, log *slog.Logger) *Capturer {
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 800
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Capturer{cfg: cfg, logger: log}
}

// Capture renders pageURL and returns a PNG of the viewport.
func (c *Capturer) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("screenshot url %q is not http(s)", pageURL)
	}

	browser, err := c.ensureStarted()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	defer func() { _ = incognito.Close() }()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.ViewportWidth,
		Height:            c.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		c.debug("set viewport failed", "url", pageURL, "error", err)
	}

	page = page.Context(ctx)
	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	c.debug("screenshot captured", "url", pageURL, "bytes", len(shot))
	return shot, nil
}

// Close shuts the browser down if it was started.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	return err
}

func (c *Capturer) ensureStarted() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		return c.browser, nil
	}

	controlURL := c.cfg.ControlURL
	if controlURL == "" {
		launch := launcher.New().Headless(true)
		if c.cfg.Bin != "" {
			launch = launch.Bin(c.cfg.Bin)
		}
		u, err := launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	c.browser = browser
	return browser, nil
}

// DataURL encodes a PNG as an inline data URL.
func DataURL(png []byte) (string, error) {
	if len(png) == 0 {
		return "", errors.New("empty screenshot")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func (c *Capturer) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
