// Package capture renders ad tags in browsers and screenshots them into the
// output tree.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/jonathan/tagcompare/internal/config"
	"github.com/jonathan/tagcompare/internal/output"
)

// SpinnerSelector matches the loader image tags show until they are rendered.
const SpinnerSelector = `img[class*='pl-loader-']`

const (
	// DefaultTimeout bounds one capture.
	DefaultTimeout = 60 * time.Second
	// DefaultSpinnerTimeout bounds the wait for the loader to disappear.
	DefaultSpinnerTimeout = 20 * time.Second
	// DefaultSettleTime is waited after loading so animations finish.
	DefaultSettleTime = 3 * time.Second
)

// Capturer captures the markup of a tag into the artifact of an identity.
type Capturer interface {
	Capture(ctx context.Context, id output.Identity, markup string) error
}

// BrowserOptions configures a BrowserCapturer.
type BrowserOptions struct {
	Timeout        time.Duration
	SpinnerTimeout time.Duration
	SettleTime     time.Duration
	Logger         *slog.Logger
}

func (o BrowserOptions) withDefaults() BrowserOptions {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.SpinnerTimeout == 0 {
		o.SpinnerTimeout = DefaultSpinnerTimeout
	}
	if o.SettleTime == 0 {
		o.SettleTime = DefaultSettleTime
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// BrowserCapturer captures tags with a Chrome instance, either started
// locally or reached at the remote_url of the config's capabilities.
type BrowserCapturer struct {
	name    string
	caps    config.Capabilities
	opts    BrowserOptions
	logger  *slog.Logger
	browser context.Context
	cancels []context.CancelFunc
}

// NewBrowserCapturer starts (or connects to) the browser of a config.
func NewBrowserCapturer(ctx context.Context, name string, caps config.Capabilities, opts BrowserOptions) (*BrowserCapturer, error) {
	opts = opts.withDefaults()
	b := &BrowserCapturer{
		name:   name,
		caps:   caps,
		opts:   opts,
		logger: opts.Logger.With("config", name),
	}

	var allocCtx context.Context
	var cancel context.CancelFunc
	if caps.RemoteURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, caps.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("hide-scrollbars", true),
		)
		if caps.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(caps.UserAgent))
		}
		if caps.Width > 0 && caps.Height > 0 {
			allocOpts = append(allocOpts, chromedp.WindowSize(caps.Width, caps.Height))
		}
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}
	b.cancels = append(b.cancels, cancel)

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	b.cancels = append(b.cancels, cancel)
	b.browser = browserCtx

	// the first Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to start browser for config %s: %w", name, err)
	}
	b.logger.Debug("browser started", "remote", caps.RemoteURL != "")
	return b, nil
}

// Close shuts the browser down.
func (b *BrowserCapturer) Close() error {
	for i := len(b.cancels) - 1; i >= 0; i-- {
		b.cancels[i]()
	}
	b.cancels = nil
	return nil
}

// Capture renders markup in a new tab, waits for the tag to load and writes
// the screenshot of the tag element and the markup to the artifact paths of
// id.
func (b *BrowserCapturer) Capture(ctx context.Context, id output.Identity, markup string) error {
	imagePath, err := id.ImagePath()
	if err != nil {
		return err
	}
	htmlPath, err := id.HTMLPath()
	if err != nil {
		return err
	}
	if _, err := id.Create(); err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browser)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancel()
	// stop when the caller gives up
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var shot []byte
	err = chromedp.Run(tabCtx,
		b.emulate(),
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(writeDocumentScript(markup), nil),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, cancel := context.WithTimeout(ctx, b.opts.SpinnerTimeout)
			defer cancel()
			if err := chromedp.WaitNotPresent(SpinnerSelector, chromedp.ByQuery).Do(waitCtx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("tag did not finish loading within %s", b.opts.SpinnerTimeout)
				}
				return err
			}
			return nil
		}),
		chromedp.Sleep(b.opts.SettleTime),
		chromedp.Screenshot(TagSelector(id.Type()), &shot, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to capture %s: %w", id, err)
	}

	if err := os.WriteFile(imagePath, shot, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot %s: %w", imagePath, err)
	}
	if _, err := os.Stat(htmlPath); os.IsNotExist(err) {
		if err := os.WriteFile(htmlPath, []byte(markup), 0644); err != nil {
			return fmt.Errorf("failed to write markup %s: %w", htmlPath, err)
		}
	}
	b.logger.Debug("captured tag", "identity", id.String(), "bytes", len(shot))
	return nil
}

// emulate applies the viewport and user agent of the capabilities to a tab.
// Remote browsers are not started with them.
func (b *BrowserCapturer) emulate() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if b.caps.Width > 0 && b.caps.Height > 0 {
			mobile := b.caps.Width < 768
			if err := emulation.SetDeviceMetricsOverride(int64(b.caps.Width), int64(b.caps.Height), 1, mobile).Do(ctx); err != nil {
				return fmt.Errorf("failed to set viewport: %w", err)
			}
		}
		if b.caps.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.caps.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("failed to set user agent: %w", err)
			}
		}
		return nil
	})
}

// TagSelector returns the CSS selector of the element a tag type renders.
func TagSelector(tagType string) string {
	if tagType == "iframe" {
		return "iframe"
	}
	return "body > :not(script):not(noscript):not(style)"
}

// writeDocumentScript replaces the page with markup. Unlike innerHTML,
// document.write runs the scripts of script tags.
func writeDocumentScript(markup string) string {
	quoted, _ := json.Marshal(markup)
	return fmt.Sprintf("document.open(); document.write(%s); document.close();", quoted)
}
