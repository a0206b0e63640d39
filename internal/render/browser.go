package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// session 是一次渲染独占的浏览器与页面。
type session struct {
	page    *rod.Page
	cleanup func()
}

// openPage 启动无头 Chromium，按给定视口加载 HTML 并等待字体就绪。
func openPage(ctx context.Context, logger *slog.Logger, opts Options, html string) (_ *session, err error) {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)
	defer func() {
		if err != nil {
			launch.Cleanup()
		}
	}()

	if opts.BrowserBin != "" {
		launch = launch.Bin(opts.BrowserBin)
	} else if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL).Context(ctx).Timeout(opts.Timeout)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	s := &session{cleanup: func() {
		_ = browser.Close()
		launch.Cleanup()
	}}
	defer func() {
		if err != nil {
			s.cleanup()
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.page = page
	s.cleanup = func() {
		_ = page.Close()
		_ = browser.Close()
		launch.Cleanup()
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.WidthPx,
		Height:            viewportHeight(opts.WidthPx),
		DeviceScaleFactor: opts.Scale,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	// 等待 WebFont 就绪，避免回退字体导致排版差异
	if _, evalErr := page.Timeout(5 * time.Second).Eval(`() => {
	  if (document && document.fonts && document.fonts.ready) {
	    return Promise.race([
	      document.fonts.ready.then(() => true),
	      new Promise((resolve) => setTimeout(() => resolve(true), 3000))
	    ]);
	  }
	  return true;
	}`); evalErr != nil {
		logger.Warn("render: document.fonts.ready wait failed, continue", slog.Any("error", evalErr))
	}

	return s, nil
}

// viewportHeight 为给定宽度下一页 A4 的高度。
func viewportHeight(width int) int {
	return PageHeightPx(width)
}

func float64Ptr(v float64) *float64 { return &v }
