package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"
)

// Rasterizer 将 HTML 页面截取为一张整页位图。
type Rasterizer interface {
	Rasterize(ctx context.Context, html string) (image.Image, error)
}

// RodRasterizer 通过 go-rod 驱动无头 Chromium 截图。
type RodRasterizer struct {
	opts   Options
	logger *slog.Logger
}

func NewRodRasterizer(opts Options, logger *slog.Logger) *RodRasterizer {
	return &RodRasterizer{opts: opts.withDefaults(), logger: logger}
}

// Rasterize 以固定逻辑宽度和设备缩放比截取整页 PNG 并解码。
func (r *RodRasterizer) Rasterize(ctx context.Context, html string) (image.Image, error) {
	s, err := openPage(ctx, r.logger, r.opts, html)
	if err != nil {
		return nil, err
	}
	defer s.cleanup()

	data, err := s.page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("full page screenshot: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	r.logger.Debug("render: page rasterised",
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
	)
	return img, nil
}
