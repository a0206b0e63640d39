// Package render 将完整的 HTML 页面转换为分页的 A4 PDF。
//
// raster 模式按配置的逻辑宽度截取整页位图再切分为 A4 页，与预览一致；
// print 模式使用 Chromium 原生打印，文本可选中。
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	ModeRaster = "raster"
	ModePrint  = "print"

	DefaultWidthPx = 800
	DefaultScale   = 2
)

var ErrRender = errors.New("render failed")

// Options 无头浏览器配置。
type Options struct {
	Mode        string
	WidthPx     int
	Scale       float64
	Timeout     time.Duration
	JPEGQuality int
	BrowserBin  string
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeRaster
	}
	if o.WidthPx <= 0 {
		o.WidthPx = DefaultWidthPx
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = 92
	}
	return o
}

// Result 生成的 PDF。
type Result struct {
	PDF   []byte
	Pages int
}

// Generator 由完整 HTML 页面生成 PDF。
type Generator interface {
	Generate(ctx context.Context, html string, page PageOptions) (*Result, error)
}

// New 按 opts.Mode 返回对应的生成器。
func New(opts Options, logger *slog.Logger) (Generator, error) {
	opts = opts.withDefaults()
	switch opts.Mode {
	case ModeRaster:
		return NewPipeline(NewRodRasterizer(opts, logger), opts, logger), nil
	case ModePrint:
		return NewPrintExporter(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown render mode %q", opts.Mode)
	}
}
