package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"workflowhr/internal/metrics"
)

// Pipeline 栅格化生成器：先截图，再用 gofpdf 分页。
type Pipeline struct {
	raster Rasterizer
	opts   Options
	logger *slog.Logger
}

func NewPipeline(raster Rasterizer, opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{raster: raster, opts: opts.withDefaults(), logger: logger}
}

// Generate 渲染 html 并返回 PDF，整页位图截取成功前不产出任何内容。
func (p *Pipeline) Generate(ctx context.Context, html string, page PageOptions) (res *Result, err error) {
	start := time.Now()
	defer func() {
		pages := 0
		if res != nil {
			pages = res.Pages
		}
		metrics.ObserveRender(ModeRaster, time.Since(start), pages, err)
	}()

	img, err := p.raster.Rasterize(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("%w: rasterize: %v", ErrRender, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, pages, err := WritePDF(img, page, p.opts.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	p.logger.Info("render: pdf generated",
		slog.String("mode", ModeRaster),
		slog.Int("pages", pages),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return &Result{PDF: data, Pages: pages}, nil
}
