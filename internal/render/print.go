package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"workflowhr/internal/metrics"
)

const pageNumberFooter = `<div style="font-size:8px;width:100%;text-align:center;color:#808080;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

var pageObject = regexp.MustCompile(`/Type\s*/Page[^s]`)

// PrintExporter 使用 Chromium 打印接口生成 PDF。
type PrintExporter struct {
	opts   Options
	logger *slog.Logger
}

func NewPrintExporter(opts Options, logger *slog.Logger) *PrintExporter {
	return &PrintExporter{opts: opts.withDefaults(), logger: logger}
}

// Generate 使用浏览器原生打印导出 A4 PDF，文本保持可选中。
func (e *PrintExporter) Generate(ctx context.Context, html string, page PageOptions) (res *Result, err error) {
	start := time.Now()
	defer func() {
		pages := 0
		if res != nil {
			pages = res.Pages
		}
		metrics.ObserveRender(ModePrint, time.Since(start), pages, err)
	}()

	s, err := openPage(ctx, e.logger, e.opts, html)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	defer s.cleanup()

	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(s.page); err != nil {
		return nil, fmt.Errorf("%w: set emulated media to print: %v", ErrRender, err)
	}

	params := &proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      float64Ptr(8.27),
		PaperHeight:     float64Ptr(11.69),
		MarginTop:       float64Ptr(0),
		MarginBottom:    float64Ptr(0),
		MarginLeft:      float64Ptr(0),
		MarginRight:     float64Ptr(0),
	}
	if page.PageNumbers {
		params.DisplayHeaderFooter = true
		params.HeaderTemplate = "<span></span>"
		params.FooterTemplate = pageNumberFooter
		params.MarginBottom = float64Ptr(0.4)
	}

	reader, err := s.page.PDF(params)
	if err != nil {
		return nil, fmt.Errorf("%w: export pdf: %v", ErrRender, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf bytes: %v", ErrRender, err)
	}

	pages := len(pageObject.FindAll(data, -1))
	e.logger.Info("render: pdf generated",
		slog.String("mode", ModePrint),
		slog.Int("pages", pages),
		slog.Int("bytes", len(data)),
	)
	return &Result{PDF: data, Pages: pages}, nil
}
