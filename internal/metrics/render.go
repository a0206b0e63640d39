package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "HTML 转 PDF 的耗时分布（秒）。",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"mode", "result"},
	)

	renderPages = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "pages",
			Help:      "每份生成文档的页数。",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"mode"},
	)
)

// ObserveRender 记录一次 PDF 生成，失败时忽略 pages。
func ObserveRender(mode string, d time.Duration, pages int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	renderDuration.WithLabelValues(mode, result).Observe(d.Seconds())
	if err == nil {
		renderPages.WithLabelValues(mode).Observe(float64(pages))
	}
}
