package render

import "math"

const (
	A4WidthMM  = 210.0
	A4HeightMM = 297.0
)

// Slice 是位图中的一段水平条带，单位为像素。
type Slice struct {
	Top    int
	Height int
}

// PageHeightPx 返回给定宽度位图中一页 A4 的像素高度。
func PageHeightPx(widthPx int) int {
	if widthPx <= 0 {
		return 0
	}
	return int(math.Round(float64(widthPx) * A4HeightMM / A4WidthMM))
}

// Paginate 将 widthPx × heightPx 的位图切成连续的 A4 条带。
// 条带互不重叠，每一行恰好覆盖一次，只有最后一段可能不足一页。
func Paginate(widthPx, heightPx int) []Slice {
	pageH := PageHeightPx(widthPx)
	if pageH == 0 || heightPx <= 0 {
		return nil
	}
	slices := make([]Slice, 0, (heightPx+pageH-1)/pageH)
	for top := 0; top < heightPx; top += pageH {
		h := pageH
		if rest := heightPx - top; rest < h {
			h = rest
		}
		slices = append(slices, Slice{Top: top, Height: h})
	}
	return slices
}

// SliceHeightMM 将条带高度换算为 A4 页面上的毫米数。
func SliceHeightMM(widthPx int, s Slice) float64 {
	return float64(s.Height) * A4WidthMM / float64(widthPx)
}
