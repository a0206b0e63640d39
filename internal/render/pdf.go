package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"
)

// PageOptions 单个文档的 PDF 组装选项。
type PageOptions struct {
	Title       string
	PageNumbers bool
}

// WritePDF 将 img 切分为 A4 页并组装成 PDF。
func WritePDF(img image.Image, opts PageOptions, jpegQuality int) ([]byte, int, error) {
	bounds := img.Bounds()
	slices := Paginate(bounds.Dx(), bounds.Dy())
	if len(slices) == 0 {
		return nil, 0, fmt.Errorf("empty bitmap %dx%d", bounds.Dx(), bounds.Dy())
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 92
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	if opts.PageNumbers {
		pdf.AliasNbPages("")
		pdf.SetFooterFunc(func() {
			pdf.SetY(-10)
			pdf.SetFont("Helvetica", "", 8)
			pdf.SetTextColor(128, 128, 128)
			pdf.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		})
	}

	imgOpts := gofpdf.ImageOptions{ImageType: "JPG"}
	for i, s := range slices {
		band := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), s.Height))
		draw.Draw(band, band.Bounds(), img, image.Pt(bounds.Min.X, bounds.Min.Y+s.Top), draw.Src)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, band, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, 0, fmt.Errorf("encode page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("page-%d", i+1)
		pdf.RegisterImageOptionsReader(name, imgOpts, &buf)
		pdf.AddPage()
		pdf.ImageOptions(name, 0, 0, A4WidthMM, SliceHeightMM(bounds.Dx(), s), false, imgOpts, 0, "")
	}

	if pdf.Err() {
		return nil, 0, fmt.Errorf("assemble pdf: %w", pdf.Error())
	}
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, 0, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), len(slices), nil
}
