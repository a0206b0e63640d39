package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const DefaultThumbnailWidth = 320

// Thumbnail 将 img 的第一页 A4 缩放到 width 像素宽并编码为 JPEG。
func Thumbnail(img image.Image, width, quality int) ([]byte, error) {
	src := img.Bounds()
	if src.Empty() {
		return nil, fmt.Errorf("thumbnail of empty image")
	}
	if width <= 0 {
		width = DefaultThumbnailWidth
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	first := src
	if h := PageHeightPx(src.Dx()); h < src.Dy() {
		first.Max.Y = src.Min.Y + h
	}
	height := PageHeightPx(width)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	scaledH := first.Dy() * width / first.Dx()
	draw.CatmullRom.Scale(dst, image.Rect(0, 0, width, scaledH), img, first, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
