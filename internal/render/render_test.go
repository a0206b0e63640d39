package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateCoversEveryRowOnce(t *testing.T) {
	const width = 1600
	pageH := PageHeightPx(width)
	require.Equal(t, 2263, pageH)

	for _, height := range []int{1, pageH - 1, pageH, pageH + 1, 3*pageH + 17, 10 * pageH} {
		slices := Paginate(width, height)
		require.NotEmpty(t, slices)

		next := 0
		for i, s := range slices {
			assert.Equal(t, next, s.Top, "slice %d starts where the previous ended", i)
			assert.Positive(t, s.Height)
			assert.LessOrEqual(t, s.Height, pageH)
			if i < len(slices)-1 {
				assert.Equal(t, pageH, s.Height)
			}
			next = s.Top + s.Height
		}
		assert.Equal(t, height, next, "height %d fully covered", height)
	}

	assert.Len(t, Paginate(width, pageH), 1)
	assert.Len(t, Paginate(width, pageH+1), 2)
	assert.Nil(t, Paginate(width, 0))
	assert.Nil(t, Paginate(0, 100))
}

func TestSliceHeightMM(t *testing.T) {
	full := Slice{Top: 0, Height: PageHeightPx(1600)}
	assert.InDelta(t, A4HeightMM, SliceHeightMM(1600, full), 0.1)
	assert.InDelta(t, A4HeightMM/2, SliceHeightMM(1600, Slice{Height: full.Height / 2}), 0.1)
}

func stripes(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{R: uint8(y), G: 255, B: 255, A: 255}
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestWritePDF(t *testing.T) {
	img := stripes(100, 300)

	data, pages, err := WritePDF(img, PageOptions{Title: "Offer", PageNumbers: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Len(t, pageObject.FindAll(data, -1), 3)

	_, _, err = WritePDF(image.NewRGBA(image.Rect(0, 0, 100, 0)), PageOptions{}, 90)
	assert.Error(t, err)
}

type fakeRasterizer struct {
	img image.Image
	err error
}

func (f fakeRasterizer) Rasterize(context.Context, string) (image.Image, error) {
	return f.img, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineGenerate(t *testing.T) {
	ctx := context.Background()

	p := NewPipeline(fakeRasterizer{img: stripes(1600, 5000)}, Options{}, discardLogger())
	res, err := p.Generate(ctx, "<p>x</p>", PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	assert.NotEmpty(t, res.PDF)

	boom := errors.New("chromium crashed")
	p = NewPipeline(fakeRasterizer{err: boom}, Options{}, discardLogger())
	res, err = p.Generate(ctx, "<p>x</p>", PageOptions{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRender)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	p = NewPipeline(fakeRasterizer{img: stripes(100, 100)}, Options{}, discardLogger())
	res, err = p.Generate(cancelled, "<p>x</p>", PageOptions{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSelectsMode(t *testing.T) {
	g, err := New(Options{}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &Pipeline{}, g)

	g, err = New(Options{Mode: ModePrint}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &PrintExporter{}, g)

	_, err = New(Options{Mode: "fax"}, discardLogger())
	assert.Error(t, err)
}

func TestOptionsKeepConfiguredWidth(t *testing.T) {
	opts := Options{WidthPx: 1000}.withDefaults()
	assert.Equal(t, 1000, opts.WidthPx)
	assert.Equal(t, PageHeightPx(1000), viewportHeight(opts.WidthPx))
	assert.Equal(t, DefaultWidthPx, Options{}.withDefaults().WidthPx)
}

func TestThumbnail(t *testing.T) {
	data, err := Thumbnail(stripes(1600, 6000), 200, 0)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, PageHeightPx(200), img.Bounds().Dy())

	_, err = Thumbnail(image.NewRGBA(image.Rect(0, 0, 0, 0)), 200, 80)
	assert.Error(t, err)
}
