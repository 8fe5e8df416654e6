package fileloader

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})
	return img
}

// TestLoadImage 测试按扩展名加载图像
func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	src := checker()

	write := func(name string, enc func(f *os.File) error) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, enc(f))
		require.NoError(t, f.Close())
		return path
	}

	tests := []struct {
		name string
		path string
	}{
		{"bmp", write("c.bmp", func(f *os.File) error { return bmp.Encode(f, src) })},
		{"tiff", write("c.tiff", func(f *os.File) error { return tiff.Encode(f, src, nil) })},
		{"ppm", write("c.ppm", func(f *os.File) error { return EncodePpm(f, RGBImageFromImage(src), true, "") })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := LoadImage(tt.path)
			require.NoError(t, err)
			assert.Equal(t, src.Bounds(), img.Bounds())
			r, g, b, _ := img.At(0, 0).RGBA()
			assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
			r, g, b, _ = img.At(1, 1).RGBA()
			assert.Equal(t, [3]uint32{0, 0, 0xffff}, [3]uint32{r, g, b})
		})
	}

	bogus := filepath.Join(dir, "c.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0o644))
	_, err := LoadImage(bogus)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = LoadImage(filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestFlipY 测试上下翻转
func TestFlipY(t *testing.T) {
	flipped := FlipY(checker())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, flipped.NRGBAAt(0, 1))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, flipped.NRGBAAt(1, 0))
}
