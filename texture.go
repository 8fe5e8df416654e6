package fileloader

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// LoadImage 按扩展名解码纹理，ppm/pfm 使用自带解码器
func LoadImage(name string) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ppm":
		img, err := ReadPpm(name)
		if err != nil {
			return nil, err
		}
		return img.ToNRGBA(), nil
	case ".pfm":
		img, _, err := ReadPfm(name)
		if err != nil {
			return nil, err
		}
		return img.ToNRGBA(), nil
	}

	reader, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	_, format, err := image.DecodeConfig(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var img image.Image
	switch format {
	case "jpeg", "jpg":
		img, err = jpeg.Decode(reader)
	case "png":
		img, err = png.Decode(reader)
	case "gif":
		img, err = gif.Decode(reader)
	case "bmp":
		img, err = bmp.Decode(reader)
	case "tif", "tiff":
		img, err = tiff.Decode(reader)
	default:
		return nil, fmt.Errorf("%w: unknow format %s", ErrUnsupported, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return img, nil
}

// FlipY 上下翻转图像
func FlipY(src image.Image) *image.NRGBA {
	bd := src.Bounds()
	w, h := bd.Dx(), bd.Dy()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			c := color.NRGBAModel.Convert(src.At(bd.Min.X+j, bd.Min.Y+i)).(color.NRGBA)
			img.SetNRGBA(j, h-i-1, c)
		}
	}
	return img
}
