package fileloader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	PPM_ASCII  = "P3"
	PPM_BINARY = "P6"
	PFM_RGB    = "PF"
	PFM_GRAY   = "Pf"
)

// RGBImage 8位 RGB 像素，行序自下而上
type RGBImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// FloatImage 浮点像素，行序自下而上
type FloatImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32
}

func NewRGBImage(w, h int) *RGBImage {
	return &RGBImage{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
}

// RGBImageFromImage 转换任意图像，行序翻转为自下而上
func RGBImageFromImage(src image.Image) *RGBImage {
	bd := src.Bounds()
	img := NewRGBImage(bd.Dx(), bd.Dy())
	for y := 0; y < img.Height; y++ {
		row := (img.Height - 1 - y) * img.Width * 3
		for x := 0; x < img.Width; x++ {
			c := color.NRGBAModel.Convert(src.At(bd.Min.X+x, bd.Min.Y+y)).(color.NRGBA)
			copy(img.Pix[row+x*3:], []uint8{c.R, c.G, c.B})
		}
	}
	return img
}

// ToNRGBA 转为自上而下的标准图像
func (img *RGBImage) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		src := (img.Height - 1 - y) * img.Width * 3
		for x := 0; x < img.Width; x++ {
			p := img.Pix[src+x*3:]
			out.SetNRGBA(x, y, color.NRGBA{R: p[0], G: p[1], B: p[2], A: 255})
		}
	}
	return out
}

// ToNRGBA 数值截断到 [0,1] 后量化
func (img *FloatImage) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	q := func(v float32) uint8 {
		return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
	}
	for y := 0; y < img.Height; y++ {
		src := (img.Height - 1 - y) * img.Width * img.Channels
		for x := 0; x < img.Width; x++ {
			p := img.Pix[src+x*img.Channels:]
			c := color.NRGBA{R: q(p[0]), A: 255}
			if img.Channels >= 3 {
				c.G, c.B = q(p[1]), q(p[2])
			} else {
				c.G, c.B = c.R, c.R
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// scanNetpbmHeader 读取 n 个头部记号，跳过 # 注释，返回记号与数据起始偏移
func scanNetpbmHeader(content []byte, n int) ([]string, int, error) {
	var tokens []string
	i := 0
	for len(tokens) < n {
		for i < len(content) && (isSpace(content[i]) || content[i] == '#') {
			if content[i] == '#' {
				for i < len(content) && content[i] != '\n' {
					i++
				}
				continue
			}
			i++
		}
		start := i
		for i < len(content) && !isSpace(content[i]) && content[i] != '#' {
			i++
		}
		if start == i {
			return nil, 0, fmt.Errorf("%w: header truncated after %d tokens", ErrMalformed, len(tokens))
		}
		tokens = append(tokens, string(content[start:i]))
	}
	if i >= len(content) || !isSpace(content[i]) {
		return tokens, i, nil
	}
	return tokens, i + 1, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func parseDims(w, h string) (int, int, error) {
	dx, err1 := strconv.Atoi(w)
	dy, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil || dx <= 0 || dy <= 0 {
		return 0, 0, fmt.Errorf("%w: bad image size %s x %s", ErrMalformed, w, h)
	}
	return dx, dy, nil
}

func ReadPpm(path string) (*RGBImage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := DecodePpm(content)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return img, nil
}

// DecodePpm 解析 P3/P6，结果行序自下而上
func DecodePpm(content []byte) (*RGBImage, error) {
	tokens, off, err := scanNetpbmHeader(content, 4)
	if err != nil {
		return nil, err
	}
	magic := tokens[0]
	if magic != PPM_ASCII && magic != PPM_BINARY {
		return nil, fmt.Errorf("%w: ppm magic %q", ErrUnsupported, magic)
	}
	w, h, err := parseDims(tokens[1], tokens[2])
	if err != nil {
		return nil, err
	}
	maxVal, err := strconv.Atoi(tokens[3])
	if err != nil || maxVal <= 0 {
		return nil, fmt.Errorf("%w: bad maxval %q", ErrMalformed, tokens[3])
	}
	if maxVal > 255 {
		return nil, fmt.Errorf("%w: 16-bit ppm samples", ErrUnsupported)
	}
	img := NewRGBImage(w, h)
	rowSize := w * 3
	if magic == PPM_BINARY {
		body := content[off:]
		if len(body) < len(img.Pix) {
			return nil, fmt.Errorf("%w: ppm body has %d bytes, want %d", ErrMalformed, len(body), len(img.Pix))
		}
		body = body[len(body)-len(img.Pix):]
		for y := 0; y < h; y++ {
			copy(img.Pix[(h-1-y)*rowSize:(h-y)*rowSize], body[y*rowSize:])
		}
	} else {
		values := strings.Fields(string(content[off:]))
		if len(values) < len(img.Pix) {
			return nil, fmt.Errorf("%w: ppm has %d samples, want %d", ErrMalformed, len(values), len(img.Pix))
		}
		for i := range img.Pix {
			v, err := strconv.Atoi(values[i])
			if err != nil || v < 0 || v > maxVal {
				return nil, fmt.Errorf("%w: bad sample %q", ErrMalformed, values[i])
			}
			y, rest := i/rowSize, i%rowSize
			img.Pix[(h-1-y)*rowSize+rest] = uint8(v)
		}
	}
	logger.Printf("ppm %s: %dx%d", magic, w, h)
	return img, nil
}

// WritePpm 写出 maxval 为 255 的 P6 或 P3 文件
func WritePpm(path string, img *RGBImage, storeBinary bool, comment string) error {
	if len(img.Pix) != img.Width*img.Height*3 {
		return fmt.Errorf("%w: %d bytes for %dx%d rgb image", ErrMalformed, len(img.Pix), img.Width, img.Height)
	}
	fw, err := createFile(path)
	if err != nil {
		return err
	}
	err = EncodePpm(fw, img, storeBinary, comment)
	if cerr := fw.Close(); err == nil {
		err = cerr
	}
	return err
}

func EncodePpm(wt io.Writer, img *RGBImage, storeBinary bool, comment string) error {
	w := bufio.NewWriter(wt)
	magic := PPM_ASCII
	if storeBinary {
		magic = PPM_BINARY
	}
	fmt.Fprintf(w, "%s\n", magic)
	if comment != "" {
		fmt.Fprintf(w, "# %s\n", strings.ReplaceAll(comment, "\n", " "))
	}
	fmt.Fprintf(w, "%d %d %d\n", img.Width, img.Height, 255)
	rowSize := img.Width * 3
	for y := img.Height - 1; y >= 0; y-- {
		row := img.Pix[y*rowSize : (y+1)*rowSize]
		if storeBinary {
			if _, err := w.Write(row); err != nil {
				return err
			}
			continue
		}
		for i, v := range row {
			if i > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(strconv.Itoa(int(v)))
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadPfm 读取 PF/Pf，返回图像与头部 scale
func ReadPfm(path string) (*FloatImage, float32, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	img, scale, err := DecodePfm(content)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return img, scale, nil
}

// DecodePfm scale 为负表示小端，读取后做水平镜像校正
func DecodePfm(content []byte) (*FloatImage, float32, error) {
	tokens, off, err := scanNetpbmHeader(content, 4)
	if err != nil {
		return nil, 0, err
	}
	img := &FloatImage{}
	switch tokens[0] {
	case PFM_RGB:
		img.Channels = 3
	case PFM_GRAY:
		img.Channels = 1
	default:
		return nil, 0, fmt.Errorf("%w: pfm magic %q", ErrUnsupported, tokens[0])
	}
	if img.Width, img.Height, err = parseDims(tokens[1], tokens[2]); err != nil {
		return nil, 0, err
	}
	scale, err := strconv.ParseFloat(tokens[3], 32)
	if err != nil || scale == 0 {
		return nil, 0, fmt.Errorf("%w: bad pfm scale %q", ErrMalformed, tokens[3])
	}
	var order binary.ByteOrder = binary.LittleEndian
	if scale > 0 {
		order = binary.BigEndian
	}

	n := img.Width * img.Height * img.Channels
	body := content[off:]
	if len(body) < n*4 {
		return nil, 0, fmt.Errorf("%w: pfm body has %d bytes, want %d", ErrMalformed, len(body), n*4)
	}
	body = body[len(body)-n*4:]
	img.Pix = make([]float32, n)
	for i := range img.Pix {
		img.Pix[i] = math.Float32frombits(order.Uint32(body[i*4:]))
	}
	img.mirrorX()
	logger.Printf("pfm %s: %dx%d scale %g", tokens[0], img.Width, img.Height, scale)
	return img, float32(scale), nil
}

func (img *FloatImage) mirrorX() {
	c := img.Channels
	for y := 0; y < img.Height; y++ {
		row := y * img.Width
		for x := 0; x < img.Width/2; x++ {
			a, b := (row+x)*c, (row+img.Width-1-x)*c
			for k := 0; k < c; k++ {
				img.Pix[a+k], img.Pix[b+k] = img.Pix[b+k], img.Pix[a+k]
			}
		}
	}
}

// WritePfm 以小端写出，数值乘以 |scale|，单通道写 Pf，否则写 PF 的前三个通道
func WritePfm(path string, img *FloatImage, scale float32) error {
	if img.Channels != 1 && img.Channels < 3 {
		return fmt.Errorf("%w: pfm with %d channels", ErrUnsupported, img.Channels)
	}
	if len(img.Pix) != img.Width*img.Height*img.Channels {
		return fmt.Errorf("%w: %d samples for %dx%dx%d image", ErrMalformed, len(img.Pix), img.Width, img.Height, img.Channels)
	}
	fw, err := createFile(path)
	if err != nil {
		return err
	}
	err = EncodePfm(fw, img, scale)
	if cerr := fw.Close(); err == nil {
		err = cerr
	}
	return err
}

func EncodePfm(w io.Writer, img *FloatImage, scale float32) error {
	magic, dst := PFM_RGB, 3
	if img.Channels == 1 {
		magic, dst = PFM_GRAY, 1
	}
	if _, err := fmt.Fprintf(w, "%s\n%d %d\n-1.0\n", magic, img.Width, img.Height); err != nil {
		return err
	}
	s := float32(math.Abs(float64(scale)))
	buf := make([]float32, dst)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := (img.Width - 1 - x) + y*img.Width
			for k := range buf {
				buf[k] = img.Pix[i*img.Channels+k] * s
			}
			if err := writeLittleByte(w, buf); err != nil {
				return err
			}
		}
	}
	return nil
}
