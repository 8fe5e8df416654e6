package fileloader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/flywave/go3d/vec3"
)

// OffModel OFF 三角网格，FaceColors 仅在文件给出面颜色时存在
type OffModel struct {
	TriMesh
	FaceColors [][4]float32
}

func LoadOff(path string) (*OffModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeOff(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// DecodeOff 解析 OFF 文本，# 之后为注释
func DecodeOff(r io.Reader) (*OffModel, error) {
	var lines [][]string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			lines = append(lines, fields)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty off file", ErrMalformed)
	}

	header := lines[0]
	lines = lines[1:]
	if header[0] == "OFF" {
		header = header[1:]
		if len(header) == 0 {
			if len(lines) == 0 {
				return nil, fmt.Errorf("%w: missing off counts", ErrMalformed)
			}
			header = lines[0]
			lines = lines[1:]
		}
	}
	if len(header) != 3 {
		return nil, fmt.Errorf("%w: bad off counts %v", ErrMalformed, header)
	}
	var counts [3]int
	for i, tok := range header {
		v, err := strconv.Atoi(tok)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: bad off count %q", ErrMalformed, tok)
		}
		counts[i] = v
	}
	numVerts, numFaces := counts[0], counts[1]
	if numVerts > len(lines) || numFaces > len(lines)-numVerts {
		return nil, fmt.Errorf("%w: want %d vertex and %d face lines, got %d lines",
			ErrMalformed, numVerts, numFaces, len(lines))
	}

	m := &OffModel{}
	m.Vertices = make([]vec3.T, numVerts)
	for i := 0; i < numVerts; i++ {
		v, err := parseFloats(lines[i], 3)
		if err != nil || len(lines[i]) != 3 {
			return nil, fmt.Errorf("%w: vertex %d: bad line %v", ErrMalformed, i, lines[i])
		}
		m.Vertices[i] = vec3.T{v[0], v[1], v[2]}
	}

	m.Indices = make([]uint32, 0, numFaces*3)
	for i, fields := range lines[numVerts : numVerts+numFaces] {
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: face %d: bad vertex count %q", ErrMalformed, i, fields[0])
		}
		if n != 3 {
			return nil, fmt.Errorf("%w: face %d has %d vertices, only triangles are supported", ErrUnsupported, i, n)
		}
		if len(fields) < 4 {
			return nil, fmt.Errorf("%w: face %d: missing indices", ErrMalformed, i)
		}
		for _, tok := range fields[1:4] {
			idx, err := strconv.ParseUint(tok, 10, 32)
			if err != nil || int(idx) >= numVerts {
				return nil, fmt.Errorf("%w: face %d: bad index %q", ErrMalformed, i, tok)
			}
			m.Indices = append(m.Indices, uint32(idx))
		}
		if extra := fields[4:]; len(extra) > 0 {
			c, err := parseFaceColor(extra)
			if err != nil {
				return nil, fmt.Errorf("%w: face %d: %v", ErrMalformed, i, err)
			}
			m.FaceColors = append(m.FaceColors, c)
		}
	}
	if len(m.FaceColors) != 0 && len(m.FaceColors) != numFaces {
		return nil, fmt.Errorf("%w: %d of %d faces carry colors", ErrMalformed, len(m.FaceColors), numFaces)
	}
	return m, nil
}

// parseFaceColor 整数按 0..255 归一化，浮点数按原值，缺省 alpha 为 1
func parseFaceColor(tokens []string) ([4]float32, error) {
	c := [4]float32{0, 0, 0, 1}
	if len(tokens) != 3 && len(tokens) != 4 {
		return c, fmt.Errorf("want 3 or 4 color components, got %d", len(tokens))
	}
	for i, tok := range tokens {
		if iv, err := strconv.Atoi(tok); err == nil {
			if iv < 0 || iv > 255 {
				return c, fmt.Errorf("color component %d out of range", iv)
			}
			c[i] = float32(iv) / 255
			continue
		}
		fv, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return c, fmt.Errorf("bad color component %q", tok)
		}
		c[i] = float32(fv)
	}
	return c, nil
}
