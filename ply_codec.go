package fileloader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Load 从文件读取二进制小端 PLY，失败时模型保持不变
func (m *PlyModel) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := m.Decode(f); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Decode 解析头部与二进制数据
func (m *PlyModel) Decode(r io.Reader) error {
	br := bufio.NewReader(r)
	lines, headerSize, err := readHeaderLines(br)
	if err != nil {
		return err
	}
	h, err := parseHeader(lines)
	if err != nil {
		return err
	}
	for _, b := range h.Blocks {
		logger.Printf("ply element %s: %d elements, %d properties", b.Name, b.Block.Count, len(b.Block.Properties))
	}
	if err := decodeBody(br, h.Blocks); err != nil {
		return err
	}
	m.Format = h.Format
	m.Version = h.Version
	m.Blocks = h.Blocks
	m.HeaderSize = headerSize
	m.sphere.reset()
	return nil
}

// maxPrealloc 限制按头部声明数量预分配的字节数，其余随读取增长
const maxPrealloc = 1 << 20

func decodeBody(r io.Reader, blocks []*ElementBlockHeader) error {
	var countBuf, valBuf [24]byte
	for _, b := range blocks {
		props := b.Block.Properties
		for _, p := range props {
			per := p.Type.Size()
			if p.IsList {
				per *= 3
			}
			p.Data = make([]byte, 0, min(b.Block.Count, maxPrealloc/per)*per)
		}
		for i := 0; i < b.Block.Count; i++ {
			for _, p := range props {
				w := p.Type.Size()
				n := 1
				if p.IsList {
					cw := p.CountType.Size()
					if _, err := io.ReadFull(r, countBuf[:cw]); err != nil {
						return bodyError(b.Name, i, p.Name, err)
					}
					c := decodeValue(p.CountType, countBuf[:cw])
					if c != 3 {
						return fmt.Errorf("%w: %s %d property %s: list length %v, only triangles are supported",
							ErrMalformed, b.Name, i, p.Name, c)
					}
					n = 3
					p.ListLen = n
				}
				if _, err := io.ReadFull(r, valBuf[:n*w]); err != nil {
					return bodyError(b.Name, i, p.Name, err)
				}
				p.Data = append(p.Data, valBuf[:n*w]...)
			}
		}
	}
	return nil
}

func bodyError(block string, i int, prop string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s %d property %s: body truncated", ErrMalformed, block, i, prop)
	}
	return fmt.Errorf("read %s %d property %s failed: %w", block, i, prop, err)
}

// Save 写出二进制小端 PLY，comment 非空时写入注释行
func (m *PlyModel) Save(path string, comment string) error {
	if err := m.validate(); err != nil {
		return err
	}
	fw, err := createFile(path)
	if err != nil {
		return err
	}
	_, err = m.Encode(fw, comment)
	if cerr := fw.Close(); err == nil {
		err = cerr
	}
	return err
}

// Encode 写出头部和数据，返回写入的总字节数
func (m *PlyModel) Encode(w io.Writer, comment string) (int64, error) {
	if err := m.validate(); err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	headerSize, err := writeHeader(cw, m.Blocks, comment)
	if err != nil {
		return cw.n, fmt.Errorf("write ply header failed: %w", err)
	}
	if err := encodeBody(cw, m.Blocks); err != nil {
		return cw.n, err
	}
	m.HeaderSize = headerSize
	return cw.n, nil
}

func encodeBody(w io.Writer, blocks []*ElementBlockHeader) error {
	var countBuf [8]byte
	for _, b := range blocks {
		for i := 0; i < b.Block.Count; i++ {
			for _, p := range b.Block.Properties {
				width := p.Type.Size()
				if !p.IsList {
					if _, err := w.Write(p.Data[i*width : (i+1)*width]); err != nil {
						return fmt.Errorf("write %s %d property %s failed: %w", b.Name, i, p.Name, err)
					}
					continue
				}
				cw := p.CountType.Size()
				putUintN(countBuf[:cw], cw, uint64(p.ListLen))
				if _, err := w.Write(countBuf[:cw]); err != nil {
					return fmt.Errorf("write %s %d list count failed: %w", b.Name, i, err)
				}
				span := p.ListLen * width
				if _, err := w.Write(p.Data[i*span : (i+1)*span]); err != nil {
					return fmt.Errorf("write %s %d property %s failed: %w", b.Name, i, p.Name, err)
				}
			}
		}
	}
	return nil
}

// validate 检查各属性数据长度与声明一致
func (m *PlyModel) validate() error {
	for _, b := range m.Blocks {
		if b.Block.Count < 0 {
			return fmt.Errorf("%w: element %s has negative count", ErrMalformed, b.Name)
		}
		for _, p := range b.Block.Properties {
			if !p.Type.Valid() {
				return fmt.Errorf("%w: property %s.%s has unknown type", ErrMalformed, b.Name, p.Name)
			}
			per := p.Type.Size()
			if p.IsList {
				if !p.CountType.IsInteger() {
					return fmt.Errorf("%w: list %s.%s has bad count type", ErrMalformed, b.Name, p.Name)
				}
				if p.ListLen != 3 {
					return fmt.Errorf("%w: list %s.%s length %d, only triangles are supported",
						ErrMalformed, b.Name, p.Name, p.ListLen)
				}
				per *= p.ListLen
			}
			if len(p.Data) != b.Block.Count*per {
				return fmt.Errorf("%w: property %s.%s holds %d bytes, want %d",
					ErrMalformed, b.Name, p.Name, len(p.Data), b.Block.Count*per)
			}
		}
	}
	return nil
}
