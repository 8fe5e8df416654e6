package fileloader

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
)

func writeLittleByte(wt io.Writer, v interface{}) error {
	return binary.Write(wt, binary.LittleEndian, v)
}

func readLittleByte(rd io.Reader, v interface{}) error {
	return binary.Read(rd, binary.LittleEndian, v)
}

// putUintN 按宽度写入小端无符号整数
func putUintN(b []byte, width int, v uint64) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// decodeValue 将小端字节解释为 dt 类型的数值
func decodeValue(dt DataType, b []byte) float64 {
	switch dt {
	case Int8:
		return float64(int8(b[0]))
	case Uint8:
		return float64(b[0])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// encodeValue 将数值按 dt 类型写入小端字节，整数类型截断
func encodeValue(dt DataType, b []byte, v float64) {
	switch dt {
	case Int8:
		b[0] = byte(int8(v))
	case Uint8:
		b[0] = byte(v)
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case Uint16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case Uint32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

// fileWriter 创建目标文件（含父目录）并返回带缓冲的写入器
type fileWriter struct {
	f *os.File
	*bufio.Writer
}

func createFile(path string) (*fileWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &fileWriter{f: f, Writer: bufio.NewWriter(f)}, nil
}

// Close 刷新缓冲并关闭文件，返回第一个错误
func (w *fileWriter) Close() error {
	ferr := w.Flush()
	cerr := w.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// countingWriter 统计写入字节数
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
