package fileloader

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// plyHeader 头部解析结果
type plyHeader struct {
	Format  string
	Version string
	Blocks  []*ElementBlockHeader
}

// readHeaderLines 读取到 end_header 行为止，返回各行文本与头部字节长度
func readHeaderLines(br *bufio.Reader) ([]string, int64, error) {
	var (
		lines []string
		size  int64
	)
	for {
		line, err := br.ReadString('\n')
		size += int64(len(line))
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, 0, fmt.Errorf("%w: header ends without %s", ErrMalformed, PLY_END_HEADER)
			}
			return nil, 0, err
		}
		line = strings.TrimRight(line, "\r\n")
		lines = append(lines, line)
		if strings.TrimSpace(line) == PLY_END_HEADER {
			return lines, size, nil
		}
		if err == io.EOF {
			return nil, 0, fmt.Errorf("%w: header ends without %s", ErrMalformed, PLY_END_HEADER)
		}
	}
}

// parseHeader 逐行分派关键字构建文档结构
func parseHeader(lines []string) (*plyHeader, error) {
	h := &plyHeader{}
	var cur *ElementBlockHeader
	seenMagic := false
	for n, raw := range lines {
		lineNo := n + 1
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		if !seenMagic {
			if len(fields) != 1 || fields[0] != PLY_MAGIC {
				return nil, fmt.Errorf("%w: line %d: missing %q magic", ErrMalformed, lineNo, PLY_MAGIC)
			}
			seenMagic = true
			continue
		}
		switch fields[0] {
		case PLY_COMMENT, PLY_OBJ_INFO:
		case PLY_FORMAT:
			if h.Format != "" {
				return nil, fmt.Errorf("%w: line %d: duplicate format", ErrMalformed, lineNo)
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: bad format line %q", ErrMalformed, lineNo, raw)
			}
			if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
				return nil, fmt.Errorf("%w: line %d: bad version %q", ErrMalformed, lineNo, fields[2])
			}
			switch fields[1] {
			case PLY_BINARY_LITTLE_ENDIAN:
			case PLY_ASCII, PLY_BINARY_BIG_ENDIAN:
				return nil, fmt.Errorf("%w: ply format %s", ErrUnsupported, fields[1])
			default:
				return nil, fmt.Errorf("%w: line %d: unknown format %q", ErrMalformed, lineNo, fields[1])
			}
			h.Format, h.Version = fields[1], fields[2]
		case PLY_ELEMENT:
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: bad element line %q", ErrMalformed, lineNo, raw)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: line %d: bad element count %q", ErrMalformed, lineNo, fields[2])
			}
			cur = &ElementBlockHeader{Name: fields[1], Block: ElementBlock{Count: count}}
			h.Blocks = append(h.Blocks, cur)
		case PLY_PROPERTY:
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: property outside element", ErrMalformed, lineNo)
			}
			p, err := parseProperty(fields)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			cur.Block.Properties = append(cur.Block.Properties, p)
		case PLY_END_HEADER:
			if len(fields) != 1 {
				return nil, fmt.Errorf("%w: line %d: bad %s line", ErrMalformed, lineNo, PLY_END_HEADER)
			}
			if h.Format == "" {
				return nil, fmt.Errorf("%w: missing format line", ErrMalformed)
			}
			if err := checkBlockSizes(h.Blocks); err != nil {
				return nil, err
			}
			return h, nil
		default:
			return nil, fmt.Errorf("%w: line %d: unknown keyword %q", ErrMalformed, lineNo, fields[0])
		}
	}
	return nil, fmt.Errorf("%w: header ends without %s", ErrMalformed, PLY_END_HEADER)
}

// checkBlockSizes 拒绝总字节数溢出 int 的元素声明
func checkBlockSizes(blocks []*ElementBlockHeader) error {
	total := 0
	for _, b := range blocks {
		per := 0
		for _, p := range b.Block.Properties {
			if p.IsList {
				per += p.CountType.Size() + 3*p.Type.Size()
			} else {
				per += p.Type.Size()
			}
		}
		if per == 0 {
			continue
		}
		if b.Block.Count > (math.MaxInt-total)/per {
			return fmt.Errorf("%w: element %s count %d exceeds addressable size", ErrMalformed, b.Name, b.Block.Count)
		}
		total += b.Block.Count * per
	}
	return nil
}

func parseProperty(fields []string) (*PropertyDesc, error) {
	if len(fields) == 5 && fields[1] == PLY_LIST {
		ct := ParseDataType(fields[2])
		if !ct.IsInteger() {
			return nil, fmt.Errorf("bad list count type %q", fields[2])
		}
		dt := ParseDataType(fields[3])
		if !dt.Valid() {
			return nil, fmt.Errorf("bad list element type %q", fields[3])
		}
		return &PropertyDesc{Name: fields[4], Type: dt, IsList: true, CountType: ct}, nil
	}
	if len(fields) != 3 {
		return nil, fmt.Errorf("bad property line %q", strings.Join(fields, " "))
	}
	dt := ParseDataType(fields[1])
	if !dt.Valid() {
		return nil, fmt.Errorf("bad property type %q", fields[1])
	}
	return &PropertyDesc{Name: fields[2], Type: dt}, nil
}

// writeHeader 以长格式类型名写出头部，返回写入字节数
func writeHeader(w io.Writer, blocks []*ElementBlockHeader, comment string) (int64, error) {
	var sb strings.Builder
	sb.WriteString(PLY_MAGIC + "\n")
	sb.WriteString(PLY_FORMAT + " " + PLY_BINARY_LITTLE_ENDIAN + " " + PLY_VERSION + "\n")
	if comment != "" {
		for _, c := range strings.Split(comment, "\n") {
			sb.WriteString(PLY_COMMENT + " " + strings.TrimRight(c, "\r") + "\n")
		}
	}
	for _, b := range blocks {
		fmt.Fprintf(&sb, "%s %s %d\n", PLY_ELEMENT, b.Name, b.Block.Count)
		for _, p := range b.Block.Properties {
			if p.IsList {
				fmt.Fprintf(&sb, "%s %s %s %s %s\n", PLY_PROPERTY, PLY_LIST, p.CountType, p.Type, p.Name)
			} else {
				fmt.Fprintf(&sb, "%s %s %s\n", PLY_PROPERTY, p.Type, p.Name)
			}
		}
	}
	sb.WriteString(PLY_END_HEADER + "\n")
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
