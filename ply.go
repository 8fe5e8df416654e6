package fileloader

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PropertyDesc 元素属性描述及其打包数据
type PropertyDesc struct {
	Name      string
	Type      DataType
	IsList    bool
	CountType DataType
	// ListLen 列表属性每个元素的条目数，读取时固定为3
	ListLen int
	Data    []byte
}

// ElementBlock 一个元素块的元素个数与属性序列
type ElementBlock struct {
	Count      int
	Properties []*PropertyDesc
}

type ElementBlockHeader struct {
	Name  string
	Block ElementBlock
}

// PlyModel 二进制小端 PLY 文档
type PlyModel struct {
	Format  string
	Version string
	Blocks  []*ElementBlockHeader
	// HeaderSize 头部字节数，即二进制数据起始偏移
	HeaderSize int64

	sphere sphereCache
}

// NewPlyModel 创建空的二进制小端文档
func NewPlyModel() *PlyModel {
	return &PlyModel{Format: PLY_BINARY_LITTLE_ENDIAN, Version: PLY_VERSION}
}

// NewScalarProperty 创建标量属性并为 count 个元素分配零值数据
func NewScalarProperty(name string, dt DataType, count int) *PropertyDesc {
	return &PropertyDesc{
		Name: name,
		Type: dt,
		Data: make([]byte, count*dt.Size()),
	}
}

// NewListProperty 创建定长列表属性，每个元素 listLen 个条目
func NewListProperty(name string, countType, dt DataType, count, listLen int) *PropertyDesc {
	return &PropertyDesc{
		Name:      name,
		Type:      dt,
		IsList:    true,
		CountType: countType,
		ListLen:   listLen,
		Data:      make([]byte, count*listLen*dt.Size()),
	}
}

// AddBlock 追加元素块
func (m *PlyModel) AddBlock(name string, count int) *ElementBlockHeader {
	b := &ElementBlockHeader{Name: name, Block: ElementBlock{Count: count}}
	m.Blocks = append(m.Blocks, b)
	return b
}

// Block 返回第一个同名元素块
func (m *PlyModel) Block(name string) *ElementBlockHeader {
	for _, b := range m.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// GetProperty 在所有块中按声明顺序查找第一个同名属性，返回属性与所在块的元素个数
func (m *PlyModel) GetProperty(name string) (*PropertyDesc, int) {
	for _, b := range m.Blocks {
		for _, p := range b.Block.Properties {
			if p.Name == name {
				return p, b.Block.Count
			}
		}
	}
	return nil, 0
}

// GetPropertyIn 在指定块中查找属性
func (m *PlyModel) GetPropertyIn(block, name string) (*PropertyDesc, int) {
	for _, b := range m.Blocks {
		if b.Name != block {
			continue
		}
		for _, p := range b.Block.Properties {
			if p.Name == name {
				return p, b.Block.Count
			}
		}
	}
	return nil, 0
}

// AddProperty 向每个同名块追加属性副本，返回追加的块数
func (m *PlyModel) AddProperty(block string, desc PropertyDesc) int {
	n := 0
	for _, b := range m.Blocks {
		if b.Name != block {
			continue
		}
		c := desc
		c.Data = append([]byte(nil), desc.Data...)
		b.Block.Properties = append(b.Block.Properties, &c)
		n++
	}
	return n
}

// Len 返回数据中的值个数
func (p *PropertyDesc) Len() int {
	w := p.Type.Size()
	if w == 0 {
		return 0
	}
	return len(p.Data) / w
}

// ValueAt 返回第 i 个值
func (p *PropertyDesc) ValueAt(i int) float64 {
	w := p.Type.Size()
	return decodeValue(p.Type, p.Data[i*w:(i+1)*w])
}

// SetValue 设置第 i 个值
func (p *PropertyDesc) SetValue(i int, v float64) {
	w := p.Type.Size()
	encodeValue(p.Type, p.Data[i*w:(i+1)*w], v)
}

func (p *PropertyDesc) expect(dt DataType) error {
	if p.Type != dt {
		return fmt.Errorf("property %q is %s, not %s", p.Name, p.Type, dt)
	}
	return nil
}

func (p *PropertyDesc) Float32s() ([]float32, error) {
	if err := p.expect(Float32); err != nil {
		return nil, err
	}
	out := make([]float32, len(p.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[i*4:]))
	}
	return out, nil
}

func (p *PropertyDesc) Float64s() ([]float64, error) {
	if err := p.expect(Float64); err != nil {
		return nil, err
	}
	out := make([]float64, len(p.Data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(p.Data[i*8:]))
	}
	return out, nil
}

func (p *PropertyDesc) Uint8s() ([]uint8, error) {
	if err := p.expect(Uint8); err != nil {
		return nil, err
	}
	return append([]uint8(nil), p.Data...), nil
}

func (p *PropertyDesc) Uint16s() ([]uint16, error) {
	if err := p.expect(Uint16); err != nil {
		return nil, err
	}
	out := make([]uint16, len(p.Data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(p.Data[i*2:])
	}
	return out, nil
}

func (p *PropertyDesc) Int32s() ([]int32, error) {
	if err := p.expect(Int32); err != nil {
		return nil, err
	}
	out := make([]int32, len(p.Data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(p.Data[i*4:]))
	}
	return out, nil
}

func (p *PropertyDesc) Uint32s() ([]uint32, error) {
	if err := p.expect(Uint32); err != nil {
		return nil, err
	}
	out := make([]uint32, len(p.Data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(p.Data[i*4:])
	}
	return out, nil
}

// AsFloat64s 将任意类型数据转换为 float64
func (p *PropertyDesc) AsFloat64s() []float64 {
	out := make([]float64, p.Len())
	for i := range out {
		out[i] = p.ValueAt(i)
	}
	return out
}

// AsUint32s 将整数类型数据转换为索引，负值或浮点类型返回错误
func (p *PropertyDesc) AsUint32s() ([]uint32, error) {
	if !p.Type.IsInteger() {
		return nil, fmt.Errorf("property %q is %s, not an integer type", p.Name, p.Type)
	}
	out := make([]uint32, p.Len())
	for i := range out {
		v := p.ValueAt(i)
		if v < 0 {
			return nil, fmt.Errorf("%w: property %q value %d is negative", ErrMalformed, p.Name, int64(v))
		}
		out[i] = uint32(v)
	}
	return out, nil
}
