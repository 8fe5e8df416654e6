package fileloader

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cubePly 单位立方体的8个顶点和12个三角形
func cubePly() *PlyModel {
	corners := [8][3]float32{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	faces := [12][3]int32{
		{0, 2, 1}, {0, 3, 2}, {4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4}, {2, 3, 7}, {2, 7, 6},
		{1, 2, 6}, {1, 6, 5}, {0, 4, 7}, {0, 7, 3},
	}
	m := NewPlyModel()
	v := m.AddBlock("vertex", len(corners))
	for axis, name := range []string{"x", "y", "z"} {
		p := NewScalarProperty(name, Float32, len(corners))
		for i, c := range corners {
			p.SetValue(i, float64(c[axis]))
		}
		v.Block.Properties = append(v.Block.Properties, p)
	}
	f := m.AddBlock("face", len(faces))
	idx := NewListProperty("vertex_indices", Uint8, Int32, len(faces), 3)
	for i, face := range faces {
		for k, vi := range face {
			idx.SetValue(i*3+k, float64(vi))
		}
	}
	f.Block.Properties = append(f.Block.Properties, idx)
	return m
}

// allTypesPly 覆盖全部8种标量类型和两种列表属性
func allTypesPly() *PlyModel {
	m := NewPlyModel()
	const n = 5
	v := m.AddBlock("vertex", n)
	for dt := Int8; dt < UnknownType; dt++ {
		p := NewScalarProperty("p_"+dt.String(), dt, n)
		for i := 0; i < n; i++ {
			val := float64(i*7) - 9
			if !dt.IsInteger() {
				val += 0.25
			} else if dt == Uint8 || dt == Uint16 || dt == Uint32 {
				val = float64(i * 50)
			}
			p.SetValue(i, val)
		}
		v.Block.Properties = append(v.Block.Properties, p)
	}
	f := m.AddBlock("face", 3)
	idx := NewListProperty("vertex_indices", Uint8, Uint32, 3, 3)
	for i := 0; i < 9; i++ {
		idx.SetValue(i, float64(i%n))
	}
	f.Block.Properties = append(f.Block.Properties, idx)
	q := NewScalarProperty("quality", Float64, 3)
	q.SetValue(1, math.Pi)
	f.Block.Properties = append(f.Block.Properties, q)

	e := m.AddBlock("edge", 2)
	ends := NewListProperty("ends", Int16, Int16, 2, 3)
	for i := 0; i < 6; i++ {
		ends.SetValue(i, float64(-i))
	}
	e.Block.Properties = append(e.Block.Properties, ends)
	return m
}

func encodePly(t *testing.T, m *PlyModel, comment string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	n, err := m.Encode(buf, comment)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

// TestParseDataType 测试类型名解析
func TestParseDataType(t *testing.T) {
	tests := []struct {
		long     string
		explicit string
		want     DataType
		size     int
	}{
		{"char", "int8", Int8, 1},
		{"uchar", "uint8", Uint8, 1},
		{"short", "int16", Int16, 2},
		{"ushort", "uint16", Uint16, 2},
		{"int", "int32", Int32, 4},
		{"uint", "uint32", Uint32, 4},
		{"float", "float32", Float32, 4},
		{"double", "float64", Float64, 8},
	}
	for _, tt := range tests {
		t.Run(tt.long, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDataType(tt.long))
			assert.Equal(t, tt.want, ParseDataType(tt.explicit))
			assert.Equal(t, tt.size, tt.want.Size())
			assert.Equal(t, tt.long, tt.want.String())
		})
	}
	assert.Equal(t, UnknownType, ParseDataType("int64"))
	assert.Equal(t, 0, UnknownType.Size())
}

// TestPlyRoundTrip 测试PLY编码解码往返
func TestPlyRoundTrip(t *testing.T) {
	src := allTypesPly()
	data := encodePly(t, src, "round trip")

	got := &PlyModel{}
	require.NoError(t, got.Decode(bytes.NewReader(data)))
	assert.Equal(t, PLY_BINARY_LITTLE_ENDIAN, got.Format)
	assert.Equal(t, PLY_VERSION, got.Version)
	assert.Equal(t, src.HeaderSize, got.HeaderSize)
	require.Len(t, got.Blocks, len(src.Blocks))
	for i, b := range src.Blocks {
		assert.Equal(t, b.Name, got.Blocks[i].Name)
		assert.Equal(t, b.Block.Count, got.Blocks[i].Block.Count)
		assert.Equal(t, b.Block.Properties, got.Blocks[i].Block.Properties)
	}

	// 再次编码字节完全一致
	assert.Equal(t, data, encodePly(t, got, "round trip"))
}

// TestPlyHeaderLayout 测试写出的头部格式
func TestPlyHeaderLayout(t *testing.T) {
	m := cubePly()
	data := encodePly(t, m, "unit cube")
	want := "ply\n" +
		"format binary_little_endian 1.0\n" +
		"comment unit cube\n" +
		"element vertex 8\n" +
		"property float x\n" +
		"property float y\n" +
		"property float z\n" +
		"element face 12\n" +
		"property list uchar int vertex_indices\n" +
		"end_header\n"
	require.True(t, bytes.HasPrefix(data, []byte(want)))
	assert.Equal(t, int64(len(want)), m.HeaderSize)
	assert.Equal(t, len(want)+8*3*4+12*(1+3*4), len(data))
}

// TestPlyExplicitWidthTokens 测试显式位宽类型名
func TestPlyExplicitWidthTokens(t *testing.T) {
	header := "ply\r\n" +
		"format binary_little_endian 1.0\r\n" +
		"comment written by another exporter\r\n" +
		"element vertex 1\r\n" +
		"property float32 x\r\n" +
		"property uint16 w\r\n" +
		"element face 1\r\n" +
		"property list uint8 uint32 vertex_index\r\n" +
		"end_header\r\n"
	body := &bytes.Buffer{}
	binary.Write(body, binary.LittleEndian, float32(2.5))
	binary.Write(body, binary.LittleEndian, uint16(7))
	body.WriteByte(3)
	binary.Write(body, binary.LittleEndian, []uint32{0, 0, 0})

	m := &PlyModel{}
	require.NoError(t, m.Decode(strings.NewReader(header+body.String())))
	assert.Equal(t, int64(len(header)), m.HeaderSize)

	x, n := m.GetProperty("x")
	require.NotNil(t, x)
	assert.Equal(t, 1, n)
	assert.Equal(t, Float32, x.Type)
	xs, err := x.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{2.5}, xs)

	w, _ := m.GetProperty("w")
	require.NotNil(t, w)
	ws, err := w.Uint16s()
	require.NoError(t, err)
	assert.Equal(t, []uint16{7}, ws)

	idx, _ := m.GetPropertyIn("face", "vertex_index")
	require.NotNil(t, idx)
	assert.True(t, idx.IsList)
	assert.Equal(t, Uint8, idx.CountType)
	assert.Equal(t, 3, idx.ListLen)
}

// TestPlyQualifiedLookup 测试按块名查找属性
func TestPlyQualifiedLookup(t *testing.T) {
	m := NewPlyModel()
	a := m.AddBlock("vertex", 2)
	a.Block.Properties = append(a.Block.Properties, NewScalarProperty("id", Int32, 2))
	b := m.AddBlock("face", 4)
	b.Block.Properties = append(b.Block.Properties, NewScalarProperty("id", Uint8, 4))

	p, n := m.GetProperty("id")
	require.NotNil(t, p)
	assert.Equal(t, Int32, p.Type)
	assert.Equal(t, 2, n)

	p, n = m.GetPropertyIn("face", "id")
	require.NotNil(t, p)
	assert.Equal(t, Uint8, p.Type)
	assert.Equal(t, 4, n)

	p, n = m.GetPropertyIn("edge", "id")
	assert.Nil(t, p)
	assert.Equal(t, 0, n)
}

// TestPlyAddProperty 测试追加属性
func TestPlyAddProperty(t *testing.T) {
	m := NewPlyModel()
	m.AddBlock("vertex", 2)
	m.AddBlock("face", 1)
	m.AddBlock("vertex", 2)

	red := NewScalarProperty("red", Uint8, 2)
	red.SetValue(0, 200)
	assert.Equal(t, 2, m.AddProperty("vertex", *red))
	assert.Equal(t, 0, m.AddProperty("missing", *red))

	assert.Len(t, m.Blocks[0].Block.Properties, 1)
	assert.Empty(t, m.Blocks[1].Block.Properties)
	assert.Len(t, m.Blocks[2].Block.Properties, 1)

	// 每个块持有独立副本
	m.Blocks[0].Block.Properties[0].SetValue(1, 9)
	assert.Equal(t, 0.0, m.Blocks[2].Block.Properties[0].ValueAt(1))
	assert.Equal(t, 200.0, m.Blocks[2].Block.Properties[0].ValueAt(0))
}

// TestPlyListArity 测试列表长度必须为3
func TestPlyListArity(t *testing.T) {
	header := "ply\nformat binary_little_endian 1.0\nelement face 1\nproperty list uchar int vertex_indices\nend_header\n"
	body := []byte{4, 0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}

	m := cubePly()
	before := len(m.Blocks)
	err := m.Decode(bytes.NewReader(append([]byte(header), body...)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Len(t, m.Blocks, before)
}

// TestPlyUnsupportedFormats 测试不支持的格式
func TestPlyUnsupportedFormats(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"ascii", "format ascii 1.0"},
		{"big endian", "format binary_big_endian 1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "ply\n" + tt.format + "\nelement vertex 0\nproperty float x\nend_header\n"
			err := (&PlyModel{}).Decode(strings.NewReader(src))
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

// TestPlyMalformedHeaders 测试非法头部与数据
func TestPlyMalformedHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing magic", "format binary_little_endian 1.0\nend_header\n"},
		{"missing format", "ply\nelement vertex 1\nproperty float x\nend_header\n"},
		{"unknown format", "ply\nformat binary_middle_endian 1.0\nend_header\n"},
		{"bad version", "ply\nformat binary_little_endian one\nend_header\n"},
		{"unknown type", "ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty half x\nend_header\n"},
		{"float list count", "ply\nformat binary_little_endian 1.0\nelement face 1\nproperty list float int idx\nend_header\n"},
		{"property before element", "ply\nformat binary_little_endian 1.0\nproperty float x\nend_header\n"},
		{"negative count", "ply\nformat binary_little_endian 1.0\nelement vertex -1\nend_header\n"},
		{"unknown keyword", "ply\nformat binary_little_endian 1.0\nvertex 1\nend_header\n"},
		{"no end_header", "ply\nformat binary_little_endian 1.0\nelement vertex 1\n"},
		{"truncated body", "ply\nformat binary_little_endian 1.0\nelement vertex 2\nproperty float x\nend_header\n\x00\x00\x80\x3f"},
		{"count overflows size", "ply\nformat binary_little_endian 1.0\nelement vertex 4611686018427387904\nproperty double x\nend_header\n"},
		{"sum of blocks overflows", "ply\nformat binary_little_endian 1.0\nelement vertex 1152921504606846975\nproperty double x\nelement face 1152921504606846975\nproperty double y\nend_header\n"},
		{"huge list count, empty body", "ply\nformat binary_little_endian 1.0\nelement face 1000000000000000\nproperty list uchar double idx\nend_header\n"},
		{"huge count, short body", "ply\nformat binary_little_endian 1.0\nelement vertex 100000000000\nproperty float x\nend_header\n\x00\x00\x80\x3f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&PlyModel{}).Decode(strings.NewReader(tt.header))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

// TestPlyEncodeRejectsBadBuffers 测试写出前检查数据长度
func TestPlyEncodeRejectsBadBuffers(t *testing.T) {
	m := cubePly()
	p, _ := m.GetProperty("x")
	p.Data = p.Data[:len(p.Data)-1]
	_, err := m.Encode(&bytes.Buffer{}, "")
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestPlyEncodeListLength 测试写出时只接受三角形列表
func TestPlyEncodeListLength(t *testing.T) {
	for _, n := range []int{0, 2, 4} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			m := NewPlyModel()
			m.AddBlock("face", 1)
			m.AddProperty("face", *NewListProperty("vertex_indices", Uint8, Int32, 1, n))
			_, err := m.Encode(&bytes.Buffer{}, "")
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

// TestPlySaveLoad 测试PLY文件读写
func TestPlySaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cube.ply")
	src := cubePly()
	require.NoError(t, src.Save(path, "saved cube"))

	got := &PlyModel{}
	require.NoError(t, got.Load(path))
	assert.Equal(t, src.HeaderSize, got.HeaderSize)
	assert.Equal(t, src.Blocks, got.Blocks)

	err := (&PlyModel{}).Load(filepath.Join(t.TempDir(), "missing.ply"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
}

// TestPlyBoundingSphere 测试包围球
func TestPlyBoundingSphere(t *testing.T) {
	m := cubePly()
	s, err := m.BoundingSphere()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5}, s[:3], 1e-6)
	assert.InDelta(t, math.Sqrt(3)/2, s.Radius(), 1e-6)

	// 缓存在显式重置前保持不变
	x, _ := m.GetProperty("x")
	x.SetValue(1, 3)
	cached, err := m.BoundingSphere()
	require.NoError(t, err)
	assert.Equal(t, s, cached)

	m.ResetBoundingSphere()
	fresh, err := m.BoundingSphere()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, fresh[0], 1e-6)

	_, err = NewPlyModel().BoundingSphere()
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestPlyTypedAccessors 测试类型化访问
func TestPlyTypedAccessors(t *testing.T) {
	p := NewScalarProperty("v", Int16, 3)
	p.SetValue(0, -2)
	p.SetValue(2, 40)
	assert.Equal(t, []float64{-2, 0, 40}, p.AsFloat64s())

	_, err := p.Float32s()
	assert.Error(t, err)
	_, err = p.AsUint32s()
	assert.ErrorIs(t, err, ErrMalformed)

	p.SetValue(0, 5)
	idx, err := p.AsUint32s()
	require.NoError(t, err)
	assert.Equal(t, []uint32{5, 0, 40}, idx)

	f := NewScalarProperty("f", Float64, 1)
	_, err = f.AsUint32s()
	assert.Error(t, err)
}

// TestPlyToTriMesh 测试PLY转三角网格
func TestPlyToTriMesh(t *testing.T) {
	m := cubePly()
	red := NewScalarProperty("red", Uint8, 8)
	green := NewScalarProperty("green", Uint8, 8)
	blue := NewScalarProperty("blue", Uint8, 8)
	for i := 0; i < 8; i++ {
		red.SetValue(i, 255)
	}
	m.AddProperty("vertex", *red)
	m.AddProperty("vertex", *green)
	m.AddProperty("vertex", *blue)

	mesh, err := m.ToTriMesh()
	require.NoError(t, err)
	assert.Equal(t, 8, mesh.VertexCount())
	assert.Equal(t, 12, mesh.TriangleCount())
	assert.Empty(t, mesh.Normals)
	require.Len(t, mesh.Colors, 8)
	assert.Equal(t, [3]byte{255, 0, 0}, mesh.Colors[3])
	assert.InDelta(t, 6.0, mesh.Area(), 1e-6)
}
