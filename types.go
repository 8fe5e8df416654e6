package fileloader

const (
	PLY_MAGIC      string = "ply"
	PLY_FORMAT     string = "format"
	PLY_COMMENT    string = "comment"
	PLY_OBJ_INFO   string = "obj_info"
	PLY_ELEMENT    string = "element"
	PLY_PROPERTY   string = "property"
	PLY_LIST       string = "list"
	PLY_END_HEADER string = "end_header"
	PLY_VERSION    string = "1.0"
)

const (
	PLY_BINARY_LITTLE_ENDIAN = "binary_little_endian"
	PLY_BINARY_BIG_ENDIAN    = "binary_big_endian"
	PLY_ASCII                = "ascii"
)

// DataType PLY 标量类型
type DataType int

const (
	Int8 DataType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
	UnknownType
)

var dataTypeSizes = [...]int{
	Int8:    1,
	Uint8:   1,
	Int16:   2,
	Uint16:  2,
	Int32:   4,
	Uint32:  4,
	Float32: 4,
	Float64: 8,
}

// long form, used when writing headers
var dataTypeNames = [...]string{
	Int8:    "char",
	Uint8:   "uchar",
	Int16:   "short",
	Uint16:  "ushort",
	Int32:   "int",
	Uint32:  "uint",
	Float32: "float",
	Float64: "double",
}

var dataTypeTokens = map[string]DataType{
	"char":    Int8,
	"int8":    Int8,
	"uchar":   Uint8,
	"uint8":   Uint8,
	"short":   Int16,
	"int16":   Int16,
	"ushort":  Uint16,
	"uint16":  Uint16,
	"int":     Int32,
	"int32":   Int32,
	"uint":    Uint32,
	"uint32":  Uint32,
	"float":   Float32,
	"float32": Float32,
	"double":  Float64,
	"float64": Float64,
}

// ParseDataType 解析长格式或显式位宽格式的类型名
func ParseDataType(tok string) DataType {
	if dt, ok := dataTypeTokens[tok]; ok {
		return dt
	}
	return UnknownType
}

func (t DataType) Valid() bool {
	return t >= Int8 && t < UnknownType
}

// Size 返回类型字节宽度，未知类型返回0
func (t DataType) Size() int {
	if !t.Valid() {
		return 0
	}
	return dataTypeSizes[t]
}

func (t DataType) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return dataTypeNames[t]
}

func (t DataType) IsInteger() bool {
	return t.Valid() && t != Float32 && t != Float64
}

const (
	NumHistogramBuckets   = 1024
	HistogramDensityRange = 4096
	DensitiesPerBucket    = HistogramDensityRange / NumHistogramBuckets
)

// GradientMode 体数据梯度估计方式
type GradientMode int

const (
	CentralDifference GradientMode = iota
	Sobel
)

func (m GradientMode) String() string {
	switch m {
	case CentralDifference:
		return "central"
	case Sobel:
		return "sobel"
	default:
		return "unknown"
	}
}
