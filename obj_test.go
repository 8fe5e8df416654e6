package fileloader

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadObj = `# two triangles sharing an edge
mtllib quad.mtl
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl default
s off
f 1/1/1 2/2/1 3/3/1
f 1/1/1 3/3/1 4/4/1
`

// TestDecodeObj 测试OBJ解析与去重
func TestDecodeObj(t *testing.T) {
	m, err := DecodeObj(strings.NewReader(quadObj))
	require.NoError(t, err)
	assert.Len(t, m.VertexBuffer, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.IndexBuffer)
	assert.Equal(t, vec3.T{1, 1, 0}, m.VertexBuffer[2].Position)
	assert.Equal(t, vec3.T{0, 0, 1}, m.VertexBuffer[3].Normal)

	s := m.BoundingSphere()
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0}, s[:3], 1e-6)
	assert.InDelta(t, 0.70710678, s.Radius(), 1e-6)

	mesh := m.ToTriMesh()
	assert.Equal(t, 2, mesh.TriangleCount())
	assert.NoError(t, mesh.Validate())
}

// TestDecodeObjErrors 测试非法OBJ
func TestDecodeObjErrors(t *testing.T) {
	base := "v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvn 0 0 1\n"
	tests := []struct {
		name string
		face string
	}{
		{"quad face", "f 1/1/1 2/1/1 3/1/1 3/1/1\n"},
		{"missing texcoord", "f 1//1 2//1 3//1\n"},
		{"position only", "f 1 2 3\n"},
		{"zero index", "f 0/1/1 2/1/1 3/1/1\n"},
		{"negative index", "f -1/1/1 2/1/1 3/1/1\n"},
		{"out of range", "f 1/1/1 2/1/1 9/1/1\n"},
		{"bad vertex", "v 1 x 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeObj(strings.NewReader(base + tt.face))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

// TestLoadObjWithTexture 测试带纹理加载OBJ
func TestLoadObjWithTexture(t *testing.T) {
	dir := t.TempDir()
	geo := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(geo, []byte(quadObj), 0o644))

	tex := filepath.Join(dir, "quad.png")
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(tex)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	m, err := LoadObj(geo, tex)
	require.NoError(t, err)
	require.NotNil(t, m.Texture)
	assert.Equal(t, 2, m.Texture.Bounds().Dx())

	m, err = LoadObj(geo, "")
	require.NoError(t, err)
	assert.Nil(t, m.Texture)

	_, err = LoadObj(filepath.Join(dir, "missing.obj"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
