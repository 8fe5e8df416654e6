package fileloader

import (
	"fmt"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// IndexTriple 面角的 (位置, 纹理坐标, 法线) 索引，0 起始
type IndexTriple [3]uint32

// VertexData 去重后的顶点记录
type VertexData struct {
	Position vec3.T
	Normal   vec3.T
	TexCoord vec2.T
}

// slotMap 为首次出现的键分配递增槽位
type slotMap[K comparable] struct {
	slots map[K]uint32
}

func newSlotMap[K comparable](hint int) *slotMap[K] {
	return &slotMap[K]{slots: make(map[K]uint32, hint)}
}

// slot 返回键的槽位，以及是否为新分配
func (s *slotMap[K]) slot(k K) (uint32, bool) {
	if i, ok := s.slots[k]; ok {
		return i, false
	}
	i := uint32(len(s.slots))
	s.slots[k] = i
	return i, true
}

// BuildIndexedVertices 将索引三元组去重为顶点缓冲与索引缓冲
func BuildIndexedVertices(positions, normals []vec3.T, texCoords []vec2.T, triples []IndexTriple) ([]VertexData, []uint32, error) {
	slots := newSlotMap[IndexTriple](len(triples))
	vertices := make([]VertexData, 0, len(triples))
	indices := make([]uint32, len(triples))
	for i, t := range triples {
		if int(t[0]) >= len(positions) || int(t[1]) >= len(texCoords) || int(t[2]) >= len(normals) {
			return nil, nil, fmt.Errorf("%w: corner %d index %v out of range (%d positions, %d texcoords, %d normals)",
				ErrMalformed, i, t, len(positions), len(texCoords), len(normals))
		}
		slot, fresh := slots.slot(t)
		if fresh {
			vertices = append(vertices, VertexData{
				Position: positions[t[0]],
				TexCoord: texCoords[t[1]],
				Normal:   normals[t[2]],
			})
		}
		indices[i] = slot
	}
	logger.Printf("unique entries: %d, brute force entries: %d", len(vertices), len(triples))
	return vertices, indices, nil
}
