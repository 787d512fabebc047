package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedMesh is returned when mesh bytes do not describe whole triangles.
var ErrMalformedMesh = errors.New("malformed mesh")

// triangleBytes is the size of one triangle: 3 vertices of 3 float32 each.
const triangleBytes = 3 * 3 * 4

// MeshRoot is the parent of every mesh prim created by the bridge.
const MeshRoot = "/World"

// Vec3 is a single vertex position.
type Vec3 [3]float32

// Mesh is a triangle mesh in the layout of a USD Mesh prim.
type Mesh struct {
	Points            []Vec3
	FaceVertexCounts  []int32
	FaceVertexIndices []int32
}

// Triangles returns the number of faces.
func (m Mesh) Triangles() int {
	return len(m.FaceVertexCounts)
}

// DecodeTriangleSoup decodes little-endian float32 triples, three vertices per triangle,
// as sent by the Forma connector.
func DecodeTriangleSoup(data []byte) (Mesh, error) {
	if len(data) == 0 || len(data)%triangleBytes != 0 {
		return Mesh{}, fmt.Errorf("%w: %d bytes is not a whole number of triangles", ErrMalformedMesh, len(data))
	}
	points, err := decodePoints(data)
	if err != nil {
		return Mesh{}, err
	}
	return Triangulate(points), nil
}

// Triangulate builds an unindexed triangle mesh where every three points form one face.
func Triangulate(points []Vec3) Mesh {
	faces := len(points) / 3
	m := Mesh{
		Points:            points,
		FaceVertexCounts:  make([]int32, faces),
		FaceVertexIndices: make([]int32, faces*3),
	}
	for i := range m.FaceVertexCounts {
		m.FaceVertexCounts[i] = 3
	}
	for i := range m.FaceVertexIndices {
		m.FaceVertexIndices[i] = int32(i)
	}
	return m
}

// MeshPrimPath returns the prim path for an imported Forma element id.
// Characters that are not valid in a USD prim name become underscores.
func MeshPrimPath(id string) string {
	return MeshRoot + "/_" + sanitizePrimName(id)
}

func sanitizePrimName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func encodePoints(points []Vec3) []byte {
	buf := make([]byte, 0, len(points)*12)
	for _, p := range points {
		for _, c := range p {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
		}
	}
	return buf
}

func decodePoints(data []byte) ([]Vec3, error) {
	if len(data)%12 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of points", ErrMalformedMesh, len(data))
	}
	points := make([]Vec3, len(data)/12)
	for i := range points {
		for j := 0; j < 3; j++ {
			off := i*12 + j*4
			points[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		}
	}
	return points, nil
}

func encodeInts(v []int32) []byte {
	buf := make([]byte, 0, len(v)*4)
	for _, n := range v {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(n))
	}
	return buf
}

func decodeInts(data []byte) []int32 {
	out := make([]int32, len(data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
