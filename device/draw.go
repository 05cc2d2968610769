package device

import "image/color"

// Primitive topology of a draw initiator, bits [5:0]
type PrimitiveType uint8

const (
	PRIM_NONE           PrimitiveType = 0x00
	PRIM_POINT_LIST     PrimitiveType = 0x01
	PRIM_LINE_LIST      PrimitiveType = 0x02
	PRIM_LINE_STRIP     PrimitiveType = 0x03
	PRIM_TRIANGLE_LIST  PrimitiveType = 0x04
	PRIM_TRIANGLE_FAN   PrimitiveType = 0x05
	PRIM_TRIANGLE_STRIP PrimitiveType = 0x06
	PRIM_RECTANGLE_LIST PrimitiveType = 0x08
	PRIM_QUAD_LIST      PrimitiveType = 0x0d
)

// A 2 dimensional vector
type Vec2 struct {
	X, Y int16
}

// A single vertex with a position and color
type Vertex struct {
	Position Vec2
	Color    color.RGBA
}

// Triangle list recorded for one frame
type DrawData struct {
	VtxBuffer []Vertex
}

func NewDrawData() *DrawData {
	return &DrawData{}
}

// Pushes vertices to the vertex buffer
func (dd *DrawData) PushVertices(vertices ...Vertex) {
	dd.VtxBuffer = append(dd.VtxBuffer, vertices...)
}

// Pushes the two triangles of a quad given as a triangle strip
func (dd *DrawData) PushQuad(a, b, c, d Vertex) {
	dd.PushVertices(a, b, c)
	dd.PushVertices(b, c, d)
}

// Converts `vertices` of topology `prim` into triangles. Returns false for
// topologies that don't produce triangles
func (dd *DrawData) PushPrimitive(prim PrimitiveType, vertices []Vertex) bool {
	switch prim {
	case PRIM_TRIANGLE_LIST:
		for i := 0; i+3 <= len(vertices); i += 3 {
			dd.PushVertices(vertices[i : i+3]...)
		}
	case PRIM_TRIANGLE_STRIP:
		for i := 0; i+3 <= len(vertices); i++ {
			dd.PushVertices(vertices[i : i+3]...)
		}
	case PRIM_TRIANGLE_FAN:
		for i := 1; i+2 <= len(vertices); i++ {
			dd.PushVertices(vertices[0], vertices[i], vertices[i+1])
		}
	case PRIM_RECTANGLE_LIST:
		// three corners given, the fourth is implied
		for i := 0; i+3 <= len(vertices); i += 3 {
			a, b, c := vertices[i], vertices[i+1], vertices[i+2]
			d := Vertex{
				Position: Vec2{X: b.Position.X + c.Position.X - a.Position.X, Y: b.Position.Y + c.Position.Y - a.Position.Y},
				Color:    c.Color,
			}
			dd.PushQuad(a, b, c, d)
		}
	case PRIM_QUAD_LIST:
		for i := 0; i+4 <= len(vertices); i += 4 {
			v := vertices[i : i+4]
			dd.PushVertices(v[0], v[1], v[2], v[0], v[2], v[3])
		}
	default:
		return false
	}
	return true
}

// Returns the number of vertices
func (dd *DrawData) Len() int {
	return len(dd.VtxBuffer)
}

// Parse position from an immediate vertex word: X in bits [15:0], Y in bits [31:16]
func Vec2FromWord(val uint32) Vec2 {
	x := int16(val)
	y := int16(val >> 16)
	return Vec2{X: x, Y: y}
}

// Parse color from an immediate vertex word (R in the low byte). Vertices
// are always opaque
func ColorFromWord(val uint32) color.RGBA {
	r := uint8(val)
	g := uint8(val >> 8)
	b := uint8(val >> 16)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func NewVertex(pos Vec2, clr color.RGBA) Vertex {
	return Vertex{Position: pos, Color: clr}
}
