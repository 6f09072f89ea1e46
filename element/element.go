package element

// Dimensionality represents the spatial dimension of an element
type Dimensionality uint8

const (
	D1 Dimensionality = iota + 1 // Lines
	D2                           // Quadrilaterals
	D3                           // Hexahedra
)

// ElementGeometry identifies the tensor-product shape for a dimension
type ElementGeometry uint8

const (
	Line ElementGeometry = iota
	Quad
	Hex
)

func (g ElementGeometry) String() string {
	switch g {
	case Line:
		return "Line"
	case Quad:
		return "Quad"
	case Hex:
		return "Hex"
	default:
		return "Unknown"
	}
}

// GeometryFor returns the tree cell shape for a dimension
func GeometryFor(d Dimensionality) ElementGeometry {
	switch d {
	case D2:
		return Quad
	case D3:
		return Hex
	default:
		return Line
	}
}

// ipow returns n^d for small non-negative d
func ipow(n, d int) int {
	out := 1
	for i := 0; i < d; i++ {
		out *= n
	}
	return out
}
