package element

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name       string          // Full descriptive name (e.g., "LGL Quad Order 3")
	ShortName  string          // Abbreviated name (e.g., "Quad3")
	Type       ElementGeometry // Element shape
	Order      int             // Polynomial order
	NNodes     int             // Nodes per direction (Order+1)
	Np         int             // Total number of nodes in the element
	NFp        int             // Number of nodes per face
	NFaces     int             // Number of faces in each element
	Dimensions Dimensionality  // Spatial dimension (1D, 2D, or 3D)
}

// ReferenceGeometry defines the layout of nodes in reference space [-1,1]^d
type ReferenceGeometry struct {
	// Node coordinates in reference space, node index i + n*j + n*n*k.
	// For 3D all three are used; for 2D only R,S; for 1D only R
	R, S, T []float64

	// FacePoints[f] lists the volume node indices on face f = 2*axis+side,
	// tangential axes in ascending order with the lowest running fastest
	FacePoints [][]int
}

// NodalModalMatrices contains the one-dimensional nodal/modal transforms
type NodalModalMatrices struct {
	V    *mat.Dense // Vandermonde matrix: modal to nodal [n × n]
	Vinv *mat.Dense // Inverse Vandermonde: nodal to modal [n × n]
	M    *mat.Dense // Mass matrix in nodal space [n × n]
	Minv *mat.Dense // Inverse mass matrix [n × n]
}

// ReferenceOperators contains one-dimensional operators; volume operators
// are the tensor products along each axis
type ReferenceOperators struct {
	Dr *mat.Dense // Derivative with respect to r [n × n]
}

// ReferenceElement defines element properties and operators in reference space
type ReferenceElement interface {
	GetProperties() ElementProperties
	GetReferenceGeometry() ReferenceGeometry
	GetNodalModal() NodalModalMatrices
	GetReferenceOperators() ReferenceOperators
}

// LGLElement is a tensor-product Legendre-Gauss-Lobatto element
type LGLElement struct {
	Nodes   []float64 // 1D LGL nodes on [-1,1], ascending
	Weights []float64 // 1D LGL quadrature weights

	props ElementProperties
	geom  ReferenceGeometry
	nm    NodalModalMatrices
	ops   ReferenceOperators
}

var _ ReferenceElement = (*LGLElement)(nil)

// NewLGLElement builds the reference element of polynomial order N
func NewLGLElement(dims Dimensionality, N int) (*LGLElement, error) {
	if dims < D1 || dims > D3 {
		return nil, fmt.Errorf("invalid dimensionality %d", dims)
	}
	if N < 1 {
		return nil, fmt.Errorf("polynomial order %d must be at least 1", N)
	}
	nodes, err := JacobiGL(0, 0, N)
	if err != nil {
		return nil, err
	}
	n := N + 1
	d := int(dims)

	V := Vandermonde1D(N, nodes)
	var Vinv mat.Dense
	if err := Vinv.Inverse(V); err != nil {
		return nil, fmt.Errorf("vandermonde inverse for N=%d: %w", N, err)
	}
	var M, Minv, Dr mat.Dense
	M.Mul(Vinv.T(), &Vinv)
	Minv.Mul(V, V.T())
	Dr.Mul(GradVandermonde1D(N, nodes), &Vinv)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = mat.Sum(M.RowView(i))
	}

	geom := ReferenceGeometry{FacePoints: facePoints(d, n)}
	np := ipow(n, d)
	coords := [3][]float64{}
	for axis := 0; axis < d; axis++ {
		coords[axis] = make([]float64, np)
	}
	for node := 0; node < np; node++ {
		rem := node
		for axis := 0; axis < d; axis++ {
			coords[axis][node] = nodes[rem%n]
			rem /= n
		}
	}
	geom.R, geom.S, geom.T = coords[0], coords[1], coords[2]

	typ := GeometryFor(dims)
	return &LGLElement{
		Nodes:   nodes,
		Weights: weights,
		props: ElementProperties{
			Name:       fmt.Sprintf("LGL %s Order %d", typ, N),
			ShortName:  fmt.Sprintf("%s%d", typ, N),
			Type:       typ,
			Order:      N,
			NNodes:     n,
			Np:         np,
			NFp:        ipow(n, d-1),
			NFaces:     2 * d,
			Dimensions: dims,
		},
		geom: geom,
		nm:   NodalModalMatrices{V: V, Vinv: &Vinv, M: &M, Minv: &Minv},
		ops:  ReferenceOperators{Dr: &Dr},
	}, nil
}

func (el *LGLElement) GetProperties() ElementProperties        { return el.props }
func (el *LGLElement) GetReferenceGeometry() ReferenceGeometry { return el.geom }
func (el *LGLElement) GetNodalModal() NodalModalMatrices       { return el.nm }
func (el *LGLElement) GetReferenceOperators() ReferenceOperators {
	return el.ops
}

// Interpolation returns the matrix mapping nodal values on the LGL nodes to
// values at the points x: Vandermonde(x) * Vinv
func (el *LGLElement) Interpolation(x []float64) *mat.Dense {
	var out mat.Dense
	out.Mul(Vandermonde1D(el.props.Order, x), el.nm.Vinv)
	return &out
}

func facePoints(d, n int) [][]int {
	np := ipow(n, d)
	faces := make([][]int, 2*d)
	for axis := 0; axis < d; axis++ {
		stride := ipow(n, axis)
		for side := 0; side < 2; side++ {
			fixed := 0
			if side == 1 {
				fixed = n - 1
			}
			pts := make([]int, 0, np/n)
			// Ascending node index visits the tangential axes lowest-fastest
			for node := 0; node < np; node++ {
				if (node/stride)%n == fixed {
					pts = append(pts, node)
				}
			}
			faces[2*axis+side] = pts
		}
	}
	return faces
}
