package element

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MortarOperators transfer face data between a large face and the halves a
// 2:1 refined neighbor presents to it. Forward operators interpolate the
// large-face polynomial onto the nodes of a half face; reverse operators are
// the L2 projection of half-face data back onto the large face.
type MortarOperators struct {
	N            int
	ForwardLower *mat.Dense
	ForwardUpper *mat.Dense
	ReverseLower *mat.Dense
	ReverseUpper *mat.Dense
}

// NewMortarOperators builds the operators for the element's polynomial order
func NewMortarOperators(el *LGLElement) (*MortarOperators, error) {
	var (
		N     = el.props.Order
		n     = el.props.NNodes
		lower = make([]float64, n)
		upper = make([]float64, n)
	)
	for i, x := range el.Nodes {
		lower[i] = (x - 1) / 2
		upper[i] = (x + 1) / 2
	}

	xg, wg, err := JacobiGQ(0, 0, N)
	if err != nil {
		return nil, fmt.Errorf("mortar quadrature: %w", err)
	}
	// Fine nodal data evaluated at the fine-element Gauss points
	ig := el.Interpolation(xg)
	reverse := func(half func(float64) float64) *mat.Dense {
		mapped := make([]float64, len(xg))
		for q, x := range xg {
			mapped[q] = half(x)
		}
		// c_m = 1/2 sum_q w_q P_m(eta_q) f(xi_q), coarse nodal = V c
		pg := Vandermonde1D(N, mapped)
		wi := mat.NewDense(len(xg), n, nil)
		for q := range xg {
			for j := 0; j < n; j++ {
				wi.Set(q, j, 0.5*wg[q]*ig.At(q, j))
			}
		}
		var coef, out mat.Dense
		coef.Mul(pg.T(), wi)
		out.Mul(el.nm.V, &coef)
		return &out
	}

	return &MortarOperators{
		N:            N,
		ForwardLower: el.Interpolation(lower),
		ForwardUpper: el.Interpolation(upper),
		ReverseLower: reverse(func(x float64) float64 { return (x - 1) / 2 }),
		ReverseUpper: reverse(func(x float64) float64 { return (x + 1) / 2 }),
	}, nil
}

// Prolong interpolates large-face values onto small face position k. For a
// face of faceDims tangential axes, bit b of k selects the upper half along
// tangential axis b. A zero-dimensional face is copied.
func (mo *MortarOperators) Prolong(k, faceDims int, large, out []float64) {
	ops := make([]*mat.Dense, faceDims)
	for b := range ops {
		if k&(1<<b) != 0 {
			ops[b] = mo.ForwardUpper
		} else {
			ops[b] = mo.ForwardLower
		}
	}
	applyTensor(ops, mo.N+1, large, out)
}

// Restrict accumulates the L2 projection of the small-face data onto the
// large face. small[k] follows the Prolong position convention.
func (mo *MortarOperators) Restrict(faceDims int, small [][]float64, out []float64) {
	for i := range out {
		out[i] = 0
	}
	tmp := make([]float64, len(out))
	ops := make([]*mat.Dense, faceDims)
	for k, data := range small {
		for b := range ops {
			if k&(1<<b) != 0 {
				ops[b] = mo.ReverseUpper
			} else {
				ops[b] = mo.ReverseLower
			}
		}
		applyTensor(ops, mo.N+1, data, tmp)
		for i := range out {
			out[i] += tmp[i]
		}
	}
}

// applyTensor computes out = (ops[d-1] ⊗ ... ⊗ ops[0]) in for data laid out
// with the first axis fastest
func applyTensor(ops []*mat.Dense, n int, in, out []float64) {
	switch len(ops) {
	case 0:
		copy(out, in)
	case 1:
		for i := 0; i < n; i++ {
			var s float64
			for p := 0; p < n; p++ {
				s += ops[0].At(i, p) * in[p]
			}
			out[i] = s
		}
	case 2:
		tmp := make([]float64, n*n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				var s float64
				for p := 0; p < n; p++ {
					s += ops[0].At(i, p) * in[p+n*j]
				}
				tmp[i+n*j] = s
			}
		}
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				var s float64
				for q := 0; q < n; q++ {
					s += ops[1].At(j, q) * tmp[i+n*q]
				}
				out[i+n*j] = s
			}
		}
	default:
		panic(fmt.Sprintf("mortar: unsupported face dimension %d", len(ops)))
	}
}
