package containers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/DGAdapt/element"
	"github.com/notargets/DGAdapt/tree"
)

// Elements holds one entry per local leaf cell, in global leaf order.
// Matrices are [Np x K] with column k belonging to element k; they are nil
// when K is zero.
type Elements struct {
	CellIDs         []int
	Levels          []int
	InverseJacobian []float64 // 2/length, identical along every axis
	Jacobian        []float64
	FaceScale       []float64 // Surface over volume Jacobian

	X [3]*mat.Dense // Node coordinates per axis, unused axes nil
	U []*mat.Dense  // Solution, one matrix per variable

	Np int

	index map[int]int
}

func newElements(k, np, ndims, nvars int) *Elements {
	el := &Elements{
		CellIDs:         make([]int, 0, k),
		Levels:          make([]int, 0, k),
		InverseJacobian: make([]float64, 0, k),
		Jacobian:        make([]float64, 0, k),
		FaceScale:       make([]float64, 0, k),
		U:               make([]*mat.Dense, nvars),
		Np:              np,
		index:           make(map[int]int, k),
	}
	if k == 0 {
		return el
	}
	for a := 0; a < ndims; a++ {
		el.X[a] = mat.NewDense(np, k, nil)
	}
	for v := range el.U {
		el.U[v] = mat.NewDense(np, k, nil)
	}
	return el
}

// Count returns the number of elements
func (el *Elements) Count() int { return len(el.CellIDs) }

// CellID returns the tree cell of element e
func (el *Elements) CellID(e int) int {
	checkIndex("element", e, el.Count())
	return el.CellIDs[e]
}

// Level returns the refinement level of element e
func (el *Elements) Level(e int) int {
	checkIndex("element", e, el.Count())
	return el.Levels[e]
}

// ElementOf returns the element of a local leaf cell
func (el *Elements) ElementOf(cellID int) (int, bool) {
	e, ok := el.index[cellID]
	return e, ok
}

// Node returns the coordinates of node i of element e
func (el *Elements) Node(e, i int) (x [3]float64) {
	checkIndex("element", e, el.Count())
	for a, m := range el.X {
		if m != nil {
			x[a] = m.At(i, e)
		}
	}
	return x
}

// Fill sets the solution at every node from a pointwise initial state
func (el *Elements) Fill(state func(x [3]float64, u []float64)) {
	u := make([]float64, len(el.U))
	for e := 0; e < el.Count(); e++ {
		for i := 0; i < el.Np; i++ {
			state(el.Node(e, i), u)
			for v, m := range el.U {
				m.Set(i, e, u[v])
			}
		}
	}
}

// Averages returns the nodal mean of variable v per element
func (el *Elements) Averages(v int) []float64 {
	out := make([]float64, el.Count())
	if el.Count() == 0 {
		return out
	}
	for e := range out {
		out[e] = mat.Sum(el.U[v].ColView(e)) / float64(el.Np)
	}
	return out
}

func (el *Elements) add(t *tree.Tree, cell int, ref [3][]float64) {
	e := len(el.CellIDs)
	el.index[cell] = e
	el.CellIDs = append(el.CellIDs, cell)
	el.Levels = append(el.Levels, t.Level(cell))
	length := t.Length(cell)
	gt, sg, err := element.CubeGeometry(element.Dimensionality(t.NDims), length)
	if err != nil {
		// tree configs are validated, so this is a corrupted cell
		panic(fmt.Sprintf("element for cell %d: %v", cell, err))
	}
	el.InverseJacobian = append(el.InverseJacobian, gt.Rx)
	el.Jacobian = append(el.Jacobian, gt.J)
	el.FaceScale = append(el.FaceScale, sg.FScale)
	center := t.Center(cell)
	for a, m := range el.X {
		if m == nil {
			continue
		}
		for i := 0; i < el.Np; i++ {
			m.Set(i, e, center[a]+0.5*length*ref[a][i])
		}
	}
}
