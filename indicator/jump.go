package indicator

import (
	"math"

	"github.com/notargets/DGAdapt/containers"
	"github.com/notargets/DGAdapt/tree"
)

// Jumps returns, per element, the largest trace jump of variable v across
// any of its coupling surfaces. It reads the traces already prolonged (and,
// when distributed, exchanged) into the surface containers.
func Jumps(c *containers.Containers, v int) []float64 {
	alpha := make([]float64, c.Elements.Count())
	raise := func(e int, j float64) {
		if e != tree.None {
			alpha[e] = math.Max(alpha[e], j)
		}
	}

	in := c.Interfaces
	for i := 0; i < in.Count(); i++ {
		j := maxAbsDiff(in.Trace(i, 0, v), in.Trace(i, 1, v))
		raise(in.ElementIDs[i][0], j)
		raise(in.ElementIDs[i][1], j)
	}
	mo := c.Mortars
	for m := 0; m < mo.Count(); m++ {
		for k, s := range mo.SmallElements[m] {
			j := maxAbsDiff(mo.Trace(m, k, 0, v), mo.Trace(m, k, 1, v))
			raise(mo.LargeElements[m], j)
			raise(s, j)
		}
	}

	di := c.DistributedInterfaces
	for i := 0; i < di.Count(); i++ {
		raise(di.LocalElements[i], maxAbsDiff(di.Trace(i, 0, v), di.Trace(i, 1, v)))
	}
	dm := c.DistributedMortars
	nsmall := c.Mortars.NumSmall()
	projected := make([]float64, c.Basis.GetProperties().NFp)
	for m := 0; m < dm.Count(); m++ {
		large := dm.Trace(m, nsmall, v)
		for k := 0; k < nsmall; k++ {
			c.Mortar.Prolong(k, c.NDims-1, large, projected)
			j := maxAbsDiff(projected, dm.Trace(m, k, v))
			raise(dm.MemberElements[m][k], j)
			raise(dm.MemberElements[m][nsmall], j)
		}
	}
	return alpha
}

func maxAbsDiff(a, b []float64) (d float64) {
	for i := range a {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}
	return
}
