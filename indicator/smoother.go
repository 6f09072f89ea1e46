// Package indicator spreads a per-element shock-capturing activation value
// to face neighbors so that shocks are not captured by a single element.
package indicator

import (
	"fmt"
	"math"

	"github.com/notargets/DGAdapt/containers"
	"github.com/notargets/DGAdapt/tree"
)

// Pairs lists the coupled (element, element) pairs of c: every interface
// and every (large, small) mortar pair
func Pairs(c *containers.Containers) [][2]int {
	in, mo := c.Interfaces, c.Mortars
	pairs := make([][2]int, 0, in.Count()+mo.Count()*mo.NumSmall())
	for i := 0; i < in.Count(); i++ {
		pairs = append(pairs, in.ElementIDs[i])
	}
	for m := 0; m < mo.Count(); m++ {
		for _, s := range mo.SmallElements[m] {
			pairs = append(pairs, [2]int{mo.LargeElements[m], s})
		}
	}
	return pairs
}

// Smooth raises alpha in place to at least half of every neighbor's value,
// using the values alpha held on entry
func Smooth(alpha []float64, c *containers.Containers) {
	if n := c.Elements.Count(); len(alpha) != n {
		panic(&containers.IndexRangeError{Container: "indicator", Index: len(alpha), Count: n})
	}
	SmoothPairs(alpha, Pairs(c))
}

// SmoothPairs updates both endpoints of every pair with
// max(old(self), 0.5*old(other), current(self)) where old is a snapshot
// taken before the first pair
func SmoothPairs(alpha []float64, pairs [][2]int) {
	old := make([]float64, len(alpha))
	copy(old, alpha)
	for _, p := range pairs {
		a, b := p[0], p[1]
		alpha[a] = math.Max(alpha[a], math.Max(old[a], 0.5*old[b]))
		alpha[b] = math.Max(alpha[b], math.Max(old[b], 0.5*old[a]))
	}
}

// Links returns, per element, the neighbor element across every face slot.
// Element e has NumFaces*NumSmall slots; slot f*nsmall+k holds the k-th
// element across face f. Conforming and small-to-large faces only use k=0.
// Absent neighbors are tree.None.
func Links(c *containers.Containers) [][]int {
	nfaces := 2 * c.NDims
	nsmall := c.Mortars.NumSmall()
	links := make([][]int, c.Elements.Count())
	for e := range links {
		links[e] = make([]int, nfaces*nsmall)
		for j := range links[e] {
			links[e][j] = tree.None
		}
	}
	in := c.Interfaces
	for i := 0; i < in.Count(); i++ {
		left, right := in.Elements(i)
		links[left][in.Faces[i][0]*nsmall] = right
		links[right][in.Faces[i][1]*nsmall] = left
	}
	mo := c.Mortars
	for m := 0; m < mo.Count(); m++ {
		large, f := mo.LargeElements[m], mo.LargeFaces[m]
		for k, s := range mo.SmallElements[m] {
			links[large][f*nsmall+k] = s
			links[s][tree.Opposite(f)*nsmall] = large
		}
	}
	return links
}

// flatten packs links into a row-major int32 table of width n
func flatten(links [][]int) (table []int32, n int) {
	for _, l := range links {
		n = max(n, len(l))
	}
	table = make([]int32, len(links)*n)
	for e, l := range links {
		for j := 0; j < n; j++ {
			v := tree.None
			if j < len(l) {
				v = l[j]
			}
			if v > math.MaxInt32 {
				panic(fmt.Sprintf("element %d link %d overflows int32", e, v))
			}
			table[e*n+j] = int32(v)
		}
	}
	return table, n
}

// Gather is the host rendition of the device kernel:
// out[k] = max(in[k], 0.5*in[nbr]) over all links of k
func Gather(in []float64, links [][]int, out []float64) {
	for k, l := range links {
		v := in[k]
		for _, nbr := range l {
			if nbr != tree.None {
				v = math.Max(v, 0.5*in[nbr])
			}
		}
		out[k] = v
	}
}
