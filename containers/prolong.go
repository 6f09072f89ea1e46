package containers

import (
	"fmt"

	"github.com/notargets/DGAdapt/tree"
)

// faceTrace copies the values of variable v on face f of element e
func (c *Containers) faceTrace(e, f, v int, out []float64) {
	u := c.Elements.U[v]
	for j, node := range c.Basis.GetReferenceGeometry().FacePoints[f] {
		out[j] = u.At(node, e)
	}
}

// ProlongToInterfaces fills both sides of every interface with the element
// face traces
func (c *Containers) ProlongToInterfaces() {
	in := c.Interfaces
	for i := 0; i < in.Count(); i++ {
		for side := 0; side < 2; side++ {
			for v := 0; v < c.NVars; v++ {
				c.faceTrace(in.ElementIDs[i][side], in.Faces[i][side], v, in.Trace(i, side, v))
			}
		}
	}
}

// ProlongToBoundaries fills every boundary with the element face trace
func (c *Containers) ProlongToBoundaries() {
	bd := c.Boundaries
	for i := 0; i < bd.Count(); i++ {
		for v := 0; v < c.NVars; v++ {
			c.faceTrace(bd.ElementIDs[i], bd.Faces[i], v, bd.Trace(i, v))
		}
	}
}

// ProlongToMortars fills the small side of every mortar with the small
// element traces and the large side with the large face interpolated onto
// each small face
func (c *Containers) ProlongToMortars() {
	mo := c.Mortars
	faceDims := c.NDims - 1
	large := make([]float64, c.Basis.GetProperties().NFp)
	for m := 0; m < mo.Count(); m++ {
		ls := mo.LargeSides[m]
		f := mo.LargeFaces[m]
		for v := 0; v < c.NVars; v++ {
			c.faceTrace(mo.LargeElements[m], f, v, large)
			for k, s := range mo.SmallElements[m] {
				c.faceTrace(s, tree.Opposite(f), v, mo.Trace(m, k, 1-ls, v))
				c.Mortar.Prolong(k, faceDims, large, mo.Trace(m, k, ls, v))
			}
		}
	}
}

// RestrictMortar projects the small-side values of mortar m onto the large
// face. out is [variable][node].
func (c *Containers) RestrictMortar(m int, out []float64) {
	mo := c.Mortars
	checkIndex("mortar", m, mo.Count())
	nfp := c.Basis.GetProperties().NFp
	if len(out) != c.NVars*nfp {
		panic(fmt.Sprintf("restrict mortar %d: output length %d, expected %d", m, len(out), c.NVars*nfp))
	}
	small := make([][]float64, mo.NumSmall())
	for v := 0; v < c.NVars; v++ {
		for k := range small {
			small[k] = mo.Trace(m, k, 1-mo.LargeSides[m], v)
		}
		c.Mortar.Restrict(c.NDims-1, small, out[v*nfp:(v+1)*nfp])
	}
}

// ProlongToDistributed fills the local side of every distributed interface
// and the locally owned members of every distributed mortar
func (c *Containers) ProlongToDistributed() {
	di := c.DistributedInterfaces
	for i := 0; i < di.Count(); i++ {
		for v := 0; v < c.NVars; v++ {
			c.faceTrace(di.LocalElements[i], di.LocalFaces[i], v, di.Trace(i, di.LocalSides[i], v))
		}
	}
	dm := c.DistributedMortars
	for m := 0; m < dm.Count(); m++ {
		f := dm.LargeFaces[m]
		for k, e := range dm.MemberElements[m] {
			if e == tree.None {
				continue
			}
			face := tree.Opposite(f)
			if k == dm.nsmall {
				face = f
			}
			for v := 0; v < c.NVars; v++ {
				c.faceTrace(e, face, v, dm.Trace(m, k, v))
			}
		}
	}
}

// PackDistributed copies locally owned face data into the send buffers
func (c *Containers) PackDistributed() {
	if c.Cache == nil {
		return
	}
	di := c.DistributedInterfaces
	for i := 0; i < di.Count(); i++ {
		send, _ := c.Cache.InterfaceSlot(i, di.RemoteRanks[i])
		side := di.LocalSides[i]
		n := len(send)
		copy(send, di.slot(i)[side*n:(side+1)*n])
	}
	dm := c.DistributedMortars
	size := dm.memberSize()
	for m := 0; m < dm.Count(); m++ {
		data := dm.slot(m)
		for _, r := range dm.RemoteRanks[m] {
			send, _ := c.Cache.MortarSlot(m, r)
			for k, owner := range dm.MemberOwners[m] {
				if owner == c.cfg.Rank {
					copy(send[k*size:(k+1)*size], data[k*size:(k+1)*size])
				}
			}
		}
	}
}

// UnpackDistributed copies received face data into the remote sides
func (c *Containers) UnpackDistributed() {
	if c.Cache == nil {
		return
	}
	di := c.DistributedInterfaces
	for i := 0; i < di.Count(); i++ {
		_, recv := c.Cache.InterfaceSlot(i, di.RemoteRanks[i])
		side := 1 - di.LocalSides[i]
		n := len(recv)
		copy(di.slot(i)[side*n:(side+1)*n], recv)
	}
	dm := c.DistributedMortars
	size := dm.memberSize()
	for m := 0; m < dm.Count(); m++ {
		data := dm.slot(m)
		for _, r := range dm.RemoteRanks[m] {
			_, recv := c.Cache.MortarSlot(m, r)
			for k, owner := range dm.MemberOwners[m] {
				if owner == r {
					copy(data[k*size:(k+1)*size], recv[k*size:(k+1)*size])
				}
			}
		}
	}
}
