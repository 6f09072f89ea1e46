package containers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/notargets/DGAdapt/partitions"
	"github.com/notargets/DGAdapt/tree"
)

// Reinitialize rebuilds every container from the current leaves of t. The
// leaf order of t.LeafCells becomes the element order, and every surface
// container is counted, allocated and then populated in that order. On
// failure the previous containers are left untouched.
//
// Distributed containers finish with a blocking rendezvous in which every
// neighbor partition must report matching interface and mortar counts.
func (c *Containers) Reinitialize(ctx context.Context, t *tree.Tree) error {
	start := time.Now()
	mode := "serial"
	if c.cfg.Distributed() {
		mode = "distributed"
	}
	defer func() {
		reinitDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	if t.NDims != c.NDims {
		return fmt.Errorf("tree dimension %d does not match containers dimension %d",
			t.NDims, c.NDims)
	}

	next, err := c.rebuild(ctx, t)
	if err != nil {
		reason := "consistency"
		var te *TopologyError
		if errors.As(err, &te) {
			reason = te.Reason
		}
		invariantViolations.WithLabelValues(reason).Inc()
		c.logger.Error("container reinitialization failed", "error", err)
		return err
	}

	c.Elements = next.elements
	c.Interfaces = next.interfaces
	c.Boundaries = next.boundaries
	c.Mortars = next.mortars
	c.DistributedInterfaces = next.distInterfaces
	c.DistributedMortars = next.distMortars
	c.Layout = next.layout
	c.Cache = next.cache

	counts := c.Counts()
	recordSizes(c.cfg.Rank, counts)
	c.logger.Debug("containers reinitialized",
		"leaves", len(next.leaves),
		"elements", counts.Elements,
		"interfaces", counts.Interfaces,
		"boundaries", counts.Boundaries,
		"mortars", counts.Mortars,
		"distributed_interfaces", counts.DistributedInterfaces,
		"distributed_mortars", counts.DistributedMortars,
		"elapsed", time.Since(start))
	return nil
}

type rebuild struct {
	t   *tree.Tree
	cfg *Config

	ndims, nvars, nfp, nfaces, nsmall int
	facePoints                        [][]int
	rank                              int

	leaves []int
	owner  func(cell int) int
	// classified counts the surfaces attached to each local element face
	classified []int

	layout         *partitions.PartitionLayout
	elements       *Elements
	interfaces     *Interfaces
	boundaries     *Boundaries
	mortars        *Mortars
	distInterfaces *DistributedInterfaces
	distMortars    *DistributedMortars
	cache          *partitions.DistributedCache
}

func (c *Containers) rebuild(ctx context.Context, t *tree.Tree) (*rebuild, error) {
	props := c.Basis.GetProperties()
	geom := c.Basis.GetReferenceGeometry()
	b := &rebuild{
		t:          t,
		cfg:        &c.cfg,
		ndims:      c.NDims,
		nvars:      c.NVars,
		nfp:        props.NFp,
		nfaces:     props.NFaces,
		nsmall:     1 << (c.NDims - 1),
		facePoints: geom.FacePoints,
		rank:       c.cfg.Rank,
		leaves:     t.LeafCells(),
		owner:      func(int) int { return 0 },
	}

	local := b.leaves
	if c.cfg.Distributed() {
		pb := &partitions.PartitionBuilder{
			NumPartitions: c.cfg.NumPartitions,
			Strategy:      c.cfg.Strategy,
		}
		layout, err := pb.BuildPartitions(b.leaves)
		if err != nil {
			return nil, err
		}
		b.layout = layout
		b.owner = layout.Owner
		local = layout.Partitions[b.rank].Cells
	}

	b.elements = newElements(len(local), props.Np, b.ndims, b.nvars)
	ref := [3][]float64{geom.R, geom.S, geom.T}
	for _, cell := range local {
		b.elements.add(t, cell, ref)
	}
	b.classified = make([]int, len(local)*b.nfaces)

	b.buildInterfaces()
	if err := b.buildBoundaries(); err != nil {
		return nil, err
	}
	if err := b.buildMortars(); err != nil {
		return nil, err
	}
	if err := b.checkClassification(); err != nil {
		return nil, err
	}

	if c.cfg.Distributed() {
		if err := b.rendezvous(ctx); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *rebuild) isLocal(cell int) bool { return b.owner(cell) == b.rank }

func (b *rebuild) element(cell int) int {
	e, ok := b.elements.ElementOf(cell)
	if !ok {
		return tree.None
	}
	return e
}

func (b *rebuild) classify(e, face int) {
	if e != tree.None {
		b.classified[e*b.nfaces+face]++
	}
}

// eachConforming visits every same-level leaf pair once, from the lower
// cell across its upper face, in leaf order
func (b *rebuild) eachConforming(fn func(cell, nb, face int)) {
	for _, cell := range b.leaves {
		for axis := 0; axis < b.ndims; axis++ {
			f := tree.Face(axis, 1)
			nb := b.t.Neighbor(cell, f)
			if nb == tree.None || !b.t.IsLeaf(nb) {
				continue
			}
			fn(cell, nb, f)
		}
	}
}

func (b *rebuild) buildInterfaces() {
	var nLocal, nDist int
	b.eachConforming(func(cell, nb, _ int) {
		switch lc, ln := b.isLocal(cell), b.isLocal(nb); {
		case lc && ln:
			nLocal++
		case lc || ln:
			nDist++
		}
	})

	b.interfaces = newInterfaces(nLocal, b.nvars, b.nfp)
	b.distInterfaces = newDistributedInterfaces(nDist, b.nvars, b.nfp)
	in, di := b.interfaces, b.distInterfaces
	b.eachConforming(func(cell, nb, f int) {
		lc, ln := b.isLocal(cell), b.isLocal(nb)
		axis := tree.Axis(f)
		switch {
		case lc && ln:
			left, right := b.element(cell), b.element(nb)
			in.ElementIDs = append(in.ElementIDs, [2]int{left, right})
			in.Faces = append(in.Faces, [2]int{f, tree.Opposite(f)})
			in.Orientations = append(in.Orientations, axis)
			b.classify(left, f)
			b.classify(right, tree.Opposite(f))
		case lc:
			e := b.element(cell)
			di.LocalElements = append(di.LocalElements, e)
			di.LocalFaces = append(di.LocalFaces, f)
			di.LocalSides = append(di.LocalSides, 0)
			di.RemoteRanks = append(di.RemoteRanks, b.owner(nb))
			di.RemoteCells = append(di.RemoteCells, nb)
			di.Orientations = append(di.Orientations, axis)
			b.classify(e, f)
		case ln:
			e := b.element(nb)
			di.LocalElements = append(di.LocalElements, e)
			di.LocalFaces = append(di.LocalFaces, tree.Opposite(f))
			di.LocalSides = append(di.LocalSides, 1)
			di.RemoteRanks = append(di.RemoteRanks, b.owner(cell))
			di.RemoteCells = append(di.RemoteCells, cell)
			di.Orientations = append(di.Orientations, axis)
			b.classify(e, tree.Opposite(f))
		}
	})
}

// eachBoundary visits local element faces on the domain exterior, face
// direction major. Faces of fine cells whose parent has a neighbor are
// covered by the mortar built from the coarse side and are skipped.
func (b *rebuild) eachBoundary(fn func(e, cell, face int)) error {
	el := b.elements
	for f := 0; f < b.nfaces; f++ {
		for e, cell := range el.CellIDs {
			if b.t.Neighbor(cell, f) != tree.None {
				continue
			}
			anc, up := b.t.AncestorNeighbor(cell, f)
			switch {
			case anc == tree.None:
				fn(e, cell, f)
			case up > 1:
				return &TopologyError{
					Cell: cell, Face: f,
					Level: b.t.Level(cell), NeighborLevel: b.t.Level(anc),
					Reason: ReasonLevelJump,
					Detail: fmt.Sprintf("nearest neighbor %d is %d levels coarser", anc, up),
				}
			case !b.t.IsLeaf(anc):
				return &TopologyError{
					Cell: cell, Face: f,
					Level: b.t.Level(cell), NeighborLevel: b.t.Level(anc) + 1,
					Reason: ReasonUnlinked,
					Detail: fmt.Sprintf("children of neighbor %d are not linked", anc),
				}
			}
		}
	}
	return nil
}

func (b *rebuild) buildBoundaries() error {
	n := 0
	if err := b.eachBoundary(func(int, int, int) { n++ }); err != nil {
		return err
	}

	bd := newBoundaries(n, b.ndims, b.nvars, b.nfp)
	b.boundaries = bd
	return b.eachBoundary(func(e, _, f int) {
		i := bd.Count()
		bd.ElementIDs = append(bd.ElementIDs, e)
		bd.Faces = append(bd.Faces, f)
		bd.Orientations = append(bd.Orientations, tree.Axis(f))
		bd.ElementSides = append(bd.ElementSides, 1-tree.Side(f))
		bd.Tags = append(bd.Tags, b.cfg.tag(f))
		bd.CountsPerDirection[f]++
		for a := 0; a < b.ndims; a++ {
			x := bd.Coordinate(i, a)
			for j, node := range b.facePoints[f] {
				x[j] = b.elements.X[a].At(node, e)
			}
		}
		b.classify(e, f)
	})
}

// eachNonConforming visits every leaf whose same-level neighbor across a
// face is refined, with the neighbor's children touching that face
func (b *rebuild) eachNonConforming(fn func(large, face int, small []int)) error {
	small := make([]int, 0, b.nsmall)
	for _, cell := range b.leaves {
		for f := 0; f < b.nfaces; f++ {
			nb := b.t.Neighbor(cell, f)
			if nb == tree.None || b.t.IsLeaf(nb) {
				continue
			}
			axis, facing := tree.Axis(f), tree.Side(f)^1
			small = small[:0]
			for k, child := range b.t.Children(nb) {
				if (k>>axis)&1 != facing {
					continue
				}
				if !b.t.IsLeaf(child) {
					return &TopologyError{
						Cell: cell, Face: f,
						Level: b.t.Level(cell), NeighborLevel: b.t.Level(child) + 1,
						Reason: ReasonLevelJump,
						Detail: fmt.Sprintf("child %d of neighbor %d is refined", child, nb),
					}
				}
				small = append(small, child)
			}
			fn(cell, f, small)
		}
	}
	return nil
}

func (b *rebuild) buildMortars() error {
	var nLocal, nDist int
	err := b.eachNonConforming(func(large, _ int, small []int) {
		switch n := b.localMembers(large, small); {
		case n == len(small)+1:
			nLocal++
		case n > 0:
			nDist++
		}
	})
	if err != nil {
		return err
	}

	b.mortars = newMortars(nLocal, b.nsmall, b.nvars, b.nfp)
	b.distMortars = newDistributedMortars(nDist, b.nsmall, b.nvars, b.nfp)
	mo, dm := b.mortars, b.distMortars
	return b.eachNonConforming(func(large, f int, small []int) {
		largeSide := 1 - tree.Side(f)
		n := b.localMembers(large, small)
		switch {
		case n == len(small)+1:
			le := b.element(large)
			smallIDs := make([]int, len(small))
			for k, s := range small {
				smallIDs[k] = b.element(s)
				b.classify(smallIDs[k], tree.Opposite(f))
			}
			b.classify(le, f)
			mo.LargeElements = append(mo.LargeElements, le)
			mo.SmallElements = append(mo.SmallElements, smallIDs)
			mo.LargeSides = append(mo.LargeSides, largeSide)
			mo.LargeFaces = append(mo.LargeFaces, f)
			mo.Orientations = append(mo.Orientations, tree.Axis(f))
		case n > 0:
			members := append(append([]int(nil), small...), large)
			elems := make([]int, len(members))
			owners := make([]int, len(members))
			remote := make(map[int]bool)
			for k, cell := range members {
				owners[k] = b.owner(cell)
				elems[k] = b.element(cell)
				if owners[k] != b.rank {
					remote[owners[k]] = true
				}
				face := tree.Opposite(f)
				if cell == large {
					face = f
				}
				b.classify(elems[k], face)
			}
			ranks := make([]int, 0, len(remote))
			for r := range remote {
				ranks = append(ranks, r)
			}
			sort.Ints(ranks)
			dm.LargeCells = append(dm.LargeCells, large)
			dm.SmallCells = append(dm.SmallCells, append([]int(nil), small...))
			dm.MemberElements = append(dm.MemberElements, elems)
			dm.MemberOwners = append(dm.MemberOwners, owners)
			dm.RemoteRanks = append(dm.RemoteRanks, ranks)
			dm.LargeSides = append(dm.LargeSides, largeSide)
			dm.LargeFaces = append(dm.LargeFaces, f)
			dm.Orientations = append(dm.Orientations, tree.Axis(f))
		}
	})
}

func (b *rebuild) localMembers(large int, small []int) int {
	n := 0
	if b.isLocal(large) {
		n++
	}
	for _, s := range small {
		if b.isLocal(s) {
			n++
		}
	}
	return n
}

// checkClassification requires every local element face to be attached to
// exactly one surface
func (b *rebuild) checkClassification() error {
	for e, cell := range b.elements.CellIDs {
		for f := 0; f < b.nfaces; f++ {
			if n := b.classified[e*b.nfaces+f]; n != 1 {
				return &TopologyError{
					Cell: cell, Face: f,
					Level: b.t.Level(cell), NeighborLevel: b.t.Level(cell),
					Reason: ReasonClassification,
					Detail: fmt.Sprintf("face attached to %d surfaces", n),
				}
			}
		}
	}
	return nil
}

func (b *rebuild) rendezvous(ctx context.Context) error {
	cache, err := partitions.NewDistributedCache(b.rank,
		b.distInterfaces.RemoteRanks, b.distMortars.RemoteRanks,
		b.nvars*b.nfp, (b.nsmall+1)*b.nvars*b.nfp)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ExchangeTimeout)
	defer cancel()
	if err := cache.AgreeCounts(ctx, b.cfg.Transport); err != nil {
		return fmt.Errorf("distributed rendezvous: %w", err)
	}
	b.cache = cache
	return nil
}
