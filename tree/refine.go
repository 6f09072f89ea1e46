package tree

import (
	"fmt"
	"sort"
)

// Refine splits each listed leaf into 2^NDims children and links the new
// children to their same-level neighbors. No balancing is performed: a
// refinement that leaves two levels between face neighbors is accepted here
// and rejected later by the container layer. The ids of all new children
// are returned in input order.
func (t *Tree) Refine(cellIDs []int) ([]int, error) {
	for _, id := range cellIDs {
		if !t.IsActive(id) {
			return nil, fmt.Errorf("refine: cell %d is not active", id)
		}
		if !t.IsLeaf(id) {
			return nil, fmt.Errorf("refine: cell %d is not a leaf", id)
		}
	}
	var created []int
	seen := make(map[int]bool, len(cellIDs))
	for _, id := range cellIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		created = append(created, t.split(id)...)
	}
	return created, nil
}

func (t *Tree) split(id int) []int {
	nc := t.NumChildren()
	parent := t.cells[id]
	quarter := parent.Length / 4

	children := make([]int, nc)
	for k := 0; k < nc; k++ {
		center := parent.Center
		for axis := 0; axis < t.NDims; axis++ {
			if k&(1<<axis) != 0 {
				center[axis] += quarter
			} else {
				center[axis] -= quarter
			}
		}
		children[k] = t.allocate(parent.Level+1, id, center, parent.Length/2)
	}
	// Children must be attached before linking so a periodic self neighbor
	// resolves to the new siblings.
	t.cells[id].Children = children

	for k, child := range children {
		for axis := 0; axis < t.NDims; axis++ {
			bit := (k >> axis) & 1
			mirror := k ^ (1 << axis)
			for side := 0; side < 2; side++ {
				f := Face(axis, side)
				if side != bit {
					// Face points at a sibling inside the parent
					t.cells[child].Neighbors[f] = children[mirror]
					continue
				}
				pn := t.cells[id].Neighbors[f]
				if pn == None || len(t.cells[pn].Children) == 0 {
					continue
				}
				nb := t.cells[pn].Children[mirror]
				t.cells[child].Neighbors[f] = nb
				t.cells[nb].Neighbors[Opposite(f)] = child
			}
		}
	}
	return children
}

// RefineUniform refines every leaf until all leaves reach level
func (t *Tree) RefineUniform(level int) error {
	for {
		var batch []int
		for _, id := range t.LeafCells() {
			if t.cells[id].Level < level {
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			return nil
		}
		if _, err := t.Refine(batch); err != nil {
			return err
		}
	}
}

// RefineBalanced refines the listed leaves and, before each of them, every
// coarser leaf face neighbor whose level would otherwise differ by two. The
// returned ids include children created for balancing.
func (t *Tree) RefineBalanced(cellIDs []int) ([]int, error) {
	for _, id := range cellIDs {
		if !t.IsActive(id) {
			return nil, fmt.Errorf("refine: cell %d is not active", id)
		}
		if !t.IsLeaf(id) {
			return nil, fmt.Errorf("refine: cell %d is not a leaf", id)
		}
	}
	var created []int
	var refine func(id int)
	refine = func(id int) {
		if len(t.cells[id].Children) != 0 {
			return
		}
		for f := 0; f < t.NumFaces(); f++ {
			if t.cells[id].Neighbors[f] != None {
				continue
			}
			parent := t.cells[id].Parent
			if parent == None {
				continue
			}
			coarse := t.cells[parent].Neighbors[f]
			if coarse != None && len(t.cells[coarse].Children) == 0 {
				refine(coarse)
			}
		}
		created = append(created, t.split(id)...)
	}
	for _, id := range cellIDs {
		refine(id)
	}
	return created, nil
}

// Coarsen removes the children of each listed cell, turning it back into a
// leaf. Every child must be a leaf. Neighbor links that pointed at the
// removed children are cleared.
func (t *Tree) Coarsen(parentIDs []int) error {
	for _, id := range parentIDs {
		if !t.IsActive(id) {
			return fmt.Errorf("coarsen: cell %d is not active", id)
		}
		c := &t.cells[id]
		if len(c.Children) == 0 {
			return fmt.Errorf("coarsen: cell %d has no children", id)
		}
		for _, child := range c.Children {
			if len(t.cells[child].Children) != 0 {
				return fmt.Errorf("coarsen: child %d of cell %d is refined", child, id)
			}
		}
	}
	ids := append([]int(nil), parentIDs...)
	sort.Ints(ids)
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		children := t.cells[id].Children
		for _, child := range children {
			for f, nb := range t.cells[child].Neighbors {
				if nb == None || t.cells[nb].Parent == id {
					continue
				}
				t.cells[nb].Neighbors[Opposite(f)] = None
			}
		}
		for _, child := range children {
			t.release(child)
		}
		t.cells[id].Children = nil
	}
	return nil
}
