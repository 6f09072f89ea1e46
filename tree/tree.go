package tree

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// None marks an absent parent, child or neighbor link
const None = -1

// Cell is one node of the refinement tree. All links are ids into the
// owning Tree's arena.
type Cell struct {
	ID        int
	Level     int        // Depth below the root (root is level 0)
	Parent    int        // None for the root
	Children  []int      // nil for leaves, otherwise 2^NDims ids in Morton order
	Neighbors []int      // [2*NDims] same-level neighbor per face, None if absent
	Center    [3]float64 // Unused axes stay zero
	Length    float64    // Edge length, identical along every axis

	active bool
}

// Config describes the root cell of a tree
type Config struct {
	NDims    int        `yaml:"dimensions" validate:"min=1,max=3"`
	Center   [3]float64 `yaml:"center"`
	Length   float64    `yaml:"length" validate:"gt=0"`
	Periodic [3]bool    `yaml:"periodic"`
	// Capacity preallocates the arena; zero lets it grow on demand
	Capacity int `yaml:"capacity" validate:"min=0"`
}

// Tree is a 2^d-tree of square cells stored in an arena addressed by
// dense integer ids. Freed ids are recycled by later refinements.
type Tree struct {
	NDims    int
	Periodic [3]bool
	Root     int

	cells []Cell
	free  []int
}

var validate = validator.New()

// New creates a tree holding only the root cell. Periodic axes link the
// root to itself so that refinement wraps across the domain.
func New(cfg Config) (*Tree, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid tree config: %w", err)
	}
	t := &Tree{
		NDims:    cfg.NDims,
		Periodic: cfg.Periodic,
		cells:    make([]Cell, 0, cfg.Capacity),
	}
	t.Root = t.allocate(0, None, cfg.Center, cfg.Length)
	for axis := 0; axis < t.NDims; axis++ {
		if cfg.Periodic[axis] {
			t.cells[t.Root].Neighbors[2*axis] = t.Root
			t.cells[t.Root].Neighbors[2*axis+1] = t.Root
		}
	}
	return t, nil
}

// NumChildren returns 2^NDims
func (t *Tree) NumChildren() int { return 1 << t.NDims }

// NumFaces returns 2*NDims
func (t *Tree) NumFaces() int { return 2 * t.NDims }

// Len returns the number of active cells
func (t *Tree) Len() int { return len(t.cells) - len(t.free) }

// Capacity returns the arena size including recycled slots
func (t *Tree) Capacity() int { return len(t.cells) }

// Cell returns a copy of the cell record. It panics for ids that are not
// active, which indicates a stale id held by the caller.
func (t *Tree) Cell(id int) Cell {
	c := t.cell(id)
	out := *c
	out.Children = append([]int(nil), c.Children...)
	out.Neighbors = append([]int(nil), c.Neighbors...)
	return out
}

func (t *Tree) cell(id int) *Cell {
	if id < 0 || id >= len(t.cells) || !t.cells[id].active {
		panic(fmt.Sprintf("tree: cell %d is not active (capacity %d)", id, len(t.cells)))
	}
	return &t.cells[id]
}

// IsActive reports whether id refers to a live cell
func (t *Tree) IsActive(id int) bool {
	return id >= 0 && id < len(t.cells) && t.cells[id].active
}

// IsLeaf reports whether the cell has no children
func (t *Tree) IsLeaf(id int) bool { return len(t.cell(id).Children) == 0 }

// Level returns the refinement level of the cell
func (t *Tree) Level(id int) int { return t.cell(id).Level }

// Parent returns the parent cell id or None for the root
func (t *Tree) Parent(id int) int { return t.cell(id).Parent }

// Children returns the child ids in Morton order, nil for a leaf
func (t *Tree) Children(id int) []int { return t.cell(id).Children }

// Child returns child number k (bit a of k selects the upper half along axis a)
func (t *Tree) Child(id, k int) int {
	c := t.cell(id)
	if len(c.Children) == 0 {
		return None
	}
	return c.Children[k]
}

// Neighbor returns the same-level neighbor across face, or None
func (t *Tree) Neighbor(id, face int) int { return t.cell(id).Neighbors[face] }

// Center returns the cell center
func (t *Tree) Center(id int) [3]float64 { return t.cell(id).Center }

// Length returns the cell edge length
func (t *Tree) Length(id int) float64 { return t.cell(id).Length }

// ChildIndex returns the position of the cell within its parent's children
func (t *Tree) ChildIndex(id int) int {
	c := t.cell(id)
	if c.Parent == None {
		return None
	}
	for k, child := range t.cells[c.Parent].Children {
		if child == id {
			return k
		}
	}
	return None
}

// LeafCells returns the leaf cell ids in depth-first Morton order. The order
// depends only on the tree shape, never on arena slot reuse.
func (t *Tree) LeafCells() []int {
	leaves := make([]int, 0, t.Len())
	stack := []int{t.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c := &t.cells[id]
		if len(c.Children) == 0 {
			leaves = append(leaves, id)
			continue
		}
		for k := len(c.Children) - 1; k >= 0; k-- {
			stack = append(stack, c.Children[k])
		}
	}
	return leaves
}

// MaxLevel returns the deepest level of any leaf
func (t *Tree) MaxLevel() int {
	maxLevel := 0
	for _, id := range t.LeafCells() {
		if l := t.cells[id].Level; l > maxLevel {
			maxLevel = l
		}
	}
	return maxLevel
}

// AncestorNeighbor walks up from the cell until an ancestor with a
// neighbor across face is found. It returns that neighbor and the number of
// levels climbed, or (None, 0) when the face lies on the domain exterior.
func (t *Tree) AncestorNeighbor(id, face int) (neighbor, up int) {
	for cur := t.cell(id).Parent; cur != None; cur = t.cells[cur].Parent {
		up++
		if nb := t.cells[cur].Neighbors[face]; nb != None {
			return nb, up
		}
	}
	return None, 0
}

// Verify checks neighbor symmetry and parent/child consistency
func (t *Tree) Verify() error {
	for id := range t.cells {
		c := &t.cells[id]
		if !c.active {
			continue
		}
		for f, nb := range c.Neighbors {
			if nb == None {
				continue
			}
			if !t.IsActive(nb) {
				return fmt.Errorf("cell %d face %d: neighbor %d is not active", id, f, nb)
			}
			n := &t.cells[nb]
			if n.Level != c.Level {
				return fmt.Errorf("cell %d face %d: neighbor %d level %d != %d",
					id, f, nb, n.Level, c.Level)
			}
			if back := n.Neighbors[Opposite(f)]; back != id {
				return fmt.Errorf("cell %d face %d: neighbor %d links back to %d",
					id, f, nb, back)
			}
		}
		for k, child := range c.Children {
			if !t.IsActive(child) || t.cells[child].Parent != id {
				return fmt.Errorf("cell %d child %d (%d) does not link to its parent", id, k, child)
			}
			if t.cells[child].Level != c.Level+1 {
				return fmt.Errorf("cell %d child %d level %d, expected %d",
					id, child, t.cells[child].Level, c.Level+1)
			}
		}
	}
	return nil
}

func (t *Tree) allocate(level, parent int, center [3]float64, length float64) int {
	c := Cell{
		Level:     level,
		Parent:    parent,
		Neighbors: make([]int, t.NumFaces()),
		Center:    center,
		Length:    length,
		active:    true,
	}
	for f := range c.Neighbors {
		c.Neighbors[f] = None
	}
	var id int
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
		t.cells[id] = c
	} else {
		id = len(t.cells)
		t.cells = append(t.cells, c)
	}
	t.cells[id].ID = id
	return id
}

func (t *Tree) release(id int) {
	t.cells[id] = Cell{ID: id}
	t.free = append(t.free, id)
}

// Face helpers

// Face returns the face index for an axis and side (0 lower, 1 upper)
func Face(axis, side int) int { return 2*axis + side }

// Axis returns the axis normal to face
func Axis(face int) int { return face / 2 }

// Side returns 0 for a lower face and 1 for an upper face
func Side(face int) int { return face % 2 }

// Opposite returns the face on the other side of the same axis
func Opposite(face int) int { return face ^ 1 }
