package containers

// Face storage is flat and surface-major. One face trace of one variable
// is Nfp contiguous values ordered like element.ReferenceGeometry
// FacePoints.

// Interfaces couples pairs of same-level leaf elements. Side 0 is the
// element with the lower coordinate along the orientation axis.
type Interfaces struct {
	ElementIDs   [][2]int
	Faces        [][2]int // Local face of each side
	Orientations []int

	// Data is [interface][side][variable][node]
	Data []float64

	nvars, nfp int
}

func newInterfaces(n, nvars, nfp int) *Interfaces {
	return &Interfaces{
		ElementIDs:   make([][2]int, 0, n),
		Faces:        make([][2]int, 0, n),
		Orientations: make([]int, 0, n),
		Data:         make([]float64, n*2*nvars*nfp),
		nvars:        nvars,
		nfp:          nfp,
	}
}

func (in *Interfaces) Count() int { return len(in.ElementIDs) }

// Elements returns the lower and upper element of interface i
func (in *Interfaces) Elements(i int) (left, right int) {
	checkIndex("interface", i, in.Count())
	return in.ElementIDs[i][0], in.ElementIDs[i][1]
}

// Trace returns the face values of variable v on side of interface i
func (in *Interfaces) Trace(i, side, v int) []float64 {
	checkIndex("interface", i, in.Count())
	off := ((i*2+side)*in.nvars + v) * in.nfp
	return in.Data[off : off+in.nfp]
}

// Boundaries couples element faces with the domain exterior. Entries are
// grouped by face direction, then ordered by leaf position.
type Boundaries struct {
	ElementIDs   []int
	Faces        []int
	Orientations []int
	// ElementSides is 0 when the element lies on the lower side of the
	// boundary face along its orientation axis
	ElementSides []int
	Tags         []string

	// CountsPerDirection[f] is the number of boundaries on face direction f
	CountsPerDirection []int

	// Coordinates is [boundary][axis][node] over ndims axes
	Coordinates []float64
	// Data is [boundary][variable][node]
	Data []float64

	ndims, nvars, nfp int
}

func newBoundaries(n, ndims, nvars, nfp int) *Boundaries {
	return &Boundaries{
		ElementIDs:         make([]int, 0, n),
		Faces:              make([]int, 0, n),
		Orientations:       make([]int, 0, n),
		ElementSides:       make([]int, 0, n),
		Tags:               make([]string, 0, n),
		CountsPerDirection: make([]int, 2*ndims),
		Coordinates:        make([]float64, n*ndims*nfp),
		Data:               make([]float64, n*nvars*nfp),
		ndims:              ndims,
		nvars:              nvars,
		nfp:                nfp,
	}
}

func (b *Boundaries) Count() int { return len(b.ElementIDs) }

// Trace returns the face values of variable v on boundary i
func (b *Boundaries) Trace(i, v int) []float64 {
	checkIndex("boundary", i, b.Count())
	off := (i*b.nvars + v) * b.nfp
	return b.Data[off : off+b.nfp]
}

// Coordinate returns the face node coordinates along axis of boundary i
func (b *Boundaries) Coordinate(i, axis int) []float64 {
	checkIndex("boundary", i, b.Count())
	off := (i*b.ndims + axis) * b.nfp
	return b.Coordinates[off : off+b.nfp]
}

// Mortars couples one large element with the 2^(ndims-1) same-parent
// small elements across its face. Small elements are ordered by their
// tangential child bits with the lowest tangential axis fastest, the same
// position convention element.MortarOperators uses.
type Mortars struct {
	LargeElements []int
	SmallElements [][]int
	// LargeSides is 0 when the large element lies on the lower side
	LargeSides   []int
	LargeFaces   []int
	Orientations []int

	// Data is [mortar][small position][side][variable][node]. The large
	// side slot holds the large face prolonged onto the small face.
	Data []float64

	nsmall, nvars, nfp int
}

func newMortars(n, nsmall, nvars, nfp int) *Mortars {
	return &Mortars{
		LargeElements: make([]int, 0, n),
		SmallElements: make([][]int, 0, n),
		LargeSides:    make([]int, 0, n),
		LargeFaces:    make([]int, 0, n),
		Orientations:  make([]int, 0, n),
		Data:          make([]float64, n*nsmall*2*nvars*nfp),
		nsmall:        nsmall,
		nvars:         nvars,
		nfp:           nfp,
	}
}

func (mo *Mortars) Count() int { return len(mo.LargeElements) }

// NumSmall returns the number of small elements per mortar
func (mo *Mortars) NumSmall() int { return mo.nsmall }

// Trace returns the values of variable v at small position k on side of
// mortar m
func (mo *Mortars) Trace(m, k, side, v int) []float64 {
	checkIndex("mortar", m, mo.Count())
	off := (((m*mo.nsmall+k)*2+side)*mo.nvars + v) * mo.nfp
	return mo.Data[off : off+mo.nfp]
}

// DistributedInterfaces couples a local element with a same-level leaf owned
// by another partition
type DistributedInterfaces struct {
	LocalElements []int
	LocalFaces    []int
	// LocalSides is 0 when the local element lies on the lower side
	LocalSides   []int
	RemoteRanks  []int
	RemoteCells  []int
	Orientations []int

	// Data is [interface][side][variable][node]
	Data []float64

	nvars, nfp int
}

func newDistributedInterfaces(n, nvars, nfp int) *DistributedInterfaces {
	return &DistributedInterfaces{
		LocalElements: make([]int, 0, n),
		LocalFaces:    make([]int, 0, n),
		LocalSides:    make([]int, 0, n),
		RemoteRanks:   make([]int, 0, n),
		RemoteCells:   make([]int, 0, n),
		Orientations:  make([]int, 0, n),
		Data:          make([]float64, n*2*nvars*nfp),
		nvars:         nvars,
		nfp:           nfp,
	}
}

func (di *DistributedInterfaces) Count() int { return len(di.LocalElements) }

// Trace returns the face values of variable v on side of interface i
func (di *DistributedInterfaces) Trace(i, side, v int) []float64 {
	checkIndex("distributed interface", i, di.Count())
	off := ((i*2+side)*di.nvars + v) * di.nfp
	return di.Data[off : off+di.nfp]
}

func (di *DistributedInterfaces) slot(i int) []float64 {
	n := 2 * di.nvars * di.nfp
	return di.Data[i*n : (i+1)*n]
}

// DistributedMortars is a mortar with members on more than one partition.
// Members 0..nsmall-1 are the small elements in mortar position order,
// member nsmall is the large element.
type DistributedMortars struct {
	LargeCells []int
	SmallCells [][]int
	// MemberElements holds the local element of each member, tree.None when
	// the member is remote
	MemberElements [][]int
	MemberOwners   [][]int
	// RemoteRanks lists the distinct remote owners in ascending order
	RemoteRanks  [][]int
	LargeSides   []int
	LargeFaces   []int
	Orientations []int

	// Data is [mortar][member][variable][node]; each member slot holds the
	// member's own face trace
	Data []float64

	nsmall, nvars, nfp int
}

func newDistributedMortars(n, nsmall, nvars, nfp int) *DistributedMortars {
	return &DistributedMortars{
		LargeCells:     make([]int, 0, n),
		SmallCells:     make([][]int, 0, n),
		MemberElements: make([][]int, 0, n),
		MemberOwners:   make([][]int, 0, n),
		RemoteRanks:    make([][]int, 0, n),
		LargeSides:     make([]int, 0, n),
		LargeFaces:     make([]int, 0, n),
		Orientations:   make([]int, 0, n),
		Data:           make([]float64, n*(nsmall+1)*nvars*nfp),
		nsmall:         nsmall,
		nvars:          nvars,
		nfp:            nfp,
	}
}

func (dm *DistributedMortars) Count() int { return len(dm.LargeCells) }

// Trace returns the face values of variable v of member of mortar m
func (dm *DistributedMortars) Trace(m, member, v int) []float64 {
	checkIndex("distributed mortar", m, dm.Count())
	off := ((m*(dm.nsmall+1)+member)*dm.nvars + v) * dm.nfp
	return dm.Data[off : off+dm.nfp]
}

func (dm *DistributedMortars) memberSize() int { return dm.nvars * dm.nfp }

func (dm *DistributedMortars) slot(m int) []float64 {
	n := (dm.nsmall + 1) * dm.memberSize()
	return dm.Data[m*n : (m+1)*n]
}
