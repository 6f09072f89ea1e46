package indicator

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// blockSize is the @inner extent; the last block is masked by NELEM
const blockSize = 64

const gatherKernel = `
@kernel void gatherIndicator(const int *links, const double *in, double *out) {
	for (int b = 0; b < NELEM; b += BLOCK; @outer) {
		for (int k = b; k < b + BLOCK; ++k; @inner) {
			if (k < NELEM) {
				double v = in[k];
				for (int j = 0; j < NNBR; ++j) {
					const int nbr = links[k*NNBR + j];
					if (nbr >= 0) {
						const double h = 0.5*in[nbr];
						if (h > v) v = h;
					}
				}
				out[k] = v;
			}
		}
	}
}`

// DeviceSmoother runs the gather formulation of the indicator smoother on an
// OCCA device. It is built for one link table; rebuild it after every
// reinitialization.
type DeviceSmoother struct {
	Device *gocca.OCCADevice
	NElem  int
	NNbr   int

	kernel  *gocca.OCCAKernel
	links   *gocca.OCCAMemory
	in, out *gocca.OCCAMemory
}

// NewDeviceSmoother compiles the gather kernel for links and uploads the
// link table
func NewDeviceSmoother(device *gocca.OCCADevice, links [][]int) (*DeviceSmoother, error) {
	if len(links) == 0 {
		return nil, fmt.Errorf("device smoother needs at least one element")
	}
	table, nnbr := flatten(links)
	if nnbr == 0 {
		// a zero-width table still needs a valid allocation
		table, nnbr = make([]int32, len(links)), 1
		for i := range table {
			table[i] = -1
		}
	}
	ds := &DeviceSmoother{Device: device, NElem: len(links), NNbr: nnbr}

	src := fmt.Sprintf("#define NELEM %d\n#define NNBR %d\n#define BLOCK %d\n%s",
		ds.NElem, ds.NNbr, blockSize, gatherKernel)
	var err error
	if device.Mode() == "OpenMP" {
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		ds.kernel, err = device.BuildKernelFromString(src, "gatherIndicator", props)
	} else {
		ds.kernel, err = device.BuildKernelFromString(src, "gatherIndicator", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel gatherIndicator: %w", err)
	}
	if ds.kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for gatherIndicator")
	}

	ds.links = device.Malloc(int64(len(table)*4), unsafe.Pointer(&table[0]), nil)
	ds.in = device.Malloc(int64(ds.NElem*8), nil, nil)
	ds.out = device.Malloc(int64(ds.NElem*8), nil, nil)
	return ds, nil
}

// Smooth replaces alpha with the gathered values
func (ds *DeviceSmoother) Smooth(alpha []float64) error {
	if len(alpha) != ds.NElem {
		return fmt.Errorf("device smoother built for %d elements, got %d", ds.NElem, len(alpha))
	}
	bytes := int64(ds.NElem * 8)
	ds.in.CopyFrom(unsafe.Pointer(&alpha[0]), bytes)
	if err := ds.kernel.RunWithArgs(ds.links, ds.in, ds.out); err != nil {
		return fmt.Errorf("failed to run kernel gatherIndicator: %w", err)
	}
	ds.Device.Finish()
	ds.out.CopyTo(unsafe.Pointer(&alpha[0]), bytes)
	return nil
}

// Free releases the kernel and device memory. The device itself stays
// with the caller.
func (ds *DeviceSmoother) Free() {
	if ds.kernel != nil {
		ds.kernel.Free()
	}
	for _, mem := range []*gocca.OCCAMemory{ds.links, ds.in, ds.out} {
		if mem != nil {
			mem.Free()
		}
	}
}
