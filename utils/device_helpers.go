package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/gocca"
)

// Backends lists the device properties tried by CreateDevice, parallel
// backends first
var Backends = map[string]string{
	"openmp": `{"mode": "OpenMP"}`,
	"cuda":   `{"mode": "CUDA", "device_id": 0}`,
	"serial": `{"mode": "Serial"}`,
}

// DefaultModes is the order CreateDevice falls back through
var DefaultModes = []string{"openmp", "cuda", "serial"}

// CreateDevice returns the first device that can be created from modes,
// or from DefaultModes when none are given
func CreateDevice(modes ...string) (*gocca.OCCADevice, error) {
	if len(modes) == 0 {
		modes = DefaultModes
	}
	var errs []error
	for _, mode := range modes {
		props, ok := Backends[strings.ToLower(mode)]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown device mode %q", mode))
			continue
		}
		device, err := gocca.NewDevice(props)
		if err == nil {
			return device, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", mode, err))
	}
	return nil, fmt.Errorf("no device available: %w", errors.Join(errs...))
}
