package camera

import "fmt"

// Options configure a camera backend.
type Options struct {
	Backend    string
	OutputDir  string
	Permission string
}

// Open returns the camera backend named by opts.Backend.
func Open(opts Options) (Service, error) {
	switch opts.Backend {
	case "", "sim":
		return NewSim(opts.OutputDir, opts.Permission), nil
	case "gocv":
		return openDevice(opts)
	default:
		return nil, fmt.Errorf("unknown camera backend %q", opts.Backend)
	}
}
