//go:build gocv

package camera

func openDevice(opts Options) (Service, error) {
	return NewDeviceCamera(opts.OutputDir), nil
}
