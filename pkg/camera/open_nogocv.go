//go:build !gocv

package camera

import "fmt"

func openDevice(Options) (Service, error) {
	return nil, fmt.Errorf("camera backend gocv requires building with -tags gocv")
}
