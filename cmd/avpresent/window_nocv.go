//go:build !with_cv
// +build !with_cv

package main

import (
	"fmt"

	"github.com/xaionaro-go/avpresent/sink/directory"
)

func newWindowFactory(title string) (directory.SurfaceFactory, error) {
	return nil, fmt.Errorf("built without OpenCV support, rebuild with the 'with_cv' tag")
}
