//go:build with_cv
// +build with_cv

package main

import (
	"github.com/xaionaro-go/avpresent/sink/cvwindow"
	"github.com/xaionaro-go/avpresent/sink/directory"
)

func newWindowFactory(title string) (directory.SurfaceFactory, error) {
	return cvwindow.Factory{Title: title}, nil
}
