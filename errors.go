package avpresent

import (
	"errors"
)

// ErrResourceFatal wraps the errors that stop a pipeline: the decoder or the
// display surfaces are unusable.
var ErrResourceFatal = errors.New("resource failure")

var ErrAlreadyServing = errors.New("the pipeline is already served")
