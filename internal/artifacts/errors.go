package artifacts

import "errors"

var ErrMissing = errors.New("artifact missing")
