package nn

import (
	"github.com/pkg/errors"
)

// ErrConfig marks network assembly mistakes: bad indices, duplicate
// destinations, mismatched widths, or a cost on the input layer. These are
// programmer errors and abort assembly.
var ErrConfig = errors.New("nn: configuration error")

// ConfigErrorf wraps ErrConfig with a description.
func ConfigErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrConfig, format, args...)
}
