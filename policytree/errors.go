package policytree

import "errors"

// ErrInvalidInput is returned, wrapped with details, when arguments are malformed
// or inconsistent. It is detected before any search work begins.
var ErrInvalidInput = errors.New("policytree: invalid input")
