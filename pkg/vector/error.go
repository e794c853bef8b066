package vector

import "errors"

// ErrMalformed is returned when bytes do not decode to a vector.
var ErrMalformed = errors.New("malformed vector")
