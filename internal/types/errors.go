package types

import "errors"

var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrUnauthorized = errors.New("trip not found or not owned by user")
var ErrValidation = errors.New("invalid or incomplete input")
var ErrMissingIdentifier = errors.New("external identifier required")
var ErrGeneration = errors.New("generative service returned malformed output")
