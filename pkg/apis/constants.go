package apis

import "errors"

// headers
const (
	IfMatch  = "If-Match"
	Location = "Location"
	ETag     = "ETag"
)

// query parameters
const (
	Filter = "filter"
)

var (
	ErrMismatch = errors.New("resource mismatch")
	ErrInternal = errors.New("internal error")
)
