package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks a response body that is not valid JSON.
	ErrDecode = errors.New("decode response")
	// ErrPersist marks a failure writing an output document.
	ErrPersist = errors.New("persist document")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}
