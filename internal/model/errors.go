package model

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports an invalid retrieval parameter. It is returned
// before any network activity takes place.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Msg
}

// ErrDeclined is returned when the operator declines to download the
// missing monthly files. The run stops without fetching anything.
var ErrDeclined = errors.New(
	"some forcing files are missing for the given date range: " +
		"download declined, adjust the start/end dates or supply the files")

// FailedRequest records one retrieval that did not complete.
type FailedRequest struct {
	Target string
	Err    error
}

// RetrievalError aggregates the failures of a fetch run. Requests that
// succeeded before or alongside the failures stay on disk.
type RetrievalError struct {
	Failed []FailedRequest
}

func (e *RetrievalError) Error() string {
	names := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		names[i] = fmt.Sprintf("%s (%v)", f.Target, f.Err)
	}
	return fmt.Sprintf("%d request(s) failed: %s", len(e.Failed), strings.Join(names, "; "))
}
