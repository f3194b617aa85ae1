package main

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownLabel        = errors.New("unknown connection label")
	ErrNoActiveConnection  = errors.New("no active connection")
	ErrQueryInFlight       = errors.New("a query is already running on this connection")
	ErrQueryAborted        = errors.New("query aborted")
	ErrDuplicateLabel      = errors.New("duplicate connection label")
	ErrImportValidation    = errors.New("import rejected")
	ErrQueryRejected       = errors.New("query rejected")
	ErrConnectionNotOpen   = errors.New("connection is not open")
	ErrManagerClosed       = errors.New("connection manager is closed")
	ErrUnsupportedFormat   = errors.New("unsupported config file format")
	ErrAnalyzerUnavailable = errors.New("analyzer is not attached")
)

// TransportError is returned when dialing or talking to an endpoint fails.
// The Connection it came from is left in the Failed state.
type TransportError struct {
	Label string
	Op    string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Label, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ImportValidationError lists every problem found in an imported config file.
// Nothing from the file is applied when it is returned.
type ImportValidationError struct {
	Path     string
	Problems []string
}

func (e *ImportValidationError) Error() string {
	return fmt.Sprintf("import %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

func (e *ImportValidationError) Unwrap() error { return ErrImportValidation }
