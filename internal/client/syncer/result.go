package syncer

import (
	"errors"
	"fmt"
)

// Result is what every PerformFullSync call returns; failures never escape
// as errors or panics.
type Result struct {
	Success      bool
	ErrorMessage string
	Stats        Stats
}

// Stats counts what a pass did.
type Stats struct {
	Uploaded   int
	Conflicts  int
	Failed     int
	Downloaded int
	Resolved   int
}

const msgNotAuthenticated = "User not authenticated"

type phase string

const (
	phaseAuth       phase = "auth"
	phaseUpload     phase = "upload"
	phaseDownload   phase = "download"
	phaseResolve    phase = "resolve"
	phaseUnexpected phase = "unexpected"
)

var errNotAuthenticated = errors.New(msgNotAuthenticated)

// syncError tags a failure with the phase it came from.
type syncError struct {
	phase phase
	err   error
}

func (e *syncError) Error() string {
	switch e.phase {
	case phaseAuth:
		return msgNotAuthenticated
	case phaseUpload:
		return "Upload failed: " + e.err.Error()
	case phaseDownload:
		return "Download failed: " + e.err.Error()
	case phaseResolve:
		return "Conflict resolution failed: " + e.err.Error()
	default:
		return "Sync failed: " + e.err.Error()
	}
}

func (e *syncError) Unwrap() error { return e.err }

func tag(p phase, err error) error {
	if err == nil {
		return nil
	}
	var se *syncError
	if errors.As(err, &se) {
		return err
	}
	return &syncError{phase: p, err: err}
}

func failure(err error, st Stats) Result {
	return Result{Success: false, ErrorMessage: err.Error(), Stats: st}
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return &syncError{phase: phaseUnexpected, err: err}
	}
	return &syncError{phase: phaseUnexpected, err: fmt.Errorf("%v", p)}
}
