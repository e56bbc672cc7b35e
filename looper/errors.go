package looper

import (
	"errors"
	"fmt"
)

var (
	// ErrLoopNotFound matches any *LoopNotFoundError
	ErrLoopNotFound = errors.New("no loop points found")

	// ErrAudioLoad matches any *AudioLoadError
	ErrAudioLoad = errors.New("audio could not be loaded")
)

// LoopNotFoundError reports that analysis finished without an acceptable
// loop pair for a file.
type LoopNotFoundError struct {
	Filename string
	Err      error // underlying cause, if any
}

func (e *LoopNotFoundError) Error() string {
	msg := fmt.Sprintf("no loop points found for %q with current parameters", e.Filename)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoopNotFoundError) Unwrap() error { return e.Err }

func (e *LoopNotFoundError) Is(target error) bool { return target == ErrLoopNotFound }

// AudioLoadError reports input that cannot be analysed: undecodable,
// empty or entirely silent.
type AudioLoadError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *AudioLoadError) Error() string {
	msg := fmt.Sprintf("failed to load %q for analysis: %s", e.Filename, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AudioLoadError) Unwrap() error { return e.Err }

func (e *AudioLoadError) Is(target error) bool { return target == ErrAudioLoad }

func loopNotFound(filename string, cause error) error {
	return &LoopNotFoundError{Filename: filename, Err: cause}
}
