package jartoc

import "fmt"

// InputError reports a missing, unreadable or corrupt jar. Nothing is
// written when it occurs.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string { return fmt.Sprintf("read jar %s: %v", e.Path, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// WriteError reports a failure to write the TOC, its record or the stamp.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }
