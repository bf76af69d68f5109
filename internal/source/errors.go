package source

import "errors"

var (
	// ErrInvalidInput indicates an input that is neither a directory, a file
	// nor a zip container followed by an internal prefix.
	ErrInvalidInput = errors.New("not a valid file or directory")

	// ErrWalkFailed indicates part of a directory input could not be read.
	ErrWalkFailed = errors.New("directory walk failed")

	// ErrZipOpenFailed indicates a zip container was detected but could not be read.
	ErrZipOpenFailed = errors.New("zip open failed")
)
