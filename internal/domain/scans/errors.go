package scans

import "errors"

var (
	// ErrScannerUnavailable means the scanning tool is not installed or not runnable.
	ErrScannerUnavailable = errors.New("scanner unavailable")
	// ErrImageNotFound means the target image is not present locally.
	ErrImageNotFound = errors.New("image not found")
	// ErrMalformedScanOutput means the raw output could not be parsed into findings.
	ErrMalformedScanOutput = errors.New("malformed scan output")
	ErrUnknownScanner      = errors.New("unknown scanner")
	ErrUnknownFormat       = errors.New("unknown output format")
)
