package shared

import "fmt"

var (
	// Resolution and download errors
	ErrResolutionFailed = fmt.Errorf("metadata resolution failed")
	ErrDownloadFailed   = fmt.Errorf("fragment download failed")
	ErrNotACollection   = fmt.Errorf("not a collection URL")

	// Controller state errors
	ErrNotConnected     = fmt.Errorf("not connected")
	ErrAlreadyConnected = fmt.Errorf("already connected to another target")
	ErrNotPlaying       = fmt.Errorf("nothing is playing")

	// Input validation errors
	ErrOutOfRange      = fmt.Errorf("index out of range")
	ErrUnknownCommand  = fmt.Errorf("unknown command")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
