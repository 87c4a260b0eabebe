package jpegr

import (
	"github.com/pkg/errors"
)

// Error kinds, match with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCodecFailure    = errors.New("underlying codec failure")
	ErrContainerParse  = errors.New("container parse failure")
	ErrBufferTooSmall  = errors.New("buffer too small")
)

// CodecError reports a failure of the single-layer Codec, it matches ErrCodecFailure.
type CodecError struct {
	// Pathway is the encode or decode pathway that was running.
	Pathway string
	// Op names the failed call, e.g. "compress base".
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return e.Pathway + ": " + e.Op + ": " + e.Err.Error()
}

func (e *CodecError) Unwrap() error { return e.Err }

// Is reports ErrCodecFailure as the kind of this error.
func (e *CodecError) Is(target error) bool {
	return target == ErrCodecFailure
}

func invalidArgf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

func parseErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrContainerParse, format, args...)
}

func bufferTooSmallf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBufferTooSmall, format, args...)
}
