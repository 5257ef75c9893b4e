package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidFrame is the parent of every decode failure. A scanner probing
// arbitrary byte windows should treat it as "no frame here".
var ErrInvalidFrame = errors.New("invalid frame")

var (
	ErrFrameTooShort    = fmt.Errorf("%w: frame too short", ErrInvalidFrame)
	ErrFrameLength      = fmt.Errorf("%w: unexpected frame length", ErrInvalidFrame)
	ErrZeroSeed         = fmt.Errorf("%w: zero seed", ErrInvalidFrame)
	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch", ErrInvalidFrame)

	ErrTimestampRange = errors.New("timestamp does not fit in 5 bytes")
)
