package frame

import "context"

// Processor consumes whatever an Assembler emits until ctx is done.
type Processor interface {
	Start(context.Context) error
}
