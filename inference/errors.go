package inference

import "errors"

var (
	// ErrPoolClosed is returned by Acquire once the pool has been closed.
	ErrPoolClosed = errors.New("inference: pool is closed")

	// ErrSessionClosed is returned by Infer on a closed session.
	ErrSessionClosed = errors.New("inference: session is closed")

	// ErrInputShape is returned when the tensor shape does not describe the input data.
	ErrInputShape = errors.New("inference: input shape does not match data")
)
