package channel

import (
	"context"
	"io"

	"github.com/lambda-feedback/isolate/internal/execution/codec"
)

// CancelSentinel is the string message a supervisor writes to the
// parent->child pipe to request cancellation. It is only interpreted
// once the input has been received.
const CancelSentinel = "CANCEL"

// WriteCancel writes the cancellation sentinel as a single frame.
func WriteCancel(w io.Writer) error {
	return WriteMessage(context.Background(), w, CancelSentinel)
}

// IsCancel reports whether a frame payload holds the cancellation sentinel.
func IsCancel(payload []byte) bool {
	value, ok := codec.PeekString(payload)
	return ok && value == CancelSentinel
}
