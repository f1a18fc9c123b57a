// internal/browser/chrome/context_utils.go
package chrome

import (
	"context"
	"time"
)

// CombineContext returns a context that carries the values of tabCtx (the CDP
// target) and is cancelled when either tabCtx or opCtx is done.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	stop := context.AfterFunc(opCtx, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// valueOnlyContext keeps the values of its parent but none of its deadline or
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                       { return nil }
func (valueOnlyContext) Err() error                                  { return nil }

// Detach returns a context with the values of ctx that is never cancelled. The
// browser process is parented on it so that only Close ends it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
