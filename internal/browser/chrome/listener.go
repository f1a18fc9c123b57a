// internal/browser/chrome/listener.go
package chrome

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rehydrate/internal/harness"
)

// listener follows the CDP event stream of one tab. It tracks in-flight network
// requests and collects client-side errors.
type listener struct {
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[network.RequestID]network.ResourceType
	errors   []harness.PageError
}

func newListener(logger *zap.Logger) *listener {
	return &listener{
		logger:   logger.Named("listener"),
		inflight: make(map[network.RequestID]network.ResourceType),
	}
}

// attach registers the listener on the tab. It stops when tabCtx is done.
func (l *listener) attach(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			l.requestStarted(e)
		case *network.EventLoadingFinished:
			l.requestDone(e.RequestID)
		case *network.EventLoadingFailed:
			l.requestDone(e.RequestID)
		case *runtime.EventExceptionThrown:
			l.exceptionThrown(e)
		case *runtime.EventConsoleAPICalled:
			l.consoleCalled(e)
		case *log.EventEntryAdded:
			l.logEntryAdded(e)
		}
	})
}

func (l *listener) requestStarted(e *network.EventRequestWillBeSent) {
	// WebSockets and event streams never finish and would block quiescence.
	if e.Type == network.ResourceTypeWebSocket || e.Type == network.ResourceTypeEventSource {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight[e.RequestID] = e.Type
}

func (l *listener) requestDone(id network.RequestID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inflight, id)
}

// resetNetwork forgets requests of the previous document.
func (l *listener) resetNetwork() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.inflight)
}

// Pending implements harness.PendingProbe with the number of in-flight requests.
func (l *listener) Pending(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight), nil
}

func (l *listener) exceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}
	l.record(harness.PageError{Message: text, Source: "exception", At: eventTime(e.Timestamp)})
}

func (l *listener) consoleCalled(e *runtime.EventConsoleAPICalled) {
	if e.Type != runtime.APITypeError && e.Type != runtime.APITypeAssert {
		return
	}
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		var val interface{}
		switch {
		case arg.Value != nil && jsoniter.Unmarshal(arg.Value, &val) == nil:
			parts = append(parts, fmt.Sprint(val))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		default:
			parts = append(parts, "["+string(arg.Type)+"]")
		}
	}
	l.record(harness.PageError{Message: strings.Join(parts, " "), Source: "console", At: eventTime(e.Timestamp)})
}

func (l *listener) logEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil || e.Entry.Level != log.LevelError {
		return
	}
	// Failed resource loads surface here, not as exceptions.
	l.record(harness.PageError{Message: e.Entry.Text, Source: "log:" + string(e.Entry.Source), At: eventTime(e.Entry.Timestamp)})
}

func (l *listener) record(pe harness.PageError) {
	l.logger.Debug("Client-side error observed.", zap.String("source", pe.Source), zap.String("message", pe.Message))
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, pe)
}

func (l *listener) pageErrors() []harness.PageError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]harness.PageError(nil), l.errors...)
}

func eventTime(ts *runtime.Timestamp) time.Time {
	if ts == nil {
		return time.Now()
	}
	return ts.Time()
}
