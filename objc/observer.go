package objc

import (
	"time"

	"github.com/chazu/objcsend/abi"
)

// SendEvent describes one completed send. An *Exception in Err belongs
// to the caller, who may release it as soon as the send returns; it is
// only valid for the duration of ObserveSend.
type SendEvent struct {
	Selector   string
	Receiver   uintptr
	SuperClass uintptr // non-zero for super sends
	Entry      abi.Entry
	Checked    bool
	Err        error
	Elapsed    time.Duration
}

// Observer receives send events. ObserveSend is called synchronously on
// the sending goroutine after the send completes, and may be called from
// many goroutines at once.
type Observer interface {
	ObserveSend(SendEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(SendEvent)

func (f ObserverFunc) ObserveSend(ev SendEvent) { f(ev) }
