package logging

import (
	"fmt"
	"io"
	"sync"
)

// Sink receives human-facing progress messages together with the verbosity
// tag they were emitted at ("" always shown, "v" verbose, "vv" very verbose).
// Producers always emit; filtering is the sink's decision.
type Sink func(message, verbosity string)

// Discard is a Sink that drops every message.
func Discard(string, string) {}

// NewVerbositySink returns a Sink writing one line per message to w when the
// message tag is no longer than the requested verbosity.
func NewVerbositySink(w io.Writer, requested string) Sink {
	var mu sync.Mutex
	return func(message, verbosity string) {
		if !Shows(requested, verbosity) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, message)
	}
}

// Shows reports whether a message tagged with verbosity is displayed at the
// requested verbosity.
func Shows(requested, verbosity string) bool {
	return len(verbosity) <= len(requested)
}
