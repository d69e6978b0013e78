package coop

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// A PanicError is returned by a [Scheduler] when a Task panics while being
// advanced. The Task is dropped and the run is aborted.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (pe *PanicError) Error() string {
	var b strings.Builder
	if pe.Task != "" {
		fmt.Fprintf(&b, "coop: task %q panicked: %v", pe.Task, pe.Value)
	} else {
		fmt.Fprintf(&b, "coop: task panicked: %v", pe.Value)
	}
	if pe.Stack != nil {
		b.WriteString("\n\n")
		b.Write(pe.Stack)
	}
	return b.String()
}

// Unwrap returns the panic value if it is an error.
func (pe *PanicError) Unwrap() error {
	if err, ok := pe.Value.(error); ok {
		return err
	}
	return nil
}

// try calls f and turns a panic in f into a *PanicError.
func try(f func()) (pe *PanicError) {
	ok := false
	defer func() {
		if !ok {
			v := recover()
			if v == nil {
				panic("coop: coop does not support runtime.Goexit()")
			}
			pe = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	f()
	ok = true
	return nil
}
