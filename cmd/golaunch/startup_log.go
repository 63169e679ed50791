package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// startupLog prints replay progress one step per line, with a spinner for
// steps that wait on the agent when writing to a terminal.
type startupLog struct {
	w     io.Writer
	isTTY bool
	mu    sync.Mutex
}

func newStartupLog(w io.Writer, isTTY bool) *startupLog {
	return &startupLog{w: w, isTTY: isTTY}
}

// Step prints a completed step with a checkmark.
func (s *startupLog) Step(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Fail prints a failed step.
func (s *startupLog) Fail(msg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✗ %s: %v\n", msg, err)
}

// StartSpinner shows msg until the returned function is called with the
// step's outcome. Without a terminal it prints msg once up front.
func (s *startupLog) StartSpinner(msg string) func(err error) {
	finish := func(err error) {
		if err != nil {
			fmt.Fprintf(s.w, "✗ %s: %v\n", msg, err)
			return
		}
		fmt.Fprintf(s.w, "✓ %s\n", msg)
	}

	if !s.isTTY {
		s.mu.Lock()
		fmt.Fprintf(s.w, "%s...\n", msg)
		s.mu.Unlock()
		return func(err error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			finish(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)

	frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(frames) {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.w, "\r%c %s", frames[i], msg)
				s.mu.Unlock()
			}
		}
	}()

	var once sync.Once
	return func(err error) {
		once.Do(func() {
			cancel()
			wg.Wait()
			s.mu.Lock()
			defer s.mu.Unlock()
			fmt.Fprint(s.w, "\r")
			finish(err)
		})
	}
}
