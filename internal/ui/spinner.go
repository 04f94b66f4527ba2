package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Spinner displays an animated spinner with a message that can change
// while it runs. Export progress lines are fed through SetMessage.
type Spinner struct {
	out     io.Writer
	tty     bool
	frames  []string
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	message string
	current int
	started bool
}

// Default spinner frames (dots style)
var defaultFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a spinner on stderr.
func NewSpinner(message string) *Spinner {
	return NewSpinnerTo(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()), message)
}

// NewSpinnerTo creates a spinner on out. When tty is false, messages are
// printed as plain lines instead of animated.
func NewSpinnerTo(out io.Writer, tty bool, message string) *Spinner {
	return &Spinner{
		out:     out,
		tty:     tty,
		message: message,
		frames:  defaultFrames,
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	msg := s.message
	s.mu.Unlock()

	if !s.tty {
		fmt.Fprintf(s.out, "%s...\n", msg)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				fmt.Fprint(s.out, "\r\033[K")
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := s.frames[s.current%len(s.frames)]
				s.current++
				msg := s.message
				s.mu.Unlock()
				fmt.Fprintf(s.out, "\r\033[K%s %s", Bold.Render(frame), msg)
			}
		}
	}()
}

// SetMessage replaces the message shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
	if !s.tty {
		fmt.Fprintln(s.out, message)
	}
}

// Stop stops the spinner. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	if !s.tty {
		return
	}
	close(s.done)
	s.wg.Wait()
	s.done = make(chan struct{})
}

// StopWithMessage stops the spinner and prints a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	fmt.Fprintln(s.out, message)
}

// StopWithCheck stops the spinner and prints a success message.
func (s *Spinner) StopWithCheck(message string) {
	s.Stop()
	fmt.Fprintln(s.out, Check(message))
}
