package sshsession

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ConnectError covers dial/handshake/refused/timeout/auth failures at the
// transport level, before a shell has been requested (spec.md §4.2, §7).
type ConnectError struct {
	Host    string
	Kind    string // dns, refused, auth, timeout, handshake
	Elapsed time.Duration
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %s (after %s): %v", e.Host, e.Kind, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError is returned when the transport succeeds but SSH authentication
// is rejected.
type AuthError struct {
	Host string
	Err  error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth %s: %v", e.Host, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// PrologueError wraps a failure encountered while running the vendor
// prologue.
type PrologueError struct {
	Host    string
	Command string
	Err     error
}

func (e *PrologueError) Error() string {
	return fmt.Sprintf("prologue %s %q: %v", e.Host, e.Command, e.Err)
}
func (e *PrologueError) Unwrap() error { return e.Err }

// PromptTimeoutError is returned when a prompt was not observed within the
// configured timeout. LastBytes is truncated per spec.md §7's user-visible
// message guidance.
type PromptTimeoutError struct {
	Host      string
	Elapsed   time.Duration
	LastBytes string
}

func (e *PromptTimeoutError) Error() string {
	tail := e.LastBytes
	if len(tail) > 200 {
		tail = tail[len(tail)-200:]
	}
	return fmt.Sprintf("prompt timeout on %s after %s: ...%s", e.Host, e.Elapsed.Round(time.Millisecond), tail)
}

// ReadError and WriteError wrap socket I/O failures after the shell is up.
type ReadError struct {
	Host string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Host, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

type WriteError struct {
	Host string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Host, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// OutputTooLargeError is returned when a command's accumulated output
// exceeds the configured ceiling (spec.md §4.6).
type OutputTooLargeError struct {
	Host  string
	Bytes int64
}

func (e *OutputTooLargeError) Error() string {
	return fmt.Sprintf("output too large on %s: %s", e.Host, humanize.Bytes(uint64(e.Bytes)))
}

// CanceledError is returned when a cancellation signal aborted the session
// at an I/O boundary.
type CanceledError struct {
	Host string
}

func (e *CanceledError) Error() string { return fmt.Sprintf("canceled: %s", e.Host) }
