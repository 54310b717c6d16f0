// Package sshsession implements the SSH Session component (spec.md §4.2):
// one interactive shell per device, driven through the Prompt Detector,
// with sanitized output and a strict failure taxonomy. Dial/handshake shape
// is grounded on the brute-force SSH checker in the example pack
// (context-bound net.Dialer + ssh.NewClientConn); the prologue/per-command
// protocol is grounded on original_source/pcng/ssh_client.go's paramiko
// session loop.
package sshsession

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/crypto/ssh"

	"github.com/netcapd/netcapd/internal/credential"
	"github.com/netcapd/netcapd/internal/prompt"
	"github.com/netcapd/netcapd/internal/term"
)

// readDrainInterval is RD from spec.md §4.2.
const readDrainInterval = 250 * time.Millisecond

// Session is one opened SSH shell against one device.
type Session struct {
	host   string
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader

	detector      *prompt.Detector
	promptMatches atomic.Int64
	commandsRun   int

	maxOutputBytes int64

	readCh  chan []byte
	readErr chan error
	closed  atomic.Bool
}

// Open dials host:port, authenticates with cred, and spawns an interactive
// shell (spec.md §4.2 `Open`). connectTimeout bounds the whole dial +
// handshake + shell-request sequence.
func Open(ctx context.Context, host string, port int, cred credential.Credential, connectTimeout time.Duration, maxOutputBytes int64) (*Session, error) {
	start := time.Now()
	addr := fmt.Sprintf("%s:%d", host, port)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		kind := "refused"
		if dialCtx.Err() == context.DeadlineExceeded {
			kind = "timeout"
		}
		return nil, &ConnectError{Host: host, Kind: kind, Elapsed: time.Since(start), Err: err}
	}

	authMethods, err := authMethodsFor(cred)
	if err != nil {
		conn.Close()
		return nil, &ConnectError{Host: host, Kind: "auth", Elapsed: time.Since(start), Err: err}
	}

	deadline, ok := dialCtx.Deadline()
	if !ok {
		deadline = time.Now().Add(connectTimeout)
	}
	conn.SetDeadline(deadline)

	clientConfig := &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	cConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		if isAuthFailure(err) {
			return nil, &AuthError{Host: host, Err: err}
		}
		return nil, &ConnectError{Host: host, Kind: "handshake", Elapsed: time.Since(start), Err: err}
	}
	conn.SetDeadline(time.Time{})

	client := ssh.NewClient(cConn, chans, reqs)

	sshSess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, &ConnectError{Host: host, Kind: "handshake", Elapsed: time.Since(start), Err: err}
	}

	if err := sshSess.RequestPty("vt100", 200, 500, ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}); err != nil {
		sshSess.Close()
		client.Close()
		return nil, &ConnectError{Host: host, Kind: "handshake", Elapsed: time.Since(start), Err: err}
	}

	stdin, err := sshSess.StdinPipe()
	if err != nil {
		sshSess.Close()
		client.Close()
		return nil, &ConnectError{Host: host, Kind: "handshake", Elapsed: time.Since(start), Err: err}
	}
	stdout, err := sshSess.StdoutPipe()
	if err != nil {
		sshSess.Close()
		client.Close()
		return nil, &ConnectError{Host: host, Kind: "handshake", Elapsed: time.Since(start), Err: err}
	}

	if err := sshSess.Shell(); err != nil {
		sshSess.Close()
		client.Close()
		return nil, &ConnectError{Host: host, Kind: "handshake", Elapsed: time.Since(start), Err: err}
	}

	s := &Session{
		host:           host,
		client:         client,
		sess:           sshSess,
		stdin:          stdin,
		stdout:         stdout,
		detector:       prompt.New(),
		maxOutputBytes: maxOutputBytes,
		readCh:         make(chan []byte, 64),
		readErr:        make(chan error, 1),
	}
	go s.pump()

	return s, nil
}

func authMethodsFor(cred credential.Credential) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if cred.HasKey() {
		signer, err := loadKey(cred.KeyPath)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cred.Password != "" {
		methods = append(methods, ssh.Password(cred.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("credential %q has neither key nor password", cred.ID)
	}
	return methods, nil
}

func isAuthFailure(err error) bool {
	_, ok := err.(*ssh.ExitMissingError)
	if ok {
		return false
	}
	return containsAny(err.Error(), "unable to authenticate", "no supported methods remain")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if bytes.Contains([]byte(s), []byte(sub)) {
			return true
		}
	}
	return false
}

// pump continuously reads from stdout into readCh, draining at least every
// readDrainInterval to avoid device-side backpressure (spec.md §4.2,
// "Keepalive and backpressure").
func (s *Session) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.readCh <- chunk:
			default:
				// reader is behind; block until it catches up rather than drop data
				s.readCh <- chunk
			}
		}
		if err != nil {
			s.readErr <- err
			return
		}
	}
}

// RunPrologue issues each prologue command in order, waiting for the prompt
// between each (spec.md §4.2 `RunPrologue`). The first command also serves
// as the probe that adopts the session's expected prompt.
func (s *Session) RunPrologue(ctx context.Context, commands []string, perCmdTimeout time.Duration) error {
	if len(commands) == 0 {
		return s.probe(ctx, perCmdTimeout)
	}
	if err := s.probe(ctx, perCmdTimeout); err != nil {
		return &PrologueError{Host: s.host, Command: "<probe>", Err: err}
	}
	for _, cmd := range commands {
		if _, err := s.runOne(ctx, cmd, perCmdTimeout); err != nil {
			return &PrologueError{Host: s.host, Command: cmd, Err: err}
		}
	}
	return nil
}

// probe sends a newline and waits in probe mode for the device to settle on
// a prompt, per spec.md §4.1.
func (s *Session) probe(ctx context.Context, timeout time.Duration) error {
	if _, err := s.stdin.Write([]byte("\n")); err != nil {
		return &WriteError{Host: s.host, Err: err}
	}

	deadline := time.Now().Add(probeTimeout(timeout))
	for {
		select {
		case <-ctx.Done():
			return &CanceledError{Host: s.host}
		case err := <-s.readErr:
			return &ReadError{Host: s.host, Err: err}
		case chunk := <-s.readCh:
			now := time.Now()
			res := s.detector.Feed(chunk, now)
			if res.Found {
				s.detector.Reset(res.Prompt, 0)
				return nil
			}
		case <-time.After(readDrainInterval):
			now := time.Now()
			res := s.detector.Feed(nil, now)
			if res.Found {
				s.detector.Reset(res.Prompt, 0)
				return nil
			}
			if now.After(deadline) {
				return &PromptTimeoutError{Host: s.host, Elapsed: timeout}
			}
		}
	}
}

func probeTimeout(perCmdTimeout time.Duration) time.Duration {
	if perCmdTimeout > 10*time.Second {
		return 10 * time.Second
	}
	return perCmdTimeout
}

// Execute runs each command in sequence, accumulating sanitized output
// (spec.md §4.2 `Execute`). The aggregate-prompt counter is incremented per
// command as required between commands.
func (s *Session) Execute(ctx context.Context, commands []string, perCmdTimeout, totalTimeout time.Duration) (string, error) {
	deadline := time.Now().Add(totalTimeout)
	var out bytes.Buffer
	for _, cmd := range commands {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return out.String(), &PromptTimeoutError{Host: s.host, Elapsed: totalTimeout}
		}
		cmdTimeout := perCmdTimeout
		if remaining < cmdTimeout {
			cmdTimeout = remaining
		}
		output, err := s.runOne(ctx, cmd, cmdTimeout)
		if err != nil {
			return out.String(), err
		}
		out.WriteString(output)
	}
	return term.StripString(out.String()), nil
}

func (s *Session) runOne(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if _, err := s.stdin.Write([]byte(cmd + "\n")); err != nil {
		return "", &WriteError{Host: s.host, Err: err}
	}
	s.commandsRun++

	var raw bytes.Buffer
	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			return raw.String(), &CanceledError{Host: s.host}
		case err := <-s.readErr:
			return raw.String(), &ReadError{Host: s.host, Err: err}
		case chunk := <-s.readCh:
			raw.Write(chunk)
			if s.maxOutputBytes > 0 && int64(raw.Len()) > s.maxOutputBytes {
				return raw.String(), &OutputTooLargeError{Host: s.host, Bytes: int64(raw.Len())}
			}
			now := time.Now()
			res := s.detector.Feed(chunk, now)
			if res.Found {
				s.promptMatches.Inc()
				return stripCommandEcho(raw.String(), cmd, res.Prompt), nil
			}
		case <-time.After(readDrainInterval):
			now := time.Now()
			res := s.detector.Feed(nil, now)
			if res.Found {
				s.promptMatches.Inc()
				return stripCommandEcho(raw.String(), cmd, res.Prompt), nil
			}
			if now.After(deadline) {
				return raw.String(), &PromptTimeoutError{Host: s.host, Elapsed: timeout, LastBytes: raw.String()}
			}
		}
	}
}

// stripCommandEcho removes the echoed command line from the start of the
// device's reply, and the trailing prompt line that terminated detection
// from its end, per spec.md §4.2's `Execute` contract: only the command's
// own output is returned.
func stripCommandEcho(raw, cmd, prompt string) string {
	clean := term.StripString(raw)
	if idx := indexAfterLine(clean, cmd); idx >= 0 {
		clean = clean[idx:]
	}
	return stripTrailingPrompt(clean, prompt)
}

// stripTrailingPrompt drops a trailing occurrence of prompt, along with the
// line break that separates it from the command's output.
func stripTrailingPrompt(s, prompt string) string {
	if prompt == "" || !strings.HasSuffix(s, prompt) {
		return s
	}
	return strings.TrimRight(s[:len(s)-len(prompt)], "\r\n")
}

func indexAfterLine(s, prefix string) int {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return -1
	}
	for i := len(prefix); i < len(s); i++ {
		if s[i] == '\n' {
			return i + 1
		}
	}
	return -1
}

// PromptMatchStats exposes the aggregate-prompt counter for instrumentation
// (spec.md §9's open question on banner-text false positives).
func (s *Session) PromptMatchStats() int64 {
	return s.promptMatches.Load()
}

// Prompt returns the prompt string the session adopted during probing, or
// "" if no prompt has been observed yet. The Device Runner feeds this into
// the Fingerprint Engine's hostname fallback (spec.md §4.4).
func (s *Session) Prompt() string {
	return s.detector.Expected
}

// SetPromptCount sets how many occurrences of the adopted prompt each
// command adds to the detector's aggregate count (prompt.Detector.Step);
// a count of one is the plain N+1 scheme (spec.md §4.1). Vendor profiles with noisier
// banners (paloalto, cloudgenix) pass a higher count; n <= 0 is a no-op and
// leaves the default of one.
func (s *Session) SetPromptCount(n int) {
	if n > 0 {
		s.detector.Step = n
	}
}

// Close idempotently tears the session and underlying transport down
// (spec.md §4.2 `Close`).
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	var err error
	if s.sess != nil {
		err = s.sess.Close()
	}
	if s.client != nil {
		if cerr := s.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err == io.EOF {
		return nil
	}
	return err
}

func loadKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing key %s: %w", path, err)
	}
	return signer, nil
}
