package sshsession

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netcapd/netcapd/internal/credential"
)

// fakeDevice is a minimal SSH server that behaves like an interactive
// network-device shell: it accepts a pty-req and a shell request, then
// echoes every line it receives back with a fixed "switch#" prompt.
type fakeDevice struct {
	listener net.Listener
	config   *ssh.ServerConfig
}

func startFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	signer, err := ssh.NewSignerFromSigner(priv)
	if err != nil {
		t.Fatalf("building host key signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if meta.User() == "testuser" && string(pass) == "testpass" {
				return nil, nil
			}
			return nil, errors.New("password rejected")
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	d := &fakeDevice{listener: ln, config: config}
	go d.acceptLoop(t)
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *fakeDevice) addr() (string, int) {
	tcpAddr := d.listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", tcpAddr.Port
}

func (d *fakeDevice) acceptLoop(t *testing.T) {
	conn, err := d.listener.Accept()
	if err != nil {
		return
	}
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, d.config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newChannel.Accept()
		if err != nil {
			return
		}
		go handleRequests(requests)
		go serveShell(ch)
	}
}

func handleRequests(requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "pty-req", "shell":
			req.Reply(true, nil)
		default:
			req.Reply(false, nil)
		}
	}
}

// serveShell greets with a bare prompt (what probe() expects), then for
// every subsequent line echoes the command on its own line (as a real
// device's terminal echo does), followed by a response line and the same
// fixed prompt.
func serveShell(ch ssh.Channel) {
	defer ch.Close()
	ch.Write([]byte("\r\nswitch#"))

	scanner := bufio.NewScanner(ch)
	for scanner.Scan() {
		cmd := scanner.Text()
		ch.Write([]byte(cmd + "\r\ndevice response line\r\nswitch#"))
	}
}

func TestOpenRunPrologueAndExecuteAgainstFakeDevice(t *testing.T) {
	device := startFakeDevice(t)
	host, port := device.addr()

	cred := credential.Credential{ID: "test", Username: "testuser", Password: "testpass"}

	sess, err := Open(context.Background(), host, port, cred, 5*time.Second, 1<<20)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sess.Close()

	if err := sess.RunPrologue(context.Background(), nil, 5*time.Second); err != nil {
		t.Fatalf("RunPrologue() error = %v", err)
	}

	out, err := sess.Execute(context.Background(), []string{"show version"}, 5*time.Second, 10*time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out == "" {
		t.Error("Execute() returned empty output")
	}
	if strings.Contains(out, "switch#") {
		t.Errorf("Execute() output retained the trailing prompt: %q", out)
	}
	if strings.Contains(out, "show version") {
		t.Errorf("Execute() output retained the echoed command line: %q", out)
	}
	if !strings.Contains(out, "device response line") {
		t.Errorf("Execute() output = %q, want it to contain the device's response line", out)
	}

	if err := sess.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// Close must be idempotent.
	if err := sess.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestOpenRejectsWrongCredentials(t *testing.T) {
	device := startFakeDevice(t)
	host, port := device.addr()

	cred := credential.Credential{ID: "test", Username: "testuser", Password: "wrong-password"}

	_, err := Open(context.Background(), host, port, cred, 2*time.Second, 1<<20)
	if err == nil {
		t.Fatal("Open() with a wrong password returned no error")
	}
}
