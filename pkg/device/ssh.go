package device

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/TitouanDH/BLab/pkg/metrics"
)

// sshTimeout bounds the TCP dial; command execution itself is bounded
// by the caller's context.
const sshTimeout = 10 * time.Second

// Exec runs a shell command on the device over SSH and returns the
// combined output. A fresh connection is made per call; the recovery
// commands these serve are rare enough that pooling is not worth the
// state.
func (g *Gateway) Exec(ctx context.Context, addr, cmd string) (output string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveDeviceCommand(addr, start, err) }()

	client, err := g.dialSSH(ctx, addr)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", newError(addr, cmd, err.Error(), ErrUnreachable)
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)
	if err != nil {
		return string(out), newError(addr, cmd, err.Error(), ErrCommandRejected)
	}
	return string(out), nil
}

// ExecPTY runs a command that insists on an interactive terminal, such
// as reload, feeding it the given input. Output is best effort: the
// device usually drops the connection mid-command.
func (g *Gateway) ExecPTY(ctx context.Context, addr, cmd, input string) (output string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveDeviceCommand(addr, start, err) }()

	client, err := g.dialSSH(ctx, addr)
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", newError(addr, cmd, err.Error(), ErrUnreachable)
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", 80, 40, modes); err != nil {
		return "", newError(addr, cmd, "pty request: "+err.Error(), ErrCommandRejected)
	}

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	session.Stdin = bytes.NewBufferString(input)

	// The session often ends with the transport torn down under us, so
	// the run error is informational only.
	if err := session.Run(cmd); err != nil {
		return out.String(), nil
	}
	return out.String(), nil
}

// PushFile writes content to path on the device. AOS images lack sftp,
// so the file goes through a remote shell redirect.
func (g *Gateway) PushFile(ctx context.Context, addr, path, content string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveDeviceCommand(addr, start, err) }()

	client, err := g.dialSSH(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return newError(addr, "", err.Error(), ErrUnreachable)
	}
	defer session.Close()

	session.Stdin = bytes.NewBufferString(content)
	cmd := fmt.Sprintf("cat > '%s'", path)
	if out, err := session.CombinedOutput(cmd); err != nil {
		return newError(addr, cmd, string(out), ErrCommandRejected)
	}
	return nil
}

func (g *Gateway) dialSSH(ctx context.Context, addr string) (*ssh.Client, error) {
	cfg := &ssh.ClientConfig{
		User:            g.username,
		Auth:            []ssh.AuthMethod{ssh.Password(g.password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshTimeout,
	}

	hostport := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		hostport = net.JoinHostPort(addr, "22")
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < cfg.Timeout {
			cfg.Timeout = remaining
		}
	}

	client, err := ssh.Dial("tcp", hostport, cfg)
	if err != nil {
		return nil, newError(addr, "", err.Error(), ErrUnreachable)
	}
	return client, nil
}
