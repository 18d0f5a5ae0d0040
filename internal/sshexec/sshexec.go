// Package sshexec owns the one thing every remote-touching component
// needs: a captured, non-inherited subprocess invocation of ssh/scp/
// rsync, and the per-host control-master connection those subprocesses
// multiplex over (spec §4.3, design note "Control-master lifetime").
//
// Modeled on internal/sshforward's pattern of wrapping
// exec.CommandContext("ssh", ...) with piped (never inherited)
// stdout/stderr and a registry of live subprocesses torn down on every
// exit path.
package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Result is the captured outcome of one subprocess invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner is the subset of Registry's behavior every remote-touching
// caller (internal/endpoint, internal/transport) actually depends on.
// Tests substitute a fake Runner instead of a real control master to
// cover remote/relay code paths without an SSH daemon on hand.
type Runner interface {
	Run(ctx context.Context, host, prog string, args []string) (Result, error)
	RunCommand(ctx context.Context, host, command string) (string, error)
	ControlPath(ctx context.Context, host string) (string, error)
}

var _ Runner = (*Registry)(nil)

// Registry owns one control-master socket per host for the lifetime
// of an engine run. Opened lazily on first use, closed on every exit
// path (success, error, cancellation, panic) via Close.
type Registry struct {
	mu      sync.Mutex
	sockDir string
	sockets map[string]string // host -> control socket path

	sshBinary, scpBinary, rsyncBinary string
}

// NewRegistry creates a registry rooted at a fresh subdirectory of
// socketDir (created if missing) for control sockets, invoking the
// given ssh/scp/rsync binaries (internal/config's SSHBinary/ScpBinary/
// RsyncBinary/SocketDir). Callers must call Close when the run ends.
func NewRegistry(sshBinary, scpBinary, rsyncBinary, socketDir string) (*Registry, error) {
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return nil, fmt.Errorf("sshexec: ensure socket dir %s: %w", socketDir, err)
	}
	dir, err := os.MkdirTemp(socketDir, "run-*")
	if err != nil {
		return nil, fmt.Errorf("sshexec: create control socket dir under %s: %w", socketDir, err)
	}
	return &Registry{
		sockDir:     dir,
		sockets:     map[string]string{},
		sshBinary:   sshBinary,
		scpBinary:   scpBinary,
		rsyncBinary: rsyncBinary,
	}, nil
}

// socketFor returns the control socket path for host, opening the
// master connection on first use.
func (r *Registry) socketFor(ctx context.Context, host string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sock, ok := r.sockets[host]; ok {
		return sock, nil
	}

	sock := filepath.Join(r.sockDir, sanitizeHost(host)+".sock")
	args := []string{"-M", "-N", "-f", "-o", "ControlMaster=auto", "-o", "ControlPersist=yes", "-S", sock, host}
	cmd := exec.CommandContext(ctx, r.sshBinary, args...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("sshexec: open control master for %s: %w (%s)", host, err, stderr.String())
	}
	r.sockets[host] = sock
	return sock, nil
}

// Close tears down every control master this registry opened, in the
// order spec §5 requires ("all exit paths release the socket"), and
// removes the staging directory for the sockets themselves.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for host, sock := range r.sockets {
		cmd := exec.Command(r.sshBinary, "-S", sock, "-O", "exit", host)
		_ = cmd.Run()
	}
	r.sockets = map[string]string{}
	_ = os.RemoveAll(r.sockDir)
}

// Run executes prog with args over the control master for host,
// capturing (never inheriting) stdout/stderr per spec §9 "Subprocess
// discipline". For prog == "ssh" the remote command is the last
// argument; for "scp"/"rsync" callers pass the full argument list and
// Run only adds the multiplexing options.
func (r *Registry) Run(ctx context.Context, host, prog string, args []string) (Result, error) {
	sock, err := r.socketFor(ctx, host)
	if err != nil {
		return Result{}, err
	}

	var full []string
	bin := prog
	switch prog {
	case "ssh":
		bin = r.sshBinary
		full = append([]string{"-S", sock}, args...)
	case "scp":
		bin = r.scpBinary
		full = append([]string{"-o", "ControlPath=" + sock}, args...)
	case "rsync":
		bin = r.rsyncBinary
		full = args // caller embeds -e "ssh -o ControlPath=..." directly
	default:
		full = args
	}

	cmd := exec.CommandContext(ctx, bin, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return res, fmt.Errorf("sshexec: %s %s: %w (%s)", prog, strings.Join(args, " "), err, stderr.String())
	}
	return res, nil
}

// RunCommand runs a single shell command on host via the control
// master and returns its trimmed stdout.
func (r *Registry) RunCommand(ctx context.Context, host, command string) (string, error) {
	res, err := r.Run(ctx, host, "ssh", []string{host, command})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(res.Stdout, "\n"), nil
}

// ControlPath exposes the multiplexing socket for host so a caller
// building a raw "rsync -e ssh..." argument list can embed it.
func (r *Registry) ControlPath(ctx context.Context, host string) (string, error) {
	return r.socketFor(ctx, host)
}

func sanitizeHost(s string) string {
	return strings.Map(func(rn rune) rune {
		switch {
		case rn >= 'a' && rn <= 'z', rn >= 'A' && rn <= 'Z', rn >= '0' && rn <= '9':
			return rn
		case rn == '.' || rn == '-' || rn == '_':
			return rn
		default:
			return '_'
		}
	}, s)
}

// Quote single-quotes path for safe substitution into a remote shell
// command string (spec §4.3 "All remote paths are shell-quoted").
func Quote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
