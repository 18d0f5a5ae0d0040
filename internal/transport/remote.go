package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"kosmokopy/internal/endpoint"
	"kosmokopy/internal/sshexec"
	"kosmokopy/internal/xfer"
)

// remoteTransfer implements Remote-scp and Remote-rsync (spec §4.5)
// for a Local<->Remote pair in either direction. scp/rsync run once;
// verification always falls back to comparing SHA-256 on both legs,
// since at least one side is remote and a local byte-by-byte compare
// is unavailable there.
func remoteTransfer(ctx context.Context, job Job, srcClient, destClient endpoint.Client) (Outcome, error) {
	host, reg := remoteHost(job)

	switch job.Method {
	case xfer.Rsync:
		if err := remoteRsync(ctx, job, host, reg, destClient); err != nil {
			return Outcome{}, err
		}
	default:
		if err := remoteScp(ctx, job, host, reg, destClient); err != nil {
			return Outcome{}, err
		}
	}

	equal, err := verifyRemote(ctx, srcClient, destClient, job.SourcePath, job.DestPath)
	if err != nil {
		removeRemoteFailure(ctx, job, destClient)
		return Outcome{}, fmt.Errorf("verify %s vs %s: %w", job.SourcePath, job.DestPath, err)
	}
	if !equal {
		removeRemoteFailure(ctx, job, destClient)
		return Outcome{}, fmt.Errorf("verification failed: %s and %s differ after transfer", job.SourcePath, job.DestPath)
	}
	return Outcome{}, nil
}

// remoteHost picks whichever side of the job is Remote, since a
// mixed-direction job always has exactly one.
func remoteHost(job Job) (string, sshexec.Runner) {
	if job.Source.IsRemote() {
		return job.Source.Host, job.Reg
	}
	return job.Dest.Host, job.Reg
}

// remoteScp runs scp over the shared control master. scp's own
// argument form already distinguishes upload ("local remote:path")
// from download ("remote:path local") by which side carries the
// "host:" prefix.
func remoteScp(ctx context.Context, job Job, host string, reg sshexec.Runner, destClient endpoint.Client) error {
	srcArg := scpArg(job.Source, job.SourcePath)
	dstArg := scpArg(job.Dest, job.DestPath)
	if !job.Dest.IsRemote() {
		if err := os.MkdirAll(filepath.Dir(job.DestPath), 0o755); err != nil {
			return fmt.Errorf("ensure dest dir for %s: %w", job.DestPath, err)
		}
	}
	if _, err := reg.Run(ctx, host, "scp", []string{"-p", srcArg, dstArg}); err != nil {
		_ = destClient.Delete(ctx, job.DestPath)
		return fmt.Errorf("scp %s -> %s: %w", srcArg, dstArg, err)
	}
	return nil
}

// remoteRsync runs rsync over the same control master, embedding an
// `-e "ssh -o ControlPath=..."` so it multiplexes rather than opening
// its own connection (spec §4.3 "single ssh session per endpoint").
func remoteRsync(ctx context.Context, job Job, host string, reg sshexec.Runner, destClient endpoint.Client) error {
	sock, err := reg.ControlPath(ctx, host)
	if err != nil {
		return err
	}
	if !job.Dest.IsRemote() {
		if err := os.MkdirAll(filepath.Dir(job.DestPath), 0o755); err != nil {
			return fmt.Errorf("ensure dest dir for %s: %w", job.DestPath, err)
		}
	}
	srcArg := rsyncArg(job.Source, job.SourcePath)
	dstArg := rsyncArg(job.Dest, job.DestPath)
	args := []string{"-a", "--checksum", "-e", "ssh -o ControlPath=" + sock, srcArg, dstArg}
	if _, err := reg.Run(ctx, host, "rsync", args); err != nil {
		_ = destClient.Delete(ctx, job.DestPath)
		return fmt.Errorf("rsync %s -> %s: %w", srcArg, dstArg, err)
	}
	return nil
}

func scpArg(ep xfer.Endpoint, path string) string {
	if ep.IsRemote() {
		return ep.Host + ":" + sshexec.Quote(path)
	}
	return path
}

func rsyncArg(ep xfer.Endpoint, path string) string {
	if ep.IsRemote() {
		return ep.Host + ":" + path
	}
	return path
}

func verifyRemote(ctx context.Context, srcClient, destClient endpoint.Client, srcPath, destPath string) (bool, error) {
	srcSum, err := srcClient.SHA256(ctx, srcPath)
	if err != nil {
		return false, err
	}
	destSum, err := destClient.SHA256(ctx, destPath)
	if err != nil {
		return false, err
	}
	return srcSum == destSum, nil
}

func removeRemoteFailure(ctx context.Context, job Job, destClient endpoint.Client) {
	_ = destClient.Delete(ctx, job.DestPath)
}
