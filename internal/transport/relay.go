package transport

import (
	"context"
	"fmt"
	"path/filepath"

	"kosmokopy/internal/endpoint"
	"kosmokopy/internal/hashsum"
	"kosmokopy/internal/sshexec"
	"kosmokopy/internal/xfer"
)

// relayTransfer implements spec §4.5's Remote-remote relay: neither
// remote host can reach the other directly, so the file makes two
// legs through a local staging directory, each leg independently
// verified before the next starts. Only once the upload leg verifies
// does a Move delete the original source file — a failed upload leaves
// the source untouched, preserving the "no source destroyed without a
// verified destination" invariant across both legs, not just the last
// one.
func relayTransfer(ctx context.Context, job Job) (Outcome, error) {
	if job.StagingDir == "" {
		return Outcome{}, fmt.Errorf("relay: no staging directory configured")
	}
	srcClient := endpoint.For(job.Source, job.Reg)
	destClient := endpoint.For(job.Dest, job.Reg)

	stagingPath := filepath.Join(job.StagingDir, newStagingName(filepath.Base(job.DestPath)))
	defer removeIfExists(stagingPath)

	if err := downloadLeg(ctx, job, srcClient, stagingPath); err != nil {
		return Outcome{}, fmt.Errorf("relay download leg %s: %w", job.SourcePath, err)
	}

	if err := uploadLeg(ctx, job, destClient, stagingPath); err != nil {
		return Outcome{}, fmt.Errorf("relay upload leg %s: %w", job.DestPath, err)
	}

	if job.Operation != xfer.Move {
		return Outcome{}, nil
	}
	if err := srcClient.Delete(ctx, job.SourcePath); err != nil {
		return Outcome{}, fmt.Errorf("relay: delete verified source %s: %w", job.SourcePath, err)
	}
	return Outcome{SourceConsumed: true}, nil
}

// downloadLeg pulls job.SourcePath down to the local staging path via
// the selected method's remote-pull variant (scp, or rsync multiplexed
// over the same control master) over the source host's control
// master, then verifies the staged copy against the source's SHA-256
// (a local byte-by-byte compare isn't available since the source
// itself never leaves the remote host).
func downloadLeg(ctx context.Context, job Job, srcClient endpoint.Client, stagingPath string) error {
	host := job.Source.Host
	if err := pullToStaging(ctx, job, host, stagingPath); err != nil {
		removeIfExists(stagingPath)
		return err
	}

	srcSum, err := srcClient.SHA256(ctx, job.SourcePath)
	if err != nil {
		removeIfExists(stagingPath)
		return err
	}
	localSum, err := hashsum.SHA256File(stagingPath)
	if err != nil {
		removeIfExists(stagingPath)
		return err
	}
	if srcSum != localSum {
		removeIfExists(stagingPath)
		return fmt.Errorf("staged copy does not match source checksum")
	}
	return nil
}

// pullToStaging runs one download leg's transfer step, dispatching on
// job.Method exactly as remoteTransfer does: rsync when the request
// picked it, scp otherwise.
func pullToStaging(ctx context.Context, job Job, host, stagingPath string) error {
	if job.Method == xfer.Rsync {
		sock, err := job.Reg.ControlPath(ctx, host)
		if err != nil {
			return err
		}
		args := []string{"-a", "--checksum", "-e", "ssh -o ControlPath=" + sock, host + ":" + job.SourcePath, stagingPath}
		_, err = job.Reg.Run(ctx, host, "rsync", args)
		return err
	}
	srcArg := host + ":" + sshexec.Quote(job.SourcePath)
	_, err := job.Reg.Run(ctx, host, "scp", []string{"-p", srcArg, stagingPath})
	return err
}

// pushFromStaging runs one upload leg's transfer step, dispatching on
// job.Method the same way pullToStaging does.
func pushFromStaging(ctx context.Context, job Job, host, stagingPath string) error {
	if job.Method == xfer.Rsync {
		sock, err := job.Reg.ControlPath(ctx, host)
		if err != nil {
			return err
		}
		args := []string{"-a", "--checksum", "-e", "ssh -o ControlPath=" + sock, stagingPath, host + ":" + job.DestPath}
		_, err = job.Reg.Run(ctx, host, "rsync", args)
		return err
	}
	dstArg := host + ":" + sshexec.Quote(job.DestPath)
	_, err := job.Reg.Run(ctx, host, "scp", []string{"-p", stagingPath, dstArg})
	return err
}

// uploadLeg pushes the verified staging file to job.DestPath on the
// destination host, then verifies the destination's SHA-256 against
// the staging file's own (already confirmed equal to the source by
// downloadLeg, so this transitively proves dest == source).
func uploadLeg(ctx context.Context, job Job, destClient endpoint.Client, stagingPath string) error {
	host := job.Dest.Host
	if err := pushFromStaging(ctx, job, host, stagingPath); err != nil {
		_ = destClient.Delete(ctx, job.DestPath)
		return err
	}

	localSum, err := hashsum.SHA256File(stagingPath)
	if err != nil {
		return err
	}
	destSum, err := destClient.SHA256(ctx, job.DestPath)
	if err != nil {
		_ = destClient.Delete(ctx, job.DestPath)
		return err
	}
	if localSum != destSum {
		_ = destClient.Delete(ctx, job.DestPath)
		return fmt.Errorf("destination does not match staged checksum")
	}
	return nil
}

