// Package transport implements spec §4.5's four transport workers
// plus the remote→remote relay, behind one dispatcher. Every worker
// shares the same post-condition: on success the destination exists
// and has been verified equal to the source; on failure no partial
// destination file remains (the worker removes it before returning).
//
// Grounded on internal/sshforward.go's subprocess-capture pattern
// (every rsync/scp child process goes through internal/sshexec, never
// inheriting stdio) and on the teacher's own split between local and
// SSH execution paths (internal/devsync/command_local.go vs
// command_remote.go) for the Standard-local vs remote dispatch shape.
package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"kosmokopy/internal/endpoint"
	"kosmokopy/internal/hashsum"
	"kosmokopy/internal/sshexec"
	"kosmokopy/internal/xfer"
)

// Job is the concrete (source file, destination file) pair a worker
// transfers and verifies, plus everything it needs to pick a strategy.
type Job struct {
	Source     xfer.Endpoint
	Dest       xfer.Endpoint
	SourcePath string // absolute on Source
	DestPath   string // absolute final path on Dest (post collision-resolution)
	Operation  xfer.Operation
	Method     xfer.Method
	Reg        sshexec.Runner // shared control-master registry; nil if no remote leg
	StagingDir string            // relay staging dir; empty unless Source and Dest are both Remote
}

// Outcome reports side effects a worker already performed so the
// orchestrator doesn't repeat them.
type Outcome struct {
	// SourceConsumed is true when the worker's own strategy already
	// disposed of the source file as part of a successful Move (the
	// same-device rename optimization, or the relay's own final-leg
	// source deletion) — the orchestrator's generic "delete source on
	// Move success" step must be skipped.
	SourceConsumed bool
}

// Execute dispatches job to the correct worker per spec §4.5/§2.4 and
// runs it to completion, including verification.
func Execute(ctx context.Context, job Job) (Outcome, error) {
	srcClient := endpoint.For(job.Source, job.Reg)
	destClient := endpoint.For(job.Dest, job.Reg)

	switch {
	case !job.Source.IsRemote() && !job.Dest.IsRemote():
		return localTransfer(ctx, job, srcClient, destClient)
	case job.Source.IsRemote() && job.Dest.IsRemote():
		return relayTransfer(ctx, job)
	default:
		return remoteTransfer(ctx, job, srcClient, destClient)
	}
}

// streamCopy performs a plain byte-for-byte copy, truncating dst if it
// exists (collision resolution already granted permission by the time
// a worker sees this path — either it didn't exist, or Overwrite/Rename
// made it safe to write).
func streamCopy(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	if mkErr := os.MkdirAll(filepath.Dir(dst), 0o755); mkErr != nil {
		return fmt.Errorf("ensure dest dir for %s: %w", dst, mkErr)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create dest %s: %w", dst, err)
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, hashsum.ChunkSize)
	if _, err = io.CopyBuffer(out, in, buf); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// removeIfExists is the "no partial destination file" cleanup every
// failure path runs before returning its error.
func removeIfExists(path string) {
	_ = os.Remove(path)
}

func newStagingName(basename string) string {
	return uuid.NewString() + "-" + basename
}
