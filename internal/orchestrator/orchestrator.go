// Package orchestrator implements spec §4.6: the sequential per-file
// loop that walks a planner.Result, resolves collisions, dispatches to
// internal/transport, and folds outcomes into a final xfer.Summary.
//
// Grounded on internal/syncdata/runner.go's own "walk the plan and
// dispatch" loop for the overall shape, internal/events (a process-
// global EventBus in the teacher, scoped here to one bus per Engine so
// concurrent runs in the same test binary never cross wires), and
// main.go's context.WithCancel + signal.Notify pattern for teardown on
// every exit path.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/anilsenay/throttle"
	"github.com/asaskevich/EventBus"

	"kosmokopy/internal/collision"
	"kosmokopy/internal/config"
	"kosmokopy/internal/endpoint"
	"kosmokopy/internal/planner"
	"kosmokopy/internal/sshexec"
	"kosmokopy/internal/transport"
	"kosmokopy/internal/xfer"
)

// ProgressTopic is the EventBus topic every Engine publishes
// ProgressEvent values on.
const ProgressTopic = "transfer:progress"

// ProgressEvent is the payload spec §4.6 step 5 requires: how many
// files are done, how many total, and which one is in flight.
// BytesDone/BytesTotal accumulate PlannedFile.SizeHint for files whose
// size was known at plan time (a file with SizeHint -1 contributes 0
// to BytesTotal, so the byte total can under-count; FilesTotal is
// always exact and should drive any correctness decision, BytesTotal
// is display-only).
type ProgressEvent struct {
	FilesDone   int
	FilesTotal  int
	CurrentFile string
	BytesDone   int64
	BytesTotal  int64
	// LastFileDuration is how long the most recently finished file took
	// (TransferOutcome.FinishedAt - StartedAt), display-only.
	LastFileDuration time.Duration
}

// Engine owns the resources a single transfer run needs beyond the
// plan itself: a per-run progress bus, the ambient Config driving
// sshexec's binaries/socket dir, and (lazily) the SSH control master
// registry and relay staging directory.
type Engine struct {
	Bus    EventBus.Bus
	Config config.Config
}

// New creates an Engine with its own event bus and config.Defaults(),
// so two Engines in the same process (e.g. two test cases) never
// observe each other's progress events.
func New() *Engine {
	return NewWithConfig(config.Defaults())
}

// NewWithConfig creates an Engine using cfg instead of the defaults,
// the constructor cmd/root.go uses once it has loaded kosmokopy.yaml.
func NewWithConfig(cfg config.Config) *Engine {
	return &Engine{Bus: EventBus.New(), Config: cfg}
}

// Run executes req to completion or cancellation and returns the
// immutable Summary spec §3 describes. cancel, if non-nil, is polled
// between files (spec §5 "polls a cancellation flag between files").
func (e *Engine) Run(ctx context.Context, req xfer.TransferRequest, cancel *atomic.Bool) (xfer.Summary, error) {
	var reg *sshexec.Registry
	if req.Source.Endpoint.IsRemote() || req.Destination.IsRemote() {
		var err error
		reg, err = sshexec.NewRegistry(e.Config.SSHBinary, e.Config.ScpBinary, e.Config.RsyncBinary, e.Config.SocketDir)
		if err != nil {
			return xfer.Summary{Status: xfer.StatusError}, fmt.Errorf("orchestrator: open control master registry: %w", err)
		}
		defer reg.Close()
	}

	srcClient := endpoint.For(req.Source.Endpoint, reg)
	destClient := endpoint.For(req.Destination, reg)

	plan, err := planner.Plan(ctx, req, srcClient)
	if err != nil {
		return xfer.Summary{Status: xfer.StatusError}, fmt.Errorf("orchestrator: %w", err)
	}

	var stagingDir string
	if req.Source.Endpoint.IsRemote() && req.Destination.IsRemote() {
		stagingDir, err = os.MkdirTemp("", "kosmokopy-relay-*")
		if err != nil {
			return xfer.Summary{Status: xfer.StatusError}, fmt.Errorf("orchestrator: create relay staging dir: %w", err)
		}
		defer os.RemoveAll(stagingDir)
	}

	summary := xfer.Summary{Status: xfer.StatusFinished}
	for _, exc := range plan.Excluded {
		if exc.Reason == xfer.ReasonInExcludedDir {
			summary.ExcludedDirs++
		} else {
			summary.ExcludedFiles++
		}
	}

	limiter := throttle.New(50 * time.Millisecond)
	total := len(plan.Files)
	var bytesTotal int64
	for _, file := range plan.Files {
		if file.SizeHint > 0 {
			bytesTotal += file.SizeHint
		}
	}
	var bytesDone int64
	emit := func(done int, name string, lastDur time.Duration) {
		event := ProgressEvent{FilesDone: done, FilesTotal: total, CurrentFile: name, BytesDone: bytesDone, BytesTotal: bytesTotal, LastFileDuration: lastDur}
		if done == total {
			e.Bus.Publish(ProgressTopic, event)
			return
		}
		limiter.Do(func() { e.Bus.Publish(ProgressTopic, event) })
	}

	for i, file := range plan.Files {
		if cancel != nil && cancel.Load() {
			summary.Status = xfer.StatusCancelled
			break
		}

		startedAt := time.Now()
		outcome := e.processFile(ctx, req, file, srcClient, destClient, reg, stagingDir)
		outcome.StartedAt, outcome.FinishedAt = startedAt, time.Now()
		switch outcome.Kind {
		case xfer.OutcomeCopied, xfer.OutcomeMoved, xfer.OutcomeRenamed:
			summary.Copied++
			if file.SizeHint > 0 {
				bytesDone += file.SizeHint
			}
		case xfer.OutcomeSkipped:
			summary.Skipped = append(summary.Skipped, xfer.SkippedEntry{Path: file.SourcePath, Reason: outcome.Reason})
		case xfer.OutcomeFailed:
			summary.Errors = append(summary.Errors, outcome.String())
		}

		emit(i+1, filepath.Base(file.SourcePath), outcome.FinishedAt.Sub(outcome.StartedAt))
	}

	return summary, nil
}

// processFile runs spec §4.6 steps 1-4 for a single planned file.
func (e *Engine) processFile(
	ctx context.Context,
	req xfer.TransferRequest,
	file xfer.PlannedFile,
	srcClient, destClient endpoint.Client,
	reg *sshexec.Registry,
	stagingDir string,
) xfer.TransferOutcome {
	destDir := destDirFor(req.Destination, file.DestRelPath)
	if !req.DryRun {
		if err := destClient.EnsureDir(ctx, destDir); err != nil {
			return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeFailed, Err: fmt.Errorf("ensure dest dir %s: %w", destDir, err), SourceKept: true}
		}
	}

	res, err := collision.Resolve(ctx, srcClient, file.SourcePath, destClient, req.Destination.Root, file.DestRelPath, req.Destination.IsRemote(), req.Conflict)
	if err != nil {
		return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeFailed, Err: err, SourceKept: true}
	}

	switch res.Decision {
	case collision.SkipDifferent:
		return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeSkipped, Reason: xfer.ReasonDifferentVersion, SourceKept: true}

	case collision.AlreadyIdentical:
		if req.Operation != xfer.Move {
			return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeSkipped, Reason: xfer.ReasonIdentical, SourceKept: true}
		}
		if req.DryRun {
			return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeMoved, SourceKept: true}
		}
		if err := srcClient.Delete(ctx, file.SourcePath); err != nil {
			return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeMoved, SourceKept: true}
		}
		return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeMoved}

	case collision.Proceed:
		isMove := req.Operation == xfer.Move
		if req.DryRun {
			// Report the outcome a real run would produce without
			// dispatching to transport or touching the source file.
			return moveOutcome(file, res, req.Destination, isMove, true)
		}

		job := transport.Job{
			Source:     req.Source.Endpoint,
			Dest:       req.Destination,
			SourcePath: file.SourcePath,
			DestPath:   res.FinalPath,
			Operation:  req.Operation,
			Method:     req.Method,
			Reg:        reg,
			StagingDir: stagingDir,
		}
		out, xerr := transport.Execute(ctx, job)
		if xerr != nil {
			return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeFailed, Err: xerr, SourceKept: true}
		}

		sourceKept := !isMove
		if isMove {
			switch {
			case out.SourceConsumed:
				sourceKept = false
			default:
				// Destination is verified and safe; if deletion fails the
				// source is merely stale, not destructive, and the outcome
				// stays Moved (spec §4.6 step 4).
				sourceKept = srcClient.Delete(ctx, file.SourcePath) != nil
			}
		}
		return moveOutcome(file, res, req.Destination, isMove, sourceKept)

	default:
		return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeFailed, Err: fmt.Errorf("orchestrator: unknown collision decision"), SourceKept: true}
	}
}

// moveOutcome picks Copied/Moved/Renamed for a successful transport
// dispatch, naming the outcome Renamed whenever the resolver picked a
// path other than the file's natural destination.
func moveOutcome(file xfer.PlannedFile, res collision.Resolution, dest xfer.Endpoint, isMove, sourceKept bool) xfer.TransferOutcome {
	natural := destPath(dest, file.DestRelPath)
	if res.FinalPath != natural {
		return xfer.TransferOutcome{File: file, Kind: xfer.OutcomeRenamed, FinalName: baseName(res.FinalPath, dest.IsRemote()), SourceKept: sourceKept}
	}
	kind := xfer.OutcomeCopied
	if isMove {
		kind = xfer.OutcomeMoved
	}
	return xfer.TransferOutcome{File: file, Kind: kind, SourceKept: sourceKept}
}

func destPath(ep xfer.Endpoint, rel string) string {
	if ep.IsRemote() {
		return path.Join(ep.Root, filepath.ToSlash(rel))
	}
	return filepath.Join(ep.Root, rel)
}

func destDirFor(ep xfer.Endpoint, rel string) string {
	full := destPath(ep, rel)
	if ep.IsRemote() {
		return path.Dir(full)
	}
	return filepath.Dir(full)
}

func baseName(p string, remote bool) string {
	if remote {
		return path.Base(p)
	}
	return filepath.Base(p)
}
