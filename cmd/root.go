// Package cmd is the headless CLI surface spec §6 describes: a single
// cobra command tree around internal/orchestrator, offering both a
// `--cli` JSON-on-stdout path and an interactive bubbletea progress
// display.
//
// Grounded on the teacher's cmd/root.go for the overall
// cobra.Command{Use, Short, Long, RunE} shape and flag-binding style
// (Flags().StringVar/BoolVar), trimmed of every menu-driven,
// devsync-session-specific command (init/exec/path-info/data) that has
// no SPEC_FULL.md equivalent.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kosmokopy/internal/config"
	"kosmokopy/internal/hashsum"
	"kosmokopy/internal/orchestrator"
	"kosmokopy/internal/progressui"
	"kosmokopy/internal/xfer"
)

var flags struct {
	cli         bool
	src         string
	dst         string
	srcFiles    string
	move        bool
	conflict    string
	stripSpaces bool
	mode        string
	method      string
	exclude     []string
	excludeDir  []string
	dryRun      bool
}

var rootCmd = &cobra.Command{
	Use:   "kosmokopy",
	Short: "Verified file-transfer engine",
	Long: `Kosmokopy moves or copies files between a local filesystem and
SSH-reachable remote hosts, verifying every transfer byte-for-byte or
by SHA-256 before ever deleting a source file.`,
	RunE: runTransfer,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&flags.cli, "cli", false, "run headlessly and print a single JSON summary line")
	f.StringVar(&flags.src, "src", "", "source path: local path, or host:/remote/path")
	f.StringVar(&flags.dst, "dst", "", "destination path: local path, or host:/remote/path")
	f.StringVar(&flags.srcFiles, "src-files", "", "comma-separated explicit file list under --src, instead of the whole tree")
	f.BoolVar(&flags.move, "move", false, "delete each source file once its copy is verified")
	f.StringVar(&flags.conflict, "conflict", "skip", "collision policy: skip|overwrite|rename")
	f.BoolVar(&flags.stripSpaces, "strip-spaces", false, "replace spaces with underscores in destination path components")
	f.StringVar(&flags.mode, "mode", "folders", "destination layout: files|folders")
	f.StringVar(&flags.method, "method", "standard", "transport method: standard|rsync")
	f.StringSliceVar(&flags.exclude, "exclude", nil, "exclude files matching this name/glob pattern (repeatable)")
	f.StringSliceVar(&flags.excludeDir, "exclude-dir", nil, "exclude directories matching this name/glob pattern (repeatable)")
	f.BoolVar(&flags.dryRun, "dry-run", false, "plan and resolve collisions but don't transfer or delete anything")
}

// exitCode is set by runTransfer on a clean run and read by main.go
// after ExecuteContext returns, so the process can restore terminal
// state before exiting instead of os.Exit-ing mid-command.
var exitCode = 1

// ExecuteContext runs the command tree under ctx, the same entry point
// main.go's signal-handling goroutine calls, and returns the process
// exit code spec §6 defines (0 clean, 1 catastrophic, 2 per-file
// errors).
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode
	}
	return exitCode
}

func runTransfer(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	hashsum.SetChunkSize(cfg.HashChunkBytes)

	ctx := cmd.Context()
	var cancel atomic.Bool
	// main.go cancels ctx on SIGINT/SIGTERM; bridge that into the
	// cooperative flag the orchestrator polls between files (spec §5).
	go func() {
		<-ctx.Done()
		cancel.Store(true)
	}()
	eng := orchestrator.NewWithConfig(cfg)

	var summary xfer.Summary
	if flags.cli || !term.IsTerminal(int(os.Stdout.Fd())) {
		summary, err = eng.Run(ctx, req, &cancel)
	} else {
		summary, err = progressui.Run(ctx, eng, req, &cancel)
	}
	if err != nil {
		return err
	}

	printSummary(summary)
	exitCode = summary.ExitCode()
	return nil
}

// buildRequest parses the flag surface into the one TransferRequest
// the engine accepts (spec §6's flag table).
func buildRequest() (xfer.TransferRequest, error) {
	if flags.src == "" || flags.dst == "" {
		return xfer.TransferRequest{}, fmt.Errorf("--src and --dst are required")
	}

	srcEndpoint, err := parseEndpoint(flags.src)
	if err != nil {
		return xfer.TransferRequest{}, fmt.Errorf("--src: %w", err)
	}
	dstEndpoint, err := parseEndpoint(flags.dst)
	if err != nil {
		return xfer.TransferRequest{}, fmt.Errorf("--dst: %w", err)
	}

	conflict, ok := xfer.ParseConflictPolicy(flags.conflict)
	if !ok {
		return xfer.TransferRequest{}, fmt.Errorf("--conflict: unknown policy %q", flags.conflict)
	}

	layout := xfer.PreserveFolders
	switch flags.mode {
	case "", "folders":
		layout = xfer.PreserveFolders
	case "files":
		layout = xfer.FilesOnly
	default:
		return xfer.TransferRequest{}, fmt.Errorf("--mode: unknown layout %q", flags.mode)
	}

	method := xfer.Standard
	switch flags.method {
	case "", "standard":
		method = xfer.Standard
	case "rsync":
		method = xfer.Rsync
	default:
		return xfer.TransferRequest{}, fmt.Errorf("--method: unknown method %q", flags.method)
	}

	op := xfer.Copy
	if flags.move {
		op = xfer.Move
	}

	var srcFiles []string
	if flags.srcFiles != "" {
		srcFiles = splitCSV(flags.srcFiles)
	}

	return xfer.TransferRequest{
		Source:      xfer.SourceSpec{Endpoint: srcEndpoint, Files: srcFiles},
		Destination: dstEndpoint,
		Operation:   op,
		Layout:      layout,
		Method:      method,
		Conflict:    conflict,
		Exclusions:  xfer.NewExclusions(nil, nil, flags.excludeDir, flags.exclude),
		StripSpaces: flags.stripSpaces,
		DryRun:      flags.dryRun,
	}, nil
}

// parseEndpoint recognizes spec §3's "host:/path" remote form; any
// other string is a local path. A Windows-style local path like
// "C:\foo" also contains a colon, so only a colon with more than one
// character before it is treated as a remote host prefix.
func parseEndpoint(spec string) (xfer.Endpoint, error) {
	if idx := strings.Index(spec, ":"); idx > 1 {
		host, path := spec[:idx], spec[idx+1:]
		if path == "" {
			return xfer.Endpoint{}, fmt.Errorf("remote path missing after %q", host)
		}
		return xfer.Endpoint{Kind: xfer.KindRemote, Host: host, Root: path}, nil
	}
	if spec == "" {
		return xfer.Endpoint{}, fmt.Errorf("empty path")
	}
	return xfer.Endpoint{Kind: xfer.KindLocal, Root: spec}, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// printSummary emits the exact one-line JSON schema spec §6 requires.
func printSummary(s xfer.Summary) {
	type skippedJSON struct {
		Path   string `json:"path"`
		Reason string `json:"reason"`
	}
	skipped := make([]skippedJSON, len(s.Skipped))
	for i, sk := range s.Skipped {
		skipped[i] = skippedJSON{Path: sk.Path, Reason: sk.Reason.String()}
	}
	out := struct {
		Status        string        `json:"status"`
		Copied        int           `json:"copied"`
		Skipped       []skippedJSON `json:"skipped"`
		ExcludedFiles int           `json:"excluded_files"`
		ExcludedDirs  int           `json:"excluded_dirs"`
		Errors        []string      `json:"errors"`
	}{
		Status:        string(s.Status),
		Copied:        s.Copied,
		Skipped:       skipped,
		ExcludedFiles: s.ExcludedFiles,
		ExcludedDirs:  s.ExcludedDirs,
		Errors:        s.Errors,
	}
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(out)
}
