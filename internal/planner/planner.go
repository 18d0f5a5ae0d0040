// Package planner implements spec §4.2: enumerate source files, apply
// the four-step exclusion order, and compute each survivor's
// destination-relative path. It never touches the destination side —
// collision handling is internal/collision's job.
//
// Grounded on the teacher's internal/syncdata/include_upload.go and
// manualtransfer.go (walking a local tree while building a file
// manifest) for the local enumeration shape, and on
// internal/syncdata.IgnoreCache's ancestor-directory walk (ignore.go)
// for how to test "does any ancestor directory name match a pattern"
// without re-deriving that from scratch — minus the cascading-merge
// machinery that package needs for gitignore-style negation, which
// spec §4.2's fixed four-step order has no use for.
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kosmokopy/internal/endpoint"
	"kosmokopy/internal/pattern"
	"kosmokopy/internal/xfer"
)

// candidate is one enumerated file before exclusion/destination
// resolution.
type candidate struct {
	path     string // absolute, on the source endpoint
	sizeHint int64  // -1 if unknown
}

// Result is the planner's output: survivors ready for the
// orchestrator, plus the outcomes already decided (Excluded) so the
// caller can fold them straight into the Summary without the
// orchestrator re-deriving exclusion reasons.
type Result struct {
	Files    []xfer.PlannedFile
	Excluded []xfer.TransferOutcome
}

// Plan enumerates req's source, applies exclusions, and computes
// destination-relative paths.
func Plan(ctx context.Context, req xfer.TransferRequest, src endpoint.Client) (Result, error) {
	candidates, sourceRoot, isExplicitList, err := enumerate(ctx, req, src)
	if err != nil {
		return Result{}, fmt.Errorf("planner: enumerate: %w", err)
	}

	var res Result
	for _, c := range candidates {
		excludedKind, reason, detail := checkExclusions(req.Exclusions, sourceRoot, c.path)
		pf := xfer.PlannedFile{SourcePath: c.path, SizeHint: c.sizeHint}
		if excludedKind {
			res.Excluded = append(res.Excluded, xfer.TransferOutcome{
				File:       pf,
				Kind:       xfer.OutcomeExcluded,
				Reason:     reason,
				Detail:     detail,
				SourceKept: true,
			})
			continue
		}

		pf.DestRelPath = destRelPath(req.Layout, sourceRoot, c.path, isExplicitList)
		if req.StripSpaces {
			pf.DestRelPath = stripSpaces(pf.DestRelPath)
		}
		res.Files = append(res.Files, pf)
	}

	// Stable, deterministic order: source-enumeration order per spec
	// §5 "progress events are emitted in source-enumeration order".
	// enumerate() already returns depth-first/listing order; we only
	// guard against nondeterministic remote `find`/`ls` ordering here.
	if req.Source.Endpoint.IsRemote() && !isExplicitList {
		sort.SliceStable(res.Files, func(i, j int) bool { return res.Files[i].SourcePath < res.Files[j].SourcePath })
	}

	return res, nil
}

func enumerate(ctx context.Context, req xfer.TransferRequest, src endpoint.Client) (candidates []candidate, sourceRoot string, explicitList bool, err error) {
	sourceRoot = req.Source.Endpoint.Root

	if len(req.Source.Files) > 0 {
		explicitList = true
		for _, p := range req.Source.Files {
			size, ok, serr := src.Size(ctx, p)
			if serr != nil {
				return nil, sourceRoot, true, fmt.Errorf("stat %s: %w", p, serr)
			}
			if !ok {
				return nil, sourceRoot, true, fmt.Errorf("source file does not exist: %s", p)
			}
			candidates = append(candidates, candidate{path: p, sizeHint: size})
		}
		return candidates, sourceRoot, true, nil
	}

	if !req.Source.Endpoint.IsRemote() {
		err = filepath.WalkDir(sourceRoot, func(path string, d os.DirEntry, werr error) error {
			if werr != nil {
				return werr
			}
			if d.Type().IsRegular() {
				size := int64(-1)
				if info, ierr := d.Info(); ierr == nil {
					size = info.Size()
				}
				candidates = append(candidates, candidate{path: path, sizeHint: size})
			}
			return nil
		})
		if err != nil {
			return nil, sourceRoot, false, err
		}
		return candidates, sourceRoot, false, nil
	}

	files, ferr := src.FindFiles(ctx, sourceRoot)
	if ferr != nil {
		return nil, sourceRoot, false, ferr
	}
	for _, f := range files {
		candidates = append(candidates, candidate{path: f, sizeHint: -1})
	}
	return candidates, sourceRoot, false, nil
}

// checkExclusions applies spec §4.2's four-step, first-match-wins
// order. sourceRoot bounds the ancestor walk so we never inspect
// directories above the source.
func checkExclusions(ex xfer.Exclusions, sourceRoot, path string) (excluded bool, reason xfer.SkipReason, detail string) {
	dir := filepath.Dir(path)

	// Step 1: exact excluded directory anywhere in the chain.
	for cur := dir; ; {
		if _, ok := ex.ExactDirs[cur]; ok {
			return true, xfer.ReasonInExcludedDir, cur
		}
		if cur == sourceRoot || cur == string(filepath.Separator) {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	// Step 2: any ancestor directory's own name matches a directory pattern.
	for cur := dir; ; {
		name := filepath.Base(cur)
		if ok, p := pattern.MatchesAny(ex.DirPatterns, name); ok {
			return true, xfer.ReasonMatchedPattern, p
		}
		if cur == sourceRoot || cur == string(filepath.Separator) {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	base := filepath.Base(path)

	// Step 3: exact file-name exclusion.
	if _, ok := ex.ExactFiles[base]; ok {
		return true, xfer.ReasonMatchedPattern, base
	}

	// Step 4: file-name pattern.
	if ok, p := pattern.MatchesAny(ex.FilePatterns, base); ok {
		return true, xfer.ReasonMatchedPattern, p
	}

	return false, 0, ""
}

func destRelPath(layout xfer.Layout, sourceRoot, path string, explicitList bool) string {
	if layout == xfer.FilesOnly {
		return filepath.Base(path)
	}
	if explicitList {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

func stripSpaces(relPath string) string {
	parts := strings.Split(relPath, string(filepath.Separator))
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, " ", "_")
	}
	return strings.Join(parts, string(filepath.Separator))
}
