// Package collision implements spec §4.4: given an intended
// destination and a policy, decide whether to proceed (optionally at a
// renamed path), skip, or treat the file as already identical.
package collision

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"kosmokopy/internal/endpoint"
	"kosmokopy/internal/hashsum"
	"kosmokopy/internal/xfer"
)

// Decision is the resolver's verdict for one planned file.
type Decision int

const (
	Proceed Decision = iota
	AlreadyIdentical
	SkipDifferent
)

// Resolution is the resolver's full answer: what to do, and — for
// Proceed — the final destination path and whether overwrite
// permission was granted (policy was Overwrite and a prior file
// occupied that path).
type Resolution struct {
	Decision            Decision
	FinalPath           string
	OverwritePermission bool
}

// Resolve implements spec §4.4's four-step decision procedure.
// srcClient/srcPath identify the source side for the equality test;
// destClient/destRoot+destRelPath identify the intended destination.
// destIsRemote selects remote path joining for the destination; the
// equality test uses SHA-256 instead of byte-by-byte whenever either
// endpoint is Remote (per spec §4.4 step 2).
func Resolve(
	ctx context.Context,
	srcClient endpoint.Client, srcPath string,
	destClient endpoint.Client, destRoot, destRelPath string, destIsRemote bool,
	policy xfer.ConflictPolicy,
) (Resolution, error) {
	destPath := joinPath(destRoot, destRelPath, destIsRemote)

	exists, err := destClient.Exists(ctx, destPath)
	if err != nil {
		return Resolution{}, fmt.Errorf("collision: probe %s: %w", destPath, err)
	}
	if !exists {
		return Resolution{Decision: Proceed, FinalPath: destPath}, nil
	}

	_, srcIsRemote := srcClient.(*endpoint.Remote)
	equal, err := filesEqual(ctx, srcClient, srcPath, destClient, destPath, destIsRemote || srcIsRemote)
	if err != nil {
		return Resolution{}, fmt.Errorf("collision: equality test %s vs %s: %w", srcPath, destPath, err)
	}
	if equal {
		return Resolution{Decision: AlreadyIdentical, FinalPath: destPath}, nil
	}

	switch policy {
	case xfer.Skip:
		return Resolution{Decision: SkipDifferent, FinalPath: destPath}, nil
	case xfer.Overwrite:
		return Resolution{Decision: Proceed, FinalPath: destPath, OverwritePermission: true}, nil
	case xfer.Rename:
		renamed, rerr := firstFreeName(ctx, destClient, destRoot, destRelPath, destIsRemote)
		if rerr != nil {
			return Resolution{}, fmt.Errorf("collision: rename probe: %w", rerr)
		}
		return Resolution{Decision: Proceed, FinalPath: renamed}, nil
	default:
		return Resolution{}, fmt.Errorf("collision: unknown policy %v", policy)
	}
}

// filesEqual implements spec §4.4 step 2: size mismatch short-circuits
// to unequal; remote legs compare SHA-256; an all-local comparison
// runs the cheap xxhash pre-check (design note, §4.4 DOMAIN STACK)
// before falling back to the byte-by-byte compare that is the only
// thing actually allowed to conclude "equal" (xxhash is not
// collision-proof).
func filesEqual(ctx context.Context, srcClient endpoint.Client, srcPath string, destClient endpoint.Client, destPath string, remote bool) (bool, error) {
	srcSize, ok, err := srcClient.Size(ctx, srcPath)
	if err != nil || !ok {
		return false, fmt.Errorf("size %s: %w", srcPath, err)
	}
	destSize, ok, err := destClient.Size(ctx, destPath)
	if err != nil || !ok {
		return false, fmt.Errorf("size %s: %w", destPath, err)
	}
	if srcSize != destSize {
		return false, nil
	}

	if !remote {
		fastSrc, err := hashsum.FastDigest(srcPath)
		if err != nil {
			return false, err
		}
		fastDest, err := hashsum.FastDigest(destPath)
		if err != nil {
			return false, err
		}
		if fastSrc != fastDest {
			return false, nil
		}
		return hashsum.FilesEqual(srcPath, destPath)
	}

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

// firstFreeName implements spec §4.4 step 4 Rename: the first path
// whose basename is "stem (N).ext" for N=1,2,... that does not exist
// at the destination, probed fresh for every candidate — there is no
// cache, so files written since an earlier run are always seen. The
// chosen name is not reserved: two runs probing at the same moment can
// pick the same candidate.
func firstFreeName(ctx context.Context, destClient endpoint.Client, destRoot, destRelPath string, remote bool) (string, error) {
	dir := dirOf(destRelPath, remote)
	base := baseOf(destRelPath, remote)
	ext := extOf(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; ; n++ {
		candidateName := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		candidateRel := joinRel(dir, candidateName, remote)
		candidatePath := joinPath(destRoot, candidateRel, remote)
		exists, err := destClient.Exists(ctx, candidatePath)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidatePath, nil
		}
	}
}

func joinPath(root, rel string, remote bool) string {
	if remote {
		return path.Join(root, filepath.ToSlash(rel))
	}
	return filepath.Join(root, rel)
}

func dirOf(rel string, remote bool) string {
	if remote {
		return path.Dir(filepath.ToSlash(rel))
	}
	return filepath.Dir(rel)
}

func baseOf(rel string, remote bool) string {
	if remote {
		return path.Base(filepath.ToSlash(rel))
	}
	return filepath.Base(rel)
}

func extOf(base string) string {
	return filepath.Ext(base)
}

func joinRel(dir, name string, remote bool) string {
	if dir == "." || dir == "" {
		return name
	}
	if remote {
		return path.Join(dir, name)
	}
	return filepath.Join(dir, name)
}
