package collision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"kosmokopy/internal/endpoint"
	"kosmokopy/internal/xfer"
)

func write(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveNoConflict(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "f.txt")
	write(t, srcFile, "hello")

	res, err := Resolve(ctx, endpoint.Local{}, srcFile, endpoint.Local{}, dst, "f.txt", false, xfer.Skip)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != Proceed || res.FinalPath != filepath.Join(dst, "f.txt") {
		t.Fatalf("got %+v", res)
	}
}

func TestResolveIdentical(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "f.txt")
	dstFile := filepath.Join(dst, "f.txt")
	write(t, srcFile, "same bytes")
	write(t, dstFile, "same bytes")

	res, err := Resolve(ctx, endpoint.Local{}, srcFile, endpoint.Local{}, dst, "f.txt", false, xfer.Skip)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != AlreadyIdentical {
		t.Fatalf("expected AlreadyIdentical, got %+v", res)
	}
}

func TestResolveSkipDifferent(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "f.txt")
	dstFile := filepath.Join(dst, "f.txt")
	write(t, srcFile, "new content")
	write(t, dstFile, "old content")

	res, err := Resolve(ctx, endpoint.Local{}, srcFile, endpoint.Local{}, dst, "f.txt", false, xfer.Skip)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != SkipDifferent {
		t.Fatalf("expected SkipDifferent, got %+v", res)
	}
}

func TestResolveOverwrite(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "f.txt")
	dstFile := filepath.Join(dst, "f.txt")
	write(t, srcFile, "new content")
	write(t, dstFile, "old content")

	res, err := Resolve(ctx, endpoint.Local{}, srcFile, endpoint.Local{}, dst, "f.txt", false, xfer.Overwrite)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != Proceed || !res.OverwritePermission {
		t.Fatalf("expected Proceed w/ overwrite permission, got %+v", res)
	}
}

func TestResolveRenameAutoNumber(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "file.txt")
	write(t, srcFile, "new")
	write(t, filepath.Join(dst, "file.txt"), "old")
	write(t, filepath.Join(dst, "file (1).txt"), "old1")

	res, err := Resolve(ctx, endpoint.Local{}, srcFile, endpoint.Local{}, dst, "file.txt", false, xfer.Rename)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dst, "file (2).txt")
	if res.Decision != Proceed || res.FinalPath != want {
		t.Fatalf("got %+v, want final path %q", res, want)
	}
}

func TestResolveDifferentSizeShortCircuits(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "f.txt")
	dstFile := filepath.Join(dst, "f.txt")
	write(t, srcFile, "short")
	write(t, dstFile, "a much longer piece of content")

	res, err := Resolve(ctx, endpoint.Local{}, srcFile, endpoint.Local{}, dst, "f.txt", false, xfer.Skip)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != SkipDifferent {
		t.Fatalf("expected SkipDifferent on size mismatch, got %+v", res)
	}
}
