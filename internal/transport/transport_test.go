package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"kosmokopy/internal/xfer"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteLocalCopy(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "a.txt")
	dstFile := filepath.Join(dst, "a.txt")
	writeFile(t, srcFile, "hello world")

	job := Job{
		Source:     xfer.Endpoint{Kind: xfer.KindLocal, Root: src},
		Dest:       xfer.Endpoint{Kind: xfer.KindLocal, Root: dst},
		SourcePath: srcFile,
		DestPath:   dstFile,
		Operation:  xfer.Copy,
		Method:     xfer.Standard,
	}
	out, err := Execute(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if out.SourceConsumed {
		t.Fatal("copy must not consume the source")
	}
	got, err := os.ReadFile(dstFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("dest content = %q", got)
	}
	if _, err := os.Stat(srcFile); err != nil {
		t.Fatalf("source should still exist after copy: %v", err)
	}
}

func TestExecuteLocalMoveSameDevice(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	srcFile := filepath.Join(src, "a.txt")
	dstFile := filepath.Join(dst, "a.txt")
	writeFile(t, srcFile, "move me")

	job := Job{
		Source:     xfer.Endpoint{Kind: xfer.KindLocal, Root: src},
		Dest:       xfer.Endpoint{Kind: xfer.KindLocal, Root: dst},
		SourcePath: srcFile,
		DestPath:   dstFile,
		Operation:  xfer.Move,
		Method:     xfer.Standard,
	}
	out, err := Execute(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if !out.SourceConsumed {
		t.Fatal("same-device move should report SourceConsumed via rename")
	}
	if _, err := os.Stat(srcFile); !os.IsNotExist(err) {
		t.Fatal("source should be gone after a same-device rename")
	}
	got, err := os.ReadFile(dstFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "move me" {
		t.Fatalf("dest content = %q", got)
	}
}

func TestExecuteLocalCopyMissingSourceLeavesNoPartial(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	srcFile := filepath.Join(src, "missing.txt")
	dstFile := filepath.Join(dst, "missing.txt")

	job := Job{
		Source:     xfer.Endpoint{Kind: xfer.KindLocal, Root: src},
		Dest:       xfer.Endpoint{Kind: xfer.KindLocal, Root: dst},
		SourcePath: srcFile,
		DestPath:   dstFile,
		Operation:  xfer.Copy,
		Method:     xfer.Standard,
	}
	if _, err := Execute(context.Background(), job); err == nil {
		t.Fatal("expected an error copying a nonexistent source")
	}
	if _, err := os.Stat(dstFile); !os.IsNotExist(err) {
		t.Fatal("no partial destination file should remain on failure")
	}
}
