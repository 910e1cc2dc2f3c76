package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunDetectsFileWrite(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.c")
	if err := os.WriteFile(srcPath, []byte("int x;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, dir, 30*time.Millisecond, func(paths []string) {
			changes <- paths
		})
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(srcPath, []byte("int x = 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if len(got) != 1 || filepath.Clean(got[0]) != filepath.Clean(srcPath) {
			t.Fatalf("expected a change for %s, got %v", srcPath, got)
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for a change notification")
	}
	cancel()
	<-done
}

func TestRunIgnoresNonCFiles(t *testing.T) {
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, dir, 30*time.Millisecond, func(paths []string) {
			changes <- paths
		})
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(txtPath, []byte("hello again\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		t.Fatalf("expected no change notification for a .txt file, got %v", got)
	case <-ctx.Done():
	}
	<-done
}

func TestShouldSkipDirSkipsVendorAndHidden(t *testing.T) {
	root := "/repo"
	if !shouldSkipDir(root, "/repo/vendor", "vendor") {
		t.Fatalf("expected vendor to be skipped")
	}
	if !shouldSkipDir(root, "/repo/.git", ".git") {
		t.Fatalf("expected .git to be skipped")
	}
	if shouldSkipDir(root, "/repo/src", "src") {
		t.Fatalf("expected an ordinary directory to not be skipped")
	}
	if shouldSkipDir(root, root, "repo") {
		t.Fatalf("expected the root itself to never be skipped")
	}
}
