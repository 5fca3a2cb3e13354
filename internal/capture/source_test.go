package capture

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFrame(t *testing.T, dir, name string, gray uint8) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, uniformImage(16, 16, gray)); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
}

func TestDirectorySource_LoopsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "a.png", 10)
	writeTestFrame(t, dir, "b.png", 200)

	src := NewDirectorySource(dir)
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	first, err := src.Grab(ctx)
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	second, err := src.Grab(ctx)
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	third, err := src.Grab(ctx)
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}

	if b := EstimateBrightness(first); b > 50 {
		t.Errorf("first frame should be dark, brightness %f", b)
	}
	if b := EstimateBrightness(second); b < 150 {
		t.Errorf("second frame should be bright, brightness %f", b)
	}
	// Two files, so the third grab wraps back to the first.
	if b := EstimateBrightness(third); b > 50 {
		t.Errorf("third frame should wrap to the dark frame, brightness %f", b)
	}
}

func TestDirectorySource_EmptyDir(t *testing.T) {
	src := NewDirectorySource(t.TempDir())
	if err := src.Open(context.Background()); err == nil {
		t.Error("expected Open to fail on a directory with no images")
	}
}

func TestDirectorySource_GrabBeforeOpen(t *testing.T) {
	src := NewDirectorySource(t.TempDir())
	if _, err := src.Grab(context.Background()); err == nil {
		t.Error("expected Grab to fail before Open")
	}
}

func TestDirectorySource_CloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "a.png", 128)

	src := NewDirectorySource(dir)
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
