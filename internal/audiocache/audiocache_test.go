package audiocache_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/admitly/interviewd/internal/audiocache"
)

func TestPutGetDelete(t *testing.T) {
	t.Parallel()
	c, err := audiocache.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	name, err := c.Put([]byte("fake-mp3"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasSuffix(name, ".mp3") {
		t.Errorf("expected .mp3 suffix, got %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		t.Errorf("name must not contain path separators, got %q", name)
	}

	data, err := c.Get(name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "fake-mp3" {
		t.Errorf("unexpected data %q", data)
	}

	if err := c.Delete(name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(name); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist after delete, got %v", err)
	}

	// Deleting again must be a no-op.
	if err := c.Delete(name); err != nil {
		t.Errorf("second Delete should not error, got %v", err)
	}
}

func TestPut_UniqueNames(t *testing.T) {
	t.Parallel()
	c, err := audiocache.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name, err := c.Put([]byte("x"))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if seen[name] {
			t.Fatalf("duplicate file name %q", name)
		}
		seen[name] = true
	}
}

func TestGet_RejectsTraversal(t *testing.T) {
	t.Parallel()
	c, err := audiocache.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, name := range []string{"", "../etc/passwd", "a/b.mp3", `a\b.mp3`} {
		if _, err := c.Get(name); err == nil {
			t.Errorf("Get(%q) should fail", name)
		}
		if err := c.Delete(name); err == nil {
			t.Errorf("Delete(%q) should fail", name)
		}
	}
}

func TestSweep_RemovesOnlyExpiredAudio(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c, err := audiocache.New(dir, audiocache.WithTTL(30*time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	oldName, err := c.Put([]byte("old"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	freshName, err := c.Put([]byte("fresh"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A non-audio file must never be touched by the sweeper.
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write notes.txt: %v", err)
	}

	// Age the old file past the TTL.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, oldName), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(other, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	deleted, err := c.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted file, got %d", deleted)
	}
	if _, err := c.Get(oldName); err == nil {
		t.Error("expired file should be gone")
	}
	if _, err := c.Get(freshName); err != nil {
		t.Errorf("fresh file should survive the sweep: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("non-audio file should survive the sweep: %v", err)
	}
}

func TestNew_DefaultDir(t *testing.T) {
	t.Parallel()
	c, err := audiocache.New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Dir() == "" {
		t.Fatal("expected a non-empty default dir")
	}
	if !strings.Contains(c.Dir(), "interviewd-audio") {
		t.Errorf("default dir should be under the system temp dir, got %q", c.Dir())
	}
}
