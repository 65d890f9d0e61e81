package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/base", "rel/path"); got != filepath.Join("/base", "rel/path") {
		t.Fatalf("relative: %q", got)
	}
	if got := ResolvePath("/base", "/abs/path"); got != filepath.Clean("/abs/path") {
		t.Fatalf("absolute: %q", got)
	}
}

func TestWriteJSONFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.json")

	if err := WriteJSONFile(path, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatal("empty file written")
	}
}
