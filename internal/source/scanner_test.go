package source

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "2026", "02", "08", "rollout-b.jsonl"), "{}\n")
	touch(t, filepath.Join(root, "2026", "02", "07", "rollout-a.jsonl"), "{}\n{}\n")
	touch(t, filepath.Join(root, "2026", "02", "07", "notes.json"), "{}")
	touch(t, filepath.Join(root, "2026", "02", "07", ".hidden.jsonl"), "{}")
	touch(t, filepath.Join(root, ".archive", "rollout-old.jsonl"), "{}")

	files, err := ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}

	want := []string{
		filepath.Join(root, "2026", "02", "07", "rollout-a.jsonl"),
		filepath.Join(root, "2026", "02", "08", "rollout-b.jsonl"),
	}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, f.Path, want[i])
		}
	}
	if files[0].Fingerprint.Size != 6 {
		t.Errorf("Size = %d, want 6", files[0].Fingerprint.Size)
	}
	if files[0].Fingerprint.ModTimeNs == 0 {
		t.Error("ModTimeNs not populated")
	}
}

func TestScanDir_MissingRoot(t *testing.T) {
	files, err := ScanDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("got %d files, want 0", len(files))
	}
}

func TestScanDir_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.jsonl")
	touch(t, path, "{}")

	files, err := ScanDir(path)
	if err != nil || len(files) != 0 {
		t.Fatalf("ScanDir(file) = %v, %v; want no files, no error", files, err)
	}
}
