package fsops

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestStagingDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	dir, err := StagingDir(fs, "/data/installed", ".linux-x64-")
	if err != nil {
		t.Fatalf("StagingDir() error = %v", err)
	}

	if filepath.Dir(dir) != "/data/installed" {
		t.Errorf("staging dir %q not under parent", dir)
	}
	if !strings.HasPrefix(filepath.Base(dir), ".linux-x64-") {
		t.Errorf("staging dir %q missing prefix", dir)
	}
	if !IsDir(fs, dir) {
		t.Error("expected staging directory to exist")
	}
}

func TestEnsureDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	path := "/test/nested/dir"
	if err := EnsureDir(fs, path, 0755); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	if !IsDir(fs, path) {
		t.Error("expected directory to exist and be a directory")
	}
}

func TestExists(t *testing.T) {
	fs := afero.NewMemMapFs()

	afero.WriteFile(fs, "/test.txt", []byte("test"), 0644)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing file", "/test.txt", true},
		{"non-existing file", "/nonexistent.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exists(fs, tt.path)
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestNearestExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/data/depctl", 0755)

	tests := []struct {
		path string
		want string
	}{
		{"/data/depctl", "/data/depctl"},
		{"/data/depctl/packages/installed", "/data/depctl"},
		{"/missing/entirely", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NearestExisting(fs, tt.path); got != tt.want {
				t.Errorf("NearestExisting(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCheckWritable(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/cache", 0755)

	if err := CheckWritable(fs, "/cache"); err != nil {
		t.Fatalf("CheckWritable() error = %v", err)
	}
	if Exists(fs, "/cache/.write_test") {
		t.Error("probe file left behind")
	}

	if err := CheckWritable(afero.NewReadOnlyFs(fs), "/cache"); err == nil {
		t.Error("expected read-only fs to be reported")
	}
}

func TestCopyFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	srcContent := []byte("test content")
	afero.WriteFile(fs, "/src.txt", srcContent, 0644)
	afero.WriteFile(fs, "/dst.txt", []byte("stale and longer content"), 0644)

	if err := CopyFile(fs, "/src.txt", "/dst.txt"); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	dstContent, err := afero.ReadFile(fs, "/dst.txt")
	if err != nil {
		t.Fatalf("failed to read destination: %v", err)
	}
	if string(dstContent) != string(srcContent) {
		t.Errorf("copied content = %q, want %q", dstContent, srcContent)
	}
	if Exists(fs, "/dst.txt.part") {
		t.Error("temporary file left behind")
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()

	if err := CopyFile(fs, "/nope.zip", "/dst.zip"); err == nil {
		t.Fatal("expected error for missing source")
	}
	if Exists(fs, "/dst.zip") {
		t.Error("destination created for missing source")
	}
}

func TestHashFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/pkg.zip", []byte("hello"), 0644)

	sum, err := HashFile(fs, "/pkg.zip")
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if sum != want {
		t.Errorf("HashFile() = %q, want %q", sum, want)
	}

	if _, err := HashFile(fs, "/missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRemoveContents(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/cache/a.zip", []byte("a"), 0644)
	afero.WriteFile(fs, "/cache/b.zip", []byte("b"), 0644)
	afero.WriteFile(fs, "/cache/sub/c.zip", []byte("c"), 0644)

	n, err := RemoveContents(fs, "/cache")
	if err != nil {
		t.Fatalf("RemoveContents() error = %v", err)
	}
	if n != 3 {
		t.Errorf("removed %d entries, want 3", n)
	}
	if !IsDir(fs, "/cache") {
		t.Error("directory itself should be kept")
	}

	n, err = RemoveContents(fs, "/absent")
	if err != nil || n != 0 {
		t.Errorf("RemoveContents(missing) = %d, %v; want 0, nil", n, err)
	}
}
