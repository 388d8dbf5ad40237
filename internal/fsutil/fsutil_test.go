package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileScoped_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.yaml")
	if err := os.WriteFile(p, []byte("roles: []"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	b, err := ReadFileScoped(p)
	if err != nil {
		t.Fatalf("ReadFileScoped error: %v", err)
	}
	if string(b) != "roles: []" {
		t.Fatalf("unexpected content: %q", string(b))
	}
}

func TestReadFileScoped_RejectsInvalidPath(t *testing.T) {
	for _, p := range []string{"", ".", string(filepath.Separator)} {
		if _, err := ReadFileScoped(p); err == nil {
			t.Fatalf("expected error for %q", p)
		}
	}
}

func TestReadInDir_RejectsEscapes(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("s"), 0o600); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := os.Symlink(secret, filepath.Join(dir, "link.yaml")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := ReadInDir(dir, "link.yaml"); err == nil {
		t.Error("expected error reading symlink that leaves dir")
	}
	if _, err := ReadInDir(dir, "../"+filepath.Base(outside)+"/secret.txt"); err == nil {
		t.Error("expected error for .. traversal")
	}
	if _, err := ReadInDir(dir, secret); err == nil {
		t.Error("expected error for absolute name")
	}
}

func TestReadInDir_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	big := strings.Repeat("x", MaxFileSize+1)
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(big), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadInDir(dir, "big.txt"); err == nil {
		t.Error("expected size limit error")
	}
}
