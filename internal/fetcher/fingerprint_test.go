package fetcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTreeFingerprintStableAcrossCopies(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	writeTree := func(root string) {
		os.MkdirAll(filepath.Join(root, "sub"), 0o755)
		os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644)
		os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world"), 0o644)
	}
	writeTree(a)
	writeTree(b)

	fpA, err := TreeFingerprint(a)
	if err != nil {
		t.Fatalf("TreeFingerprint(a): %v", err)
	}
	fpB, err := TreeFingerprint(b)
	if err != nil {
		t.Fatalf("TreeFingerprint(b): %v", err)
	}
	if fpA != fpB {
		t.Errorf("fingerprints differ across identical copies: %s != %s", fpA, fpB)
	}
}

func TestTreeFingerprintExcludesGitDir(t *testing.T) {
	a := t.TempDir()
	os.WriteFile(filepath.Join(a, "a.txt"), []byte("hello"), 0o644)
	fpBefore, err := TreeFingerprint(a)
	if err != nil {
		t.Fatalf("TreeFingerprint: %v", err)
	}

	os.MkdirAll(filepath.Join(a, ".git"), 0o755)
	os.WriteFile(filepath.Join(a, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644)
	fpAfter, err := TreeFingerprint(a)
	if err != nil {
		t.Fatalf("TreeFingerprint: %v", err)
	}

	if fpBefore != fpAfter {
		t.Errorf("adding .git changed the fingerprint: %s != %s", fpBefore, fpAfter)
	}
}

func TestTreeFingerprintChangesWithContent(t *testing.T) {
	a := t.TempDir()
	os.WriteFile(filepath.Join(a, "a.txt"), []byte("hello"), 0o644)
	fp1, _ := TreeFingerprint(a)

	os.WriteFile(filepath.Join(a, "a.txt"), []byte("goodbye"), 0o644)
	fp2, _ := TreeFingerprint(a)

	if fp1 == fp2 {
		t.Error("fingerprint should change when file content changes")
	}
}

func TestSlugForURLStable(t *testing.T) {
	u := "https://github.com/BurntSushi/ripgrep.git"
	if slugForURL(u) != slugForURL(u) {
		t.Error("slugForURL should be deterministic for the same input")
	}
	if slugForURL(u) == slugForURL("https://github.com/other/repo.git") {
		t.Error("slugForURL should differ for different repos")
	}
}
