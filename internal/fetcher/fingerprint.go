package fetcher

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
)

// vcsMetadataDirs are excluded from the tree fingerprint (spec §3: "the
// tree fingerprint ... excluding the VCS metadata directory").
var vcsMetadataDirs = map[string]bool{
	".git": true,
}

// TreeFingerprint computes the 256-bit digest over a deterministic
// serialization of the tree rooted at dir (spec §3 "Source Tree
// Fingerprint"): for every regular file in sorted relative-path order,
// emit path\0mode\0size\0content; symlinks contribute path\0"L"\0target;
// directories contribute nothing by themselves.
func TreeFingerprint(dir string) (digest.Digest, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if vcsMetadataDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetcher: walk tree: %w", err)
	}
	sort.Strings(paths)

	digester := digest.SHA256.Digester()
	hash := digester.Hash()

	for _, rel := range paths {
		full := filepath.Join(dir, rel)
		info, err := os.Lstat(full)
		if err != nil {
			return "", fmt.Errorf("fetcher: lstat %s: %w", rel, err)
		}

		slashed := filepath.ToSlash(rel)

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(full)
			if err != nil {
				return "", fmt.Errorf("fetcher: readlink %s: %w", rel, err)
			}
			fmt.Fprintf(hash, "%s\x00L\x00%s", slashed, target)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		f, err := os.Open(full)
		if err != nil {
			return "", fmt.Errorf("fetcher: open %s: %w", rel, err)
		}
		fmt.Fprintf(hash, "%s\x00%o\x00%d\x00", slashed, info.Mode().Perm(), info.Size())
		_, err = io.Copy(hash, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("fetcher: read %s: %w", rel, err)
		}
	}

	return digester.Digest(), nil
}

// slugForURL derives a filesystem-safe clone directory name from a
// remote URL, stable across calls for the same URL.
func slugForURL(url string) string {
	r := strings.NewReplacer("/", "-", ":", "-", "@", "-", "..", "-")
	s := r.Replace(strings.TrimSuffix(url, ".git"))
	s = strings.Trim(s, "-")
	if s == "" {
		s = digest.FromString(url).Encoded()[:16]
	}
	return s
}
