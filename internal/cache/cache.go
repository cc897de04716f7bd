// Package cache implements the Binary Cache Client (spec 4.K): probing
// a remote URL for a prebuilt artifact keyed by build fingerprint, and
// extracting one into a staging directory when available.
package cache

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/httputil"
)

// CacheError reports anything other than a clean hit/miss from lookup
// (spec 4.K: "other -> CacheError").
type CacheError struct {
	URL string
	Err error
}

func (e *CacheError) Error() string        { return fmt.Sprintf("cache: %s: %v", e.URL, e.Err) }
func (e *CacheError) Unwrap() error         { return e.Err }
func (e *CacheError) ErrorKind() errmsg.Kind { return errmsg.KindCacheError }

// CorruptError reports a downloaded artifact whose SHA-256 does not
// match its accompanying signature file (spec 4.K: "Invalid digest ->
// CacheCorrupt").
type CorruptError struct {
	Key  string
	Want string
	Got  string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache: %s: digest mismatch: want %s, got %s", e.Key, e.Want, e.Got)
}
func (e *CorruptError) ErrorKind() errmsg.Kind { return errmsg.KindCacheCorrupt }

// Client fetches prebuilt artifacts from a binary cache reachable over
// HTTP(S) at BaseURL, addressed as "<BaseURL>/<key>.tar.zst" with a
// companion "<BaseURL>/<key>.sha256" signature file.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client for baseURL using the shared SSRF-hardened HTTP
// client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    httputil.NewSecureClient(httputil.DefaultOptions()),
	}
}

func (c *Client) artifactURL(key string) string { return fmt.Sprintf("%s/%s.tar.zst", c.BaseURL, key) }
func (c *Client) signatureURL(key string) string { return fmt.Sprintf("%s/%s.sha256", c.BaseURL, key) }

// Lookup performs an HTTP HEAD against the artifact URL: 200 is a hit,
// 404 a miss, anything else a CacheError (spec 4.K's lookup()).
func (c *Client) Lookup(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.artifactURL(key), nil)
	if err != nil {
		return false, &CacheError{URL: c.artifactURL(key), Err: err}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, &CacheError{URL: c.artifactURL(key), Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &CacheError{URL: c.artifactURL(key), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// DownloadAndExtract streams the artifact, verifies it against its
// signature file, and extracts the tar.zst payload into dest (spec
// 4.K's download_and_extract()). dest must already exist.
func (c *Client) DownloadAndExtract(ctx context.Context, key, dest string) error {
	wantDigest, err := c.fetchSignature(ctx, key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "pygr-cache-*.tar.zst")
	if err != nil {
		return fmt.Errorf("cache: create temp download: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := sha256.New()
	if err := c.stream(ctx, c.artifactURL(key), io.MultiWriter(tmp, h)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp download: %w", err)
	}

	gotDigest := hex.EncodeToString(h.Sum(nil))
	if gotDigest != wantDigest {
		return &CorruptError{Key: key, Want: wantDigest, Got: gotDigest}
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("cache: reopen download: %w", err)
	}
	defer f.Close()

	return extractTarZst(f, dest, key)
}

func (c *Client) fetchSignature(ctx context.Context, key string) (string, error) {
	var buf strings.Builder
	if err := c.stream(ctx, c.signatureURL(key), &buf); err != nil {
		return "", err
	}
	fields := strings.Fields(buf.String())
	if len(fields) == 0 {
		return "", &CacheError{URL: c.signatureURL(key), Err: fmt.Errorf("empty signature file")}
	}
	return strings.ToLower(fields[0]), nil
}

func (c *Client) stream(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &CacheError{URL: url, Err: err}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &CacheError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &CacheError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &CacheError{URL: url, Err: err}
	}
	return nil
}

// extractTarZst extracts a zstd-compressed tar stream into dest,
// stripping the leading "<key>/" component every entry carries (spec
// §6: "archive contains the artifact tree rooted at its key
// directory") so dest itself becomes the artifact root rather than
// dest/<key>. It rejects any entry that would escape dest (path
// traversal) or any symlink whose target would (symlink escape),
// mirroring the hardening tsukumogami-tsuku's archive extractor
// applies to untrusted archives.
func extractTarZst(r io.Reader, dest, key string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("cache: zstd reader: %w", err)
	}
	defer zr.Close()

	root := key + "/"
	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cache: read tar header: %w", err)
		}

		cleanPath := strings.TrimPrefix(header.Name, "./")
		cleanPath = strings.TrimPrefix(cleanPath, root)
		if cleanPath == "" || cleanPath == key {
			continue
		}
		target := filepath.Join(dest, cleanPath)
		if !withinDir(target, dest) {
			return fmt.Errorf("cache: archive entry escapes destination: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("cache: mkdir %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("cache: mkdir parent of %s: %w", target, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("cache: create %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("cache: write %s: %w", target, err)
			}
			f.Close()

		case tar.TypeSymlink:
			resolved := filepath.Join(filepath.Dir(target), header.Linkname)
			if filepath.IsAbs(header.Linkname) || !withinDir(resolved, dest) {
				return fmt.Errorf("cache: symlink escapes destination: %s -> %s", header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("cache: mkdir parent of %s: %w", target, err)
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("cache: symlink %s: %w", target, err)
			}
		}
	}
}

func withinDir(target, base string) bool {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}
