// Package fetcher implements the Source Fetcher (spec 4.C): cloning or
// updating a remote git repository at a ref, and computing a canonical
// content fingerprint for the checked-out tree.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/opencontainers/go-digest"

	"github.com/stefan-hacks/pygr/internal/log"
)

var commitHashRE = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Fetcher clones and updates source repos under a shared cache
// directory (spec 4.C). One Fetcher instance is stateless across calls
// beyond the cache location; concurrent Fetch calls for distinct repos
// are safe, mirroring the Builder's per-worker-directory ownership rule
// from spec §5.
type Fetcher struct {
	CacheDir string
}

// New returns a Fetcher caching clones under cacheDir.
func New(cacheDir string) *Fetcher {
	return &Fetcher{CacheDir: cacheDir}
}

// Fetch clones remoteURL into the cache (or updates an existing clone),
// checks out ref (a branch, tag, or 40-hex commit; ambiguous names
// resolve to the tag per spec 4.C), and returns the local path and the
// tree fingerprint of the checked-out state.
func (f *Fetcher) Fetch(ctx context.Context, remoteURL, ref string) (string, digest.Digest, error) {
	localPath := filepath.Join(f.CacheDir, slugForURL(remoteURL))

	repo, err := f.cloneOrUpdate(ctx, remoteURL, localPath)
	if err != nil {
		return "", "", err
	}

	hash, err := resolveRef(repo, ref)
	if err != nil {
		return "", "", &FetchFailedError{URL: remoteURL, Ref: ref, Err: err}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", "", &FetchFailedError{URL: remoteURL, Ref: ref, Err: err}
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", "", &FetchFailedError{URL: remoteURL, Ref: ref, Err: err}
	}

	fp, err := TreeFingerprint(localPath)
	if err != nil {
		return "", "", fmt.Errorf("fetcher: fingerprint %s: %w", localPath, err)
	}
	return localPath, fp, nil
}

// cloneOrUpdate clones remoteURL into localPath if absent, or runs an
// incremental fetch of an existing clone, retrying transient transport
// errors with exponential backoff (3 attempts, base 500ms, cap 8s; spec
// 4.C).
func (f *Fetcher) cloneOrUpdate(ctx context.Context, remoteURL, localPath string) (*git.Repository, error) {
	if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return nil, &FetchFailedError{URL: remoteURL, Err: err}
		}
		err = withRetry(ctx, func() error {
			fetchErr := repo.FetchContext(ctx, &git.FetchOptions{
				RemoteName: "origin",
				Tags:       git.AllTags,
				Force:      true,
			})
			if errors.Is(fetchErr, git.NoErrAlreadyUpToDate) {
				return nil
			}
			return fetchErr
		})
		if err != nil {
			return nil, classifyFetchErr(ctx, remoteURL, "", err)
		}
		return repo, nil
	}

	var repo *git.Repository
	err := withRetry(ctx, func() error {
		_ = os.RemoveAll(localPath)
		log.Default().Info("cloning source repo", "url", remoteURL)
		r, cloneErr := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:  remoteURL,
			Tags: git.AllTags,
		})
		if cloneErr != nil {
			return cloneErr
		}
		repo = r
		return nil
	})
	if err != nil {
		return nil, classifyFetchErr(ctx, remoteURL, "", err)
	}
	return repo, nil
}

// withRetry runs op up to 3 attempts with exponential backoff starting
// at 500ms and capped at 8s (spec 4.C).
func withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 8 * time.Second
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by MaxRetries below, not by elapsed wall time

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx))
}

func classifyFetchErr(ctx context.Context, url, ref string, err error) error {
	if ctx.Err() != nil {
		return &FetchTimeoutError{URL: url, Ref: ref}
	}
	return &FetchFailedError{URL: url, Ref: ref, Err: err}
}

// resolveRef resolves ref to a commit hash. A 40-hex string is treated
// as a commit directly; otherwise a tag of that name wins over a branch
// of the same name (spec 4.C: "ambiguous refs ... resolve to the tag").
func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if commitHashRE.MatchString(ref) {
		if h, err := repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
			return *h, nil
		}
	}
	if h, err := repo.ResolveRevision(plumbing.Revision("refs/tags/" + ref)); err == nil {
		return *h, nil
	}
	if h, err := repo.ResolveRevision(plumbing.Revision("refs/heads/" + ref)); err == nil {
		return *h, nil
	}
	if h, err := repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return *h, nil
	}
	return plumbing.ZeroHash, fmt.Errorf("unresolvable ref %q", ref)
}
