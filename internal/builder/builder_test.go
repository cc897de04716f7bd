package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/stefan-hacks/pygr/internal/fetcher"
	"github.com/stefan-hacks/pygr/internal/recipe"
	"github.com/stefan-hacks/pygr/internal/sandbox"
	"github.com/stefan-hacks/pygr/internal/store"
)

// initMakeRepo creates a local git repo whose tree contains a Makefile
// installing a single file into $PREFIX/bin, so detect.Detect selects
// the "make" build system end-to-end.
func initMakeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	makefile := "install:\n\tmkdir -p $(PREFIX)/bin\n\techo ok > $(PREFIX)/bin/tool\n"
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("Makefile"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Unix(0, 0)},
	}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestBuilder(t *testing.T) (*Builder, string) {
	t.Helper()
	cacheDir := t.TempDir()
	storeDir := t.TempDir()
	stagingRoot := t.TempDir()
	b := New(fetcher.New(cacheDir), store.New(storeDir), sandbox.New(), nil, stagingRoot)
	return b, storeDir
}

func TestBuildDetectedMakefile(t *testing.T) {
	sourceDir := initMakeRepo(t)
	b, _ := newTestBuilder(t)

	key, err := b.Build(context.Background(), Task{RemoteURL: sourceDir, Ref: "master"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !b.Store.Has(key) {
		t.Fatalf("expected store to contain key %s", key)
	}
	if _, err := os.Stat(filepath.Join(b.Store.ArtifactPath(key), "bin", "tool")); err != nil {
		t.Errorf("expected installed bin/tool: %v", err)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	sourceDir := initMakeRepo(t)
	b, _ := newTestBuilder(t)

	key1, err := b.Build(context.Background(), Task{RemoteURL: sourceDir, Ref: "master"})
	if err != nil {
		t.Fatalf("Build 1: %v", err)
	}
	key2, err := b.Build(context.Background(), Task{RemoteURL: sourceDir, Ref: "master"})
	if err != nil {
		t.Fatalf("Build 2: %v", err)
	}
	if key1 != key2 {
		t.Errorf("rebuilding identical inputs produced different keys: %s != %s", key1, key2)
	}
}

func TestBuildNoBuildSystem(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("nothing to build\n"), 0o644)
	wt, _ := repo.Worktree()
	wt.Add("README.md")
	wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Unix(0, 0)},
	})

	b, _ := newTestBuilder(t)
	if _, err := b.Build(context.Background(), Task{RemoteURL: dir, Ref: "master"}); err == nil {
		t.Error("expected NoBuildSystem error")
	}
}

func TestBuildWithRecipeCommandsTakesPriority(t *testing.T) {
	sourceDir := initMakeRepo(t)
	b, _ := newTestBuilder(t)

	r := &recipe.Recipe{
		Name:    "tool",
		Version: "1.0.0",
		Source:  recipe.Source{Kind: "remote-repo", Repo: sourceDir, Ref: "master"},
		Install: []string{"mkdir -p {{prefix}}/bin", "echo from-recipe > {{prefix}}/bin/tool"},
	}

	key, err := b.Build(context.Background(), Task{Recipe: r})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(b.Store.ArtifactPath(key), "bin", "tool"))
	if err != nil {
		t.Fatalf("read installed file: %v", err)
	}
	if string(data) != "from-recipe\n" {
		t.Errorf("expected recipe install commands to run instead of the detector, got %q", data)
	}
}
