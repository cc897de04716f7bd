package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadParsesAllEntryKinds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packages.conf")
	content := strings.Join([]string{
		"# a comment",
		"",
		"system:apt:curl",
		"remote-repo:BurntSushi/ripgrep@v13.0.0",
		"remote-repo:owner/norefs",
		"recipe:mytool@1.0.0",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	entries, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4: %+v", len(entries), entries)
	}
	if entries[0].Origin != OriginSystem || entries[0].PM != "apt" || entries[0].Name != "curl" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Origin != OriginRemoteRepo || entries[1].Name != "BurntSushi/ripgrep" || entries[1].Ref != "v13.0.0" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].Ref != "" {
		t.Errorf("entry 2 ref = %q, want empty", entries[2].Ref)
	}
	if entries[3].Origin != OriginRecipe || entries[3].Name != "mytool" || entries[3].Ref != "1.0.0" {
		t.Errorf("entry 3 = %+v", entries[3])
	}
}

func TestReadKeepsLastDuplicateOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packages.conf")
	content := "recipe:mytool@1.0.0\nrecipe:mytool@2.0.0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	entries, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Ref != "2.0.0" {
		t.Errorf("ref = %q, want 2.0.0 (last occurrence wins)", entries[0].Ref)
	}
}

func TestReadRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packages.conf")
	if err := os.WriteFile(path, []byte("not-a-valid-entry\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	_, err := s.Read()
	if err == nil {
		t.Fatal("expected a malformed-line error")
	}
	if _, ok := err.(*MalformedLineError); !ok {
		t.Errorf("expected *MalformedLineError, got %T", err)
	}
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "packages.conf"))
	entries, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for a missing file, got %+v", entries)
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "packages.conf")
	s := New(path)
	want := []Entry{
		{Origin: OriginSystem, PM: "apt", Name: "curl"},
		{Origin: OriginRemoteRepo, Name: "BurntSushi/ripgrep", Ref: "v13.0.0"},
		{Origin: OriginRecipe, Name: "mytool", Ref: "1.0.0"},
	}
	if err := s.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSyncFromCurrentPreservesSystemEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.conf")
	s := New(path)
	if err := s.Write([]Entry{
		{Origin: OriginSystem, PM: "apt", Name: "curl"},
		{Origin: OriginRecipe, Name: "stale", Ref: "0.1.0"},
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	err := s.SyncFromCurrent([]ManifestLine{
		{Origin: OriginRecipe, Name: "mytool", Ref: "1.0.0"},
	})
	if err != nil {
		t.Fatalf("SyncFromCurrent: %v", err)
	}

	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got), got)
	}
	if got[0].Origin != OriginSystem || got[0].Name != "curl" {
		t.Errorf("expected preserved system entry first, got %+v", got[0])
	}
	if got[1].Name != "mytool" {
		t.Errorf("expected synced recipe entry, got %+v", got[1])
	}
}

type fakeInstaller struct{ installed []Entry }

func (f *fakeInstaller) Install(e Entry) error {
	f.installed = append(f.installed, e)
	return nil
}

func TestApplySkipsAlreadyInstalled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.conf")
	s := New(path)
	if err := s.Write([]Entry{
		{Origin: OriginRecipe, Name: "already", Ref: "1.0.0"},
		{Origin: OriginRecipe, Name: "missing", Ref: "1.0.0"},
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fi := &fakeInstaller{}
	err := s.Apply(func(e Entry) bool { return e.Name == "already" }, fi)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(fi.installed) != 1 || fi.installed[0].Name != "missing" {
		t.Errorf("installed = %+v, want only 'missing'", fi.installed)
	}
}
