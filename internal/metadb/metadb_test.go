package metadb

import (
	"path/filepath"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	db := Open(filepath.Join(t.TempDir(), "pygr.db"))

	if err := db.Set("repo:core", "2026-07-29T00:00:00Z"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := db.Get("repo:core")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "2026-07-29T00:00:00Z" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestGetMissingKey(t *testing.T) {
	db := Open(filepath.Join(t.TempDir(), "pygr.db"))
	_, ok, err := db.Get("nothing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing key")
	}
}

func TestPrefixStripsAndFilters(t *testing.T) {
	db := Open(filepath.Join(t.TempDir(), "pygr.db"))
	db.Set("repo:core", "a")
	db.Set("repo:extra", "b")
	db.Set("backup:2026", "c")

	got, err := db.Prefix("repo:")
	if err != nil {
		t.Fatalf("Prefix: %v", err)
	}
	if len(got) != 2 || got["core"] != "a" || got["extra"] != "b" {
		t.Errorf("Prefix result = %+v", got)
	}
}

func TestDelete(t *testing.T) {
	db := Open(filepath.Join(t.TempDir(), "pygr.db"))
	db.Set("k", "v")
	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, _ := db.Get("k")
	if ok {
		t.Error("expected key to be gone after Delete")
	}
}

func TestKeysSorted(t *testing.T) {
	db := Open(filepath.Join(t.TempDir(), "pygr.db"))
	db.Set("b", "1")
	db.Set("a", "2")
	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys = %v", keys)
	}
}
