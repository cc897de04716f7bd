package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup [LABEL]",
	Short: "Snapshot declarative state and the current generation manifest",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		label := ""
		if len(args) == 1 {
			label = args[0]
		}
		a := mustApp()
		id, size, err := a.backup(label)
		if err != nil {
			fail(err)
		}
		printInfof("backup %s created (%s)\n", id, humanize.Bytes(uint64(size)))
	},
}

// backup copies the declarative state file and the current generation
// manifest into backups/<timestamp>[-label]/ (spec's filesystem layout
// line: "backups/<timestamp>[-label]/"), recording label as a
// description keyed by the backup id in the metadata database.
func (a *app) backup(label string) (string, int64, error) {
	id := time.Now().UTC().Format("20060102T150405Z")
	if label != "" {
		id = id + "-" + label
	}
	dir := filepath.Join(a.cfg.BackupsDir, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", 0, fmt.Errorf("pygr: create backup dir: %w", err)
	}

	var total int64
	if n, err := copyIfExists(a.cfg.StateFile, filepath.Join(dir, "packages.conf")); err == nil {
		total += n
	}
	if genDir, derr := os.Readlink(filepath.Join(a.cfg.ProfilesDir, "current")); derr == nil {
		if n, err := copyIfExists(filepath.Join(genDir, "manifest"), filepath.Join(dir, "manifest")); err == nil {
			total += n
		}
	}

	desc := label
	if desc == "" {
		desc = "backup"
	}
	if err := a.db.Set("backup:"+id, desc); err != nil {
		return "", 0, err
	}
	return id, total, nil
}

// copyIfExists copies src to dst, returning the byte count written. A
// missing src is not an error; it simply contributes nothing.
func copyIfExists(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, in)
}
